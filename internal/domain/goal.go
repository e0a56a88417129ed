package domain

import (
	"context"
	"time"

	"example.com/footprint/internal/stats"
)

// Goal is an owner's emission target.
type Goal struct {
	ID            string
	TenantID      string
	OwnerID       string
	Title         string
	GoalType      stats.GoalType
	TargetValue   float64
	BaselineValue float64
	Category      string
	BaselineDate  *time.Time
	TargetDate    time.Time
	Status        stats.GoalStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func (g Goal) engineGoal() stats.Goal {
	return stats.Goal{
		ID:            g.ID,
		Type:          g.GoalType,
		TargetValue:   g.TargetValue,
		BaselineValue: g.BaselineValue,
		Category:      g.Category,
		CreatedAt:     g.CreatedAt,
		BaselineDate:  g.BaselineDate,
		TargetDate:    g.TargetDate,
		Status:        g.Status,
	}
}

// GoalTransition is a status change produced by evaluating a goal.
type GoalTransition struct {
	From         stats.GoalStatus
	To           stats.GoalStatus
	CurrentValue float64
	Progress     float64
	ChangedAt    time.Time
}

// GoalRepository captures persistence operations for goals.
type GoalRepository interface {
	CreateGoal(ctx context.Context, goal Goal) error
	GetGoal(ctx context.Context, tenantID, goalID string) (*Goal, error)
	ListGoals(ctx context.Context, tenantID, ownerID string, status stats.GoalStatus) ([]Goal, error)
	// TransitionGoal applies the change only while the goal is still active and
	// reports whether it did.
	TransitionGoal(ctx context.Context, goal Goal, transition GoalTransition) (bool, error)
}
