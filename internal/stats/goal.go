package stats

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidGoal is returned for goals whose type or target cannot be evaluated.
var ErrInvalidGoal = errors.New("invalid goal")

// BaselinePeriodDays is the length of the window a reduction goal's baseline
// is captured over, and of the trailing window it is compared against.
const BaselinePeriodDays = 30

// GoalType selects how progress is measured.
type GoalType string

const (
	GoalAbsoluteTarget      GoalType = "absolute_target"
	GoalReductionPercentage GoalType = "reduction_percentage"
)

// Valid reports whether t is a known goal type.
func (t GoalType) Valid() bool {
	return t == GoalAbsoluteTarget || t == GoalReductionPercentage
}

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalExpired   GoalStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s GoalStatus) Terminal() bool {
	return s == GoalCompleted || s == GoalExpired
}

// Goal is the part of a stored goal the engine needs.
type Goal struct {
	ID            string
	Type          GoalType
	TargetValue   float64
	BaselineValue float64
	Category      string
	CreatedAt     time.Time
	BaselineDate  *time.Time
	TargetDate    time.Time
	Status        GoalStatus
}

// GoalProgress is computed on read and never stored.
type GoalProgress struct {
	GoalID           string     `json:"goal_id"`
	GoalType         GoalType   `json:"goal_type"`
	CurrentValue     float64    `json:"current_value"`
	TargetValue      float64    `json:"target_value"`
	BaselineValue    float64    `json:"baseline_value,omitempty"`
	ReductionPercent *float64   `json:"reduction_percent,omitempty"`
	Fraction         float64    `json:"fraction"`
	ProgressPercent  float64    `json:"progress_percent"`
	Status           GoalStatus `json:"status"`
	PreviousStatus   GoalStatus `json:"previous_status"`
	DaysRemaining    int        `json:"days_remaining"`
}

// Transitioned reports whether evaluation moved the goal out of active.
func (p GoalProgress) Transitioned() bool {
	return p.Status != p.PreviousStatus
}

// GoalWindow is the window whose total is the goal's current value. Absolute
// goals accumulate from the baseline date (or creation) up to now. Reduction
// goals do not: they compare the trailing BaselinePeriodDays against the
// baseline, which was captured over a period of the same length, so a goal
// created yesterday is not measured on a single day of activity.
func GoalWindow(goal Goal, now time.Time, loc *time.Location) (Window, error) {
	if goal.Type == GoalReductionPercentage {
		return TrailingDays(now, BaselinePeriodDays, loc), nil
	}
	start := goal.CreatedAt
	if goal.BaselineDate != nil {
		start = *goal.BaselineDate
	}
	if start.After(now) {
		start = now
	}
	return NewWindow(start, now, loc)
}

// ComputeGoalProgress evaluates goal against the summary of its window.
// TargetDate is the last instant the goal may complete, normally the end of
// the target day. A completed or expired goal keeps its status; an active one
// completes when the fraction reaches one on or before TargetDate and expires
// once TargetDate has passed.
func ComputeGoalProgress(goal Goal, summary Summary, now time.Time) (GoalProgress, error) {
	if !goal.Type.Valid() {
		return GoalProgress{}, fmt.Errorf("%w: unknown goal type %q", ErrInvalidGoal, goal.Type)
	}
	if goal.TargetValue <= 0 {
		return GoalProgress{}, fmt.Errorf("%w: target value must be positive", ErrInvalidGoal)
	}
	status := goal.Status
	if status == "" {
		status = GoalActive
	}

	current := decimal.NewFromFloat(summary.TotalCO2)
	target := decimal.NewFromFloat(goal.TargetValue)
	progress := GoalProgress{
		GoalID:         goal.ID,
		GoalType:       goal.Type,
		CurrentValue:   summary.TotalCO2,
		TargetValue:    goal.TargetValue,
		PreviousStatus: status,
		Status:         status,
		DaysRemaining:  daysUntil(now, goal.TargetDate),
	}

	var fraction decimal.Decimal
	switch goal.Type {
	case GoalAbsoluteTarget:
		fraction = current.Div(target)
	case GoalReductionPercentage:
		progress.BaselineValue = goal.BaselineValue
		baseline := decimal.NewFromFloat(goal.BaselineValue)
		if baseline.IsPositive() {
			achieved := baseline.Sub(current).Div(baseline).Mul(decimal.NewFromInt(100))
			reduction := achieved.Round(Places).InexactFloat64()
			progress.ReductionPercent = &reduction
			fraction = achieved.Div(target)
		}
	}

	progress.Fraction = fraction.Round(4).InexactFloat64()
	progress.ProgressPercent = clampPercent(fraction.Mul(decimal.NewFromInt(100))).Round(Places).InexactFloat64()

	if status != GoalActive {
		return progress, nil
	}
	switch {
	case now.After(goal.TargetDate):
		progress.Status = GoalExpired
	case fraction.GreaterThanOrEqual(decimal.NewFromInt(1)):
		progress.Status = GoalCompleted
	}
	return progress, nil
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	switch {
	case p.IsNegative():
		return decimal.Zero
	case p.GreaterThan(hundred):
		return hundred
	default:
		return p
	}
}

func daysUntil(now, target time.Time) int {
	if !target.After(now) {
		return 0
	}
	return int(target.Sub(now).Hours() / 24)
}
