package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/events"
	"example.com/footprint/internal/stats"
)

const goalColumns = `goal_id::text, tenant_id, owner_id, title, goal_type, target_value::float8, baseline_value::float8,
        COALESCE(category, ''), baseline_date, target_date, status, created_at, updated_at, completed_at`

func scanGoal(row pgx.Row) (domain.Goal, error) {
	var (
		g          domain.Goal
		goalType   string
		goalStatus string
	)
	err := row.Scan(&g.ID, &g.TenantID, &g.OwnerID, &g.Title, &goalType, &g.TargetValue, &g.BaselineValue,
		&g.Category, &g.BaselineDate, &g.TargetDate, &goalStatus, &g.CreatedAt, &g.UpdatedAt, &g.CompletedAt)
	g.GoalType = stats.GoalType(goalType)
	g.Status = stats.GoalStatus(goalStatus)
	return g, err
}

// CreateGoal stores a new goal.
func (r *Repository) CreateGoal(ctx context.Context, goal domain.Goal) error {
	const stmt = `INSERT INTO goals (goal_id, tenant_id, owner_id, title, goal_type, target_value, baseline_value, category,
        baseline_date, target_date, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	return r.withTenant(ctx, goal.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt,
			goal.ID,
			goal.TenantID,
			goal.OwnerID,
			goal.Title,
			string(goal.GoalType),
			goal.TargetValue,
			goal.BaselineValue,
			nullIfEmpty(goal.Category),
			goal.BaselineDate,
			goal.TargetDate,
			string(goal.Status),
			goal.CreatedAt,
			goal.UpdatedAt,
		)
		return err
	})
}

// GetGoal retrieves a goal by ID.
func (r *Repository) GetGoal(ctx context.Context, tenantID, goalID string) (*domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE tenant_id=$1 AND goal_id::text=$2`

	var found *domain.Goal
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		g, err := scanGoal(tx.QueryRow(ctx, query, tenantID, goalID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &g
		return nil
	})
	return found, err
}

// ListGoals returns an owner's goals, newest first, optionally filtered by status.
func (r *Repository) ListGoals(ctx context.Context, tenantID, ownerID string, status stats.GoalStatus) ([]domain.Goal, error) {
	args := []any{tenantID, ownerID}
	query := `SELECT ` + goalColumns + ` FROM goals WHERE tenant_id=$1 AND owner_id=$2`
	if status != "" {
		query += ` AND status=$3`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	results := make([]domain.Goal, 0)
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			g, err := scanGoal(rows)
			if err != nil {
				return err
			}
			results = append(results, g)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// TransitionGoal moves an active goal to its new status and records a
// goal.status_changed outbox event in the same transaction. It reports false
// when the goal had already left the active state.
func (r *Repository) TransitionGoal(ctx context.Context, goal domain.Goal, transition domain.GoalTransition) (bool, error) {
	const stmt = `UPDATE goals
        SET status=$3, updated_at=$4, completed_at=CASE WHEN $3='completed' THEN $4 ELSE completed_at END
        WHERE tenant_id=$1 AND goal_id::text=$2 AND status='active'`

	applied := false
	err := r.withTenant(ctx, goal.TenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, goal.TenantID, goal.ID, string(transition.To), transition.ChangedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true

		return insertOutbox(ctx, tx, outboxEvent{
			TenantID:      goal.TenantID,
			AggregateType: "goal",
			AggregateID:   goal.ID,
			OwnerID:       goal.OwnerID,
			EventType:     events.TypeGoalStatusChanged,
			Payload: events.GoalStatusChanged{
				GoalID:       goal.ID,
				TenantID:     goal.TenantID,
				OwnerID:      goal.OwnerID,
				From:         string(transition.From),
				To:           string(transition.To),
				CurrentValue: transition.CurrentValue,
				Progress:     transition.Progress,
				ChangedAt:    transition.ChangedAt,
			},
		})
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
