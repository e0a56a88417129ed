package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/footprint/internal/events"
	"example.com/footprint/internal/stats"
)

// GoalEvaluator re-evaluates an owner's active goals.
type GoalEvaluator interface {
	EvaluateActiveGoals(ctx context.Context, tenantID, ownerID string, loc *time.Location) ([]stats.GoalProgress, error)
}

// GoalEvaluationHandler re-evaluates goals whenever a new emission is logged.
type GoalEvaluationHandler struct {
	evaluator GoalEvaluator
	location  *time.Location
}

// NewGoalEvaluationHandler constructs the handler. Windows are computed in loc.
func NewGoalEvaluationHandler(evaluator GoalEvaluator, loc *time.Location) *GoalEvaluationHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &GoalEvaluationHandler{evaluator: evaluator, location: loc}
}

// Handle ignores every event type except emission.logged.
func (h *GoalEvaluationHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeEmissionLogged {
		return nil
	}

	var payload events.EmissionLogged
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	tenantID := payload.TenantID
	if tenantID == "" {
		tenantID = msg.TenantID
	}
	if tenantID == "" || payload.OwnerID == "" {
		return fmt.Errorf("%s payload missing tenant or owner", msg.EventType)
	}

	progress, err := h.evaluator.EvaluateActiveGoals(ctx, tenantID, payload.OwnerID, h.location)
	if err != nil {
		return fmt.Errorf("evaluate goals for %s: %w", payload.OwnerID, err)
	}

	log := zerolog.Ctx(ctx)
	for _, p := range progress {
		if p.Transitioned() {
			log.Info().
				Str("goal_id", p.GoalID).
				Str("from", string(p.PreviousStatus)).
				Str("to", string(p.Status)).
				Float64("progress_percent", p.ProgressPercent).
				Msg("goal status changed")
		}
	}
	return nil
}
