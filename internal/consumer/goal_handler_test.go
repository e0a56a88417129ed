package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/footprint/internal/events"
	"example.com/footprint/internal/stats"
)

type stubEvaluator struct {
	tenant, owner string
	loc           *time.Location
	calls         int
	result        []stats.GoalProgress
	err           error
}

func (s *stubEvaluator) EvaluateActiveGoals(_ context.Context, tenantID, ownerID string, loc *time.Location) ([]stats.GoalProgress, error) {
	s.calls++
	s.tenant, s.owner, s.loc = tenantID, ownerID, loc
	return s.result, s.err
}

func emissionMessage(t *testing.T, payload events.EmissionLogged) Message {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return Message{EventType: events.TypeEmissionLogged, TenantID: "tenant-h", Payload: body}
}

func TestGoalEvaluationHandlerEvaluatesOwner(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	evaluator := &stubEvaluator{result: []stats.GoalProgress{{GoalID: "g1", Status: stats.GoalCompleted, PreviousStatus: stats.GoalActive}}}
	handler := NewGoalEvaluationHandler(evaluator, tokyo)

	msg := emissionMessage(t, events.EmissionLogged{RecordID: "r1", TenantID: "tenant-p", OwnerID: "owner-1", CO2Kg: 3})
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Equal(t, 1, evaluator.calls)
	require.Equal(t, "tenant-p", evaluator.tenant)
	require.Equal(t, "owner-1", evaluator.owner)
	require.Equal(t, tokyo, evaluator.loc)
}

func TestGoalEvaluationHandlerFallsBackToHeaderTenant(t *testing.T) {
	evaluator := &stubEvaluator{}
	handler := NewGoalEvaluationHandler(evaluator, nil)

	require.NoError(t, handler.Handle(context.Background(), emissionMessage(t, events.EmissionLogged{OwnerID: "owner-1"})))
	require.Equal(t, "tenant-h", evaluator.tenant)
	require.Equal(t, time.UTC, evaluator.loc)
}

func TestGoalEvaluationHandlerIgnoresOtherEvents(t *testing.T) {
	evaluator := &stubEvaluator{}
	handler := NewGoalEvaluationHandler(evaluator, time.UTC)

	err := handler.Handle(context.Background(), Message{EventType: events.TypeGoalStatusChanged, Payload: json.RawMessage(`not json`)})
	require.NoError(t, err)
	require.Zero(t, evaluator.calls)
}

func TestGoalEvaluationHandlerErrors(t *testing.T) {
	handler := NewGoalEvaluationHandler(&stubEvaluator{}, time.UTC)
	require.Error(t, handler.Handle(context.Background(), Message{EventType: events.TypeEmissionLogged, Payload: json.RawMessage(`{`)}))

	noOwner := emissionMessage(t, events.EmissionLogged{TenantID: "t"})
	require.ErrorContains(t, handler.Handle(context.Background(), noOwner), "missing tenant or owner")

	storeErr := errors.New("db down")
	failing := NewGoalEvaluationHandler(&stubEvaluator{err: storeErr}, time.UTC)
	require.ErrorIs(t, failing.Handle(context.Background(), emissionMessage(t, events.EmissionLogged{TenantID: "t", OwnerID: "o"})), storeErr)
}
