package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/stats"
)

func (h *Handler) createGoal(w http.ResponseWriter, r *http.Request) {
	claims := callerFrom(r)

	var req CreateGoalRequest
	if !h.decode(w, r, &req) {
		return
	}
	loc, err := h.locationParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	input := domain.CreateGoalInput{
		TenantID:      claims.TenantID,
		OwnerID:       claims.Subject,
		Title:         req.Title,
		GoalType:      stats.GoalType(req.GoalType),
		TargetValue:   req.TargetValue,
		BaselineValue: req.BaselineValue,
		Category:      req.Category,
		Location:      loc,
	}
	// Validation has already checked both layouts.
	input.TargetDate, _ = time.ParseInLocation(dateLayout, req.TargetDate, loc)
	if req.BaselineDate != "" {
		baseline, _ := time.ParseInLocation(dateLayout, req.BaselineDate, loc)
		input.BaselineDate = &baseline
	}

	goal, err := h.service.CreateGoal(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalView(*goal))
}

func (h *Handler) getGoal(w http.ResponseWriter, r *http.Request) {
	goal, ok := h.ownedGoal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toGoalView(*goal))
}

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	claims := callerFrom(r)

	status := stats.GoalStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	switch status {
	case "", stats.GoalActive, stats.GoalCompleted, stats.GoalExpired:
	default:
		writeError(w, http.StatusBadRequest, "validation_failed", "status must be one of [active completed expired]")
		return
	}

	goals, err := h.service.ListGoals(r.Context(), claims.TenantID, claims.Subject, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]GoalView, 0, len(goals))
	for _, goal := range goals {
		items = append(items, toGoalView(goal))
	}
	writeJSON(w, http.StatusOK, ListGoalsResponse{Items: items})
}

func (h *Handler) goalProgress(w http.ResponseWriter, r *http.Request) {
	goal, ok := h.ownedGoal(w, r)
	if !ok {
		return
	}
	loc, err := h.locationParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	progress, err := h.service.EvaluateGoal(r.Context(), goal.TenantID, goal.ID, loc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// ownedGoal loads the goal named in the path and hides goals of other owners.
func (h *Handler) ownedGoal(w http.ResponseWriter, r *http.Request) (*domain.Goal, bool) {
	claims := callerFrom(r)
	goal, err := h.service.GetGoal(r.Context(), claims.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	if goal.OwnerID != claims.Subject {
		writeError(w, http.StatusNotFound, "not_found", domain.ErrGoalNotFound.Error())
		return nil, false
	}
	return goal, true
}
