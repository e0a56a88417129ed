package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/persistence"
)

func (h *Handler) categories(w http.ResponseWriter, _ *http.Request) {
	table := h.service.Resolver().Table()
	writeJSON(w, http.StatusOK, CategoriesResponse{
		Version:    table.Version(),
		Categories: table.Catalog(),
	})
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}

	preview, err := h.service.PreviewEmission(emissions.Activity{
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Quantity:    *req.Quantity,
		Unit:        req.Unit,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CalculateResponse{
		CO2Emissions:  preview.CO2Kg,
		CanonicalUnit: preview.CanonicalUnit,
		FactorVersion: preview.FactorVersion,
		Equivalents:   preview.Equivalents,
	})
}

func (h *Handler) logEmission(w http.ResponseWriter, r *http.Request) {
	claims := callerFrom(r)

	var req LogEmissionRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := domain.LogActivityInput{
		TenantID:       claims.TenantID,
		OwnerID:        claims.Subject,
		Category:       req.Category,
		Subcategory:    req.Subcategory,
		Quantity:       *req.Quantity,
		Unit:           req.Unit,
		Description:    req.Description,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.OccurredAt != nil {
		input.OccurredAt = *req.OccurredAt
	}

	record, replay, err := h.service.LogActivity(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, LogEmissionResponse{
		Emission: toEmissionView(*record),
		Replay:   replay,
	})
}

func (h *Handler) getEmission(w http.ResponseWriter, r *http.Request) {
	claims := callerFrom(r)

	record, err := h.service.GetActivity(r.Context(), claims.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if record.OwnerID != claims.Subject {
		writeError(w, http.StatusNotFound, "not_found", domain.ErrRecordNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, toEmissionView(*record))
}

func (h *Handler) listEmissions(w http.ResponseWriter, r *http.Request) {
	claims := callerFrom(r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.service.ListActivities(r.Context(), claims.TenantID, claims.Subject, cursor, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]EmissionView, 0, len(records))
	for _, record := range records {
		items = append(items, toEmissionView(record))
	}
	writeJSON(w, http.StatusOK, ListEmissionsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	input, err := h.windowParams(r, callerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	summary, err := h.service.ComputeSummary(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) breakdown(w http.ResponseWriter, r *http.Request) {
	input, err := h.windowParams(r, callerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	totals, err := h.service.CategoryBreakdown(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BreakdownResponse{Categories: totals})
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	input, err := h.windowParams(r, callerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	days, err := h.service.DailySeries(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DailyResponse{Days: days})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	claims := callerFrom(r)
	loc, err := h.locationParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	d, err := h.service.Dashboard(r.Context(), claims.TenantID, claims.Subject, loc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardView(d))
}
