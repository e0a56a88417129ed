// Package api exposes HTTP handlers for the footprint service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"example.com/footprint/internal/auth"
	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/stats"
)

const dateLayout = "2006-01-02"

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{service: service, validate: v}
}

// RegisterRoutes wires endpoints to the router. Authentication is expected to
// run before these routes; scopes are enforced per group.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", healthz)

	r.Route("/v1/emissions", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopeEmissionsWrite))
			r.Post("/", h.logEmission)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopeEmissionsRead))
			r.Get("/categories", h.categories)
			r.Post("/calculate", h.calculate)
			r.Get("/", h.listEmissions)
			r.Get("/summary", h.summary)
			r.Get("/dashboard", h.dashboard)
			r.Get("/breakdown", h.breakdown)
			r.Get("/daily", h.daily)
			r.Get("/{id}", h.getEmission)
		})
	})

	r.Route("/v1/goals", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopeGoalsWrite))
			r.Post("/", h.createGoal)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopeGoalsRead))
			r.Get("/", h.listGoals)
			r.Get("/{id}", h.getGoal)
			r.Get("/{id}/progress", h.goalProgress)
		})
	})
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// callerFrom returns the authenticated claims. RequireScope has already
// rejected requests without them.
func callerFrom(r *http.Request) *auth.Claims {
	claims, _ := auth.FromContext(r.Context())
	return claims
}

// decode parses the JSON body into dst and runs struct validation.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, validationProblem(err))
		return false
	}
	return true
}

func validationProblem(err error) Problem {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Problem{Type: "validation_failed", Detail: err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return Problem{Type: "validation_failed", Detail: strings.Join(msgs, "; "), Field: verrs[0].Field()}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be > %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// writeServiceError maps domain and engine errors onto HTTP problems.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *emissions.Error
	switch {
	case errors.As(err, &verr):
		writeProblem(w, http.StatusUnprocessableEntity, Problem{
			Type:   problemType(verr.Kind),
			Detail: verr.Error(),
			Field:  verr.Field,
		})
	case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrGoalNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, stats.ErrInvalidRange), errors.Is(err, stats.ErrInvalidGoal), errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func problemType(kind error) string {
	switch {
	case errors.Is(kind, emissions.ErrUnsupportedCategory):
		return "unsupported_category"
	case errors.Is(kind, emissions.ErrUnsupportedSubcategory):
		return "unsupported_subcategory"
	case errors.Is(kind, emissions.ErrUnsupportedUnit):
		return "unsupported_unit"
	case errors.Is(kind, emissions.ErrInvalidQuantity):
		return "invalid_quantity"
	default:
		return "unprocessable_entity"
	}
}

// windowParams reads start, end, category and tz from the query string.
func (h *Handler) windowParams(r *http.Request, claims *auth.Claims) (domain.WindowInput, error) {
	q := r.URL.Query()
	loc, err := h.locationParam(r)
	if err != nil {
		return domain.WindowInput{}, err
	}
	start, err := dateParam(q.Get("start"), "start", loc)
	if err != nil {
		return domain.WindowInput{}, err
	}
	end, err := dateParam(q.Get("end"), "end", loc)
	if err != nil {
		return domain.WindowInput{}, err
	}
	return domain.WindowInput{
		TenantID: claims.TenantID,
		OwnerID:  claims.Subject,
		Start:    start,
		End:      end,
		Category: q.Get("category"),
		Location: loc,
	}, nil
}

func dateParam(raw, name string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s parameter", domain.ErrInvalidInput, name)
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be formatted %s", domain.ErrInvalidInput, name, dateLayout)
	}
	return t, nil
}

// locationParam returns the tz query parameter, or the service's reporting
// timezone when it is absent.
func (h *Handler) locationParam(r *http.Request) (*time.Location, error) {
	name := strings.TrimSpace(r.URL.Query().Get("tz"))
	if name == "" {
		return h.service.Location(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidInput, name)
	}
	return loc, nil
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeProblem(w, status, Problem{Type: code, Detail: detail})
}

func writeProblem(w http.ResponseWriter, status int, p Problem) {
	writeJSON(w, status, p)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
