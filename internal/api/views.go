package api

import (
	"time"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/stats"
)

// Problem is the error body returned by every endpoint.
type Problem struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

// CalculateRequest is the payload for POST /v1/emissions/calculate.
type CalculateRequest struct {
	Category    string   `json:"category" validate:"required"`
	Subcategory string   `json:"subcategory"`
	Quantity    *float64 `json:"quantity" validate:"required"`
	Unit        string   `json:"unit" validate:"required"`
}

// CalculateResponse carries a resolved figure that was not stored.
type CalculateResponse struct {
	CO2Emissions  float64               `json:"co2_emissions"`
	CanonicalUnit string                `json:"canonical_unit"`
	FactorVersion string                `json:"factor_version"`
	Equivalents   emissions.Equivalents `json:"equivalents"`
}

// CategoriesResponse is the factor table metadata.
type CategoriesResponse struct {
	Version    string                   `json:"version"`
	Categories []emissions.CategoryInfo `json:"categories"`
}

// LogEmissionRequest is the payload for POST /v1/emissions.
type LogEmissionRequest struct {
	Category    string     `json:"category" validate:"required"`
	Subcategory string     `json:"subcategory"`
	Quantity    *float64   `json:"quantity" validate:"required"`
	Unit        string     `json:"unit" validate:"required"`
	OccurredAt  *time.Time `json:"occurred_at"`
	Description string     `json:"description" validate:"max=500"`
}

// LogEmissionResponse describes the stored record.
type LogEmissionResponse struct {
	Emission EmissionView `json:"emission"`
	Replay   bool         `json:"idempotent_replay"`
}

// EmissionView exposes an activity record.
type EmissionView struct {
	ID            string    `json:"id"`
	Category      string    `json:"category"`
	Subcategory   string    `json:"subcategory,omitempty"`
	Quantity      float64   `json:"quantity"`
	Unit          string    `json:"unit"`
	CO2Equivalent float64   `json:"co2_equivalent"`
	FactorVersion string    `json:"factor_version"`
	OccurredAt    time.Time `json:"occurred_at"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListEmissionsResponse packages list results.
type ListEmissionsResponse struct {
	Items      []EmissionView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// BreakdownResponse lists per-category totals.
type BreakdownResponse struct {
	Categories []stats.CategoryTotal `json:"categories"`
}

// DailyResponse lists per-day totals.
type DailyResponse struct {
	Days []stats.DayTotal `json:"days"`
}

// TrendView pairs two windows with their comparison.
type TrendView struct {
	Current  stats.Summary `json:"current"`
	Previous stats.Summary `json:"previous"`
	Trend    stats.Trend   `json:"trend"`
}

// DashboardView is the body of GET /v1/emissions/dashboard.
type DashboardView struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Daily       TrendView             `json:"daily"`
	Weekly      TrendView             `json:"weekly"`
	Monthly     TrendView             `json:"monthly"`
	Equivalents emissions.Equivalents `json:"equivalents"`
}

// CreateGoalRequest is the payload for POST /v1/goals. Dates are calendar
// days in the tz query parameter, the reporting timezone when absent.
type CreateGoalRequest struct {
	Title         string   `json:"title" validate:"required,max=200"`
	GoalType      string   `json:"goal_type" validate:"required,oneof=absolute_target reduction_percentage"`
	TargetValue   float64  `json:"target_value" validate:"gt=0"`
	BaselineValue *float64 `json:"baseline_value" validate:"omitempty,gte=0"`
	Category      string   `json:"category"`
	BaselineDate  string   `json:"baseline_date" validate:"omitempty,datetime=2006-01-02"`
	TargetDate    string   `json:"target_date" validate:"required,datetime=2006-01-02"`
}

// GoalView exposes a stored goal.
type GoalView struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	GoalType      string     `json:"goal_type"`
	TargetValue   float64    `json:"target_value"`
	BaselineValue float64    `json:"baseline_value,omitempty"`
	Category      string     `json:"category,omitempty"`
	BaselineDate  *time.Time `json:"baseline_date,omitempty"`
	TargetDate    time.Time  `json:"target_date"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// ListGoalsResponse packages goal list results.
type ListGoalsResponse struct {
	Items []GoalView `json:"items"`
}

func toEmissionView(r domain.ActivityRecord) EmissionView {
	return EmissionView{
		ID:            r.ID,
		Category:      r.Category,
		Subcategory:   r.Subcategory,
		Quantity:      r.Quantity,
		Unit:          r.Unit,
		CO2Equivalent: r.CO2Equivalent,
		FactorVersion: r.FactorVersion,
		OccurredAt:    r.OccurredAt,
		Description:   r.Description,
		CreatedAt:     r.CreatedAt,
	}
}

func toGoalView(g domain.Goal) GoalView {
	return GoalView{
		ID:            g.ID,
		Title:         g.Title,
		GoalType:      string(g.GoalType),
		TargetValue:   g.TargetValue,
		BaselineValue: g.BaselineValue,
		Category:      g.Category,
		BaselineDate:  g.BaselineDate,
		TargetDate:    g.TargetDate,
		Status:        string(g.Status),
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		CompletedAt:   g.CompletedAt,
	}
}

func toDashboardView(d domain.Dashboard) DashboardView {
	return DashboardView{
		GeneratedAt: d.GeneratedAt,
		Daily:       TrendView{Current: d.Today, Previous: d.Yesterday, Trend: d.DailyTrend},
		Weekly:      TrendView{Current: d.Week, Previous: d.PreviousWeek, Trend: d.WeeklyTrend},
		Monthly:     TrendView{Current: d.Month, Previous: d.PreviousMonth, Trend: d.MonthlyTrend},
		Equivalents: d.Equivalents,
	}
}
