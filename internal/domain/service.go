// Package domain defines the business logic for the footprint service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/observability"
	"example.com/footprint/internal/stats"
)

var (
	// ErrRecordNotFound is returned when an activity record cannot be located.
	ErrRecordNotFound = errors.New("activity record not found")
	// ErrGoalNotFound is returned when a goal cannot be located.
	ErrGoalNotFound = errors.New("goal not found")
	// ErrInvalidInput covers missing identifiers and malformed service input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIdempotencyConflict is returned by RecordRepository.Create when another
	// record already holds the idempotency key.
	ErrIdempotencyConflict = errors.New("idempotency key already used")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithResolver overrides the factor resolver.
func WithResolver(resolver *emissions.Resolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

// WithLocation sets the reporting timezone used when a request names none.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Service orchestrates emission logging, aggregation and goal workflows.
type Service struct {
	records  RecordRepository
	goals    GoalRepository
	resolver *emissions.Resolver
	now      func() time.Time
	loc      *time.Location
}

// NewService constructs a Service.
func NewService(records RecordRepository, goals GoalRepository, opts ...Option) *Service {
	s := &Service{
		records:  records,
		goals:    goals,
		resolver: emissions.NewResolver(nil),
		now:      func() time.Time { return time.Now().UTC() },
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver exposes the resolver backing the service.
func (s *Service) Resolver() *emissions.Resolver {
	return s.resolver
}

// Location is the reporting timezone used when a caller supplies none.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Preview is the result of a calculation that is not persisted.
type Preview struct {
	CO2Kg         float64
	CanonicalUnit string
	FactorVersion string
	Equivalents   emissions.Equivalents
}

// PreviewEmission resolves an activity without storing it.
func (s *Service) PreviewEmission(in emissions.Activity) (Preview, error) {
	kg, err := s.resolver.Resolve(in)
	if err != nil {
		return Preview{}, err
	}
	canonical, err := s.resolver.CanonicalUnit(in.Category)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		CO2Kg:         kg,
		CanonicalUnit: canonical,
		FactorVersion: s.resolver.Table().Version(),
		Equivalents:   emissions.Equivalence(kg),
	}, nil
}

// LogActivityInput captures the payload from the API layer.
type LogActivityInput struct {
	TenantID       string
	OwnerID        string
	Category       string
	Subcategory    string
	Quantity       float64
	Unit           string
	OccurredAt     time.Time
	Description    string
	IdempotencyKey string
}

// LogActivity resolves the CO2 equivalent and stores the record. A repeated
// idempotency key returns the stored record and true.
func (s *Service) LogActivity(ctx context.Context, input LogActivityInput) (*ActivityRecord, bool, error) {
	if err := requireOwner(input.TenantID, input.OwnerID); err != nil {
		return nil, false, err
	}
	existing, err := s.records.FindByIdempotency(ctx, input.TenantID, input.OwnerID, input.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("find idempotent record: %w", err)
	}
	if existing != nil {
		return existing, true, nil
	}

	activity := emissions.Activity{
		Category:    input.Category,
		Subcategory: input.Subcategory,
		Quantity:    input.Quantity,
		Unit:        input.Unit,
	}
	kg, err := s.resolver.Resolve(activity)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	record := ActivityRecord{
		ID:            uuid.NewString(),
		TenantID:      input.TenantID,
		OwnerID:       input.OwnerID,
		Category:      strings.ToLower(strings.TrimSpace(input.Category)),
		Subcategory:   strings.ToLower(strings.TrimSpace(input.Subcategory)),
		Quantity:      input.Quantity,
		Unit:          strings.TrimSpace(input.Unit),
		CO2Equivalent: kg,
		FactorVersion: s.resolver.Table().Version(),
		OccurredAt:    occurredAt.UTC(),
		Description:   strings.TrimSpace(input.Description),
		CreatedAt:     now,
	}

	if err := s.records.Create(ctx, record, input.IdempotencyKey); err != nil {
		if !errors.Is(err, ErrIdempotencyConflict) {
			return nil, false, fmt.Errorf("store activity record: %w", err)
		}
		// A concurrent request with the same key stored first.
		winner, findErr := s.records.FindByIdempotency(ctx, input.TenantID, input.OwnerID, input.IdempotencyKey)
		if findErr != nil {
			return nil, false, fmt.Errorf("find idempotent record: %w", findErr)
		}
		if winner == nil {
			return nil, false, fmt.Errorf("store activity record: %w", err)
		}
		return winner, true, nil
	}
	observability.RecordEmissionLogged(record.Category, record.CO2Equivalent, record.CreatedAt)
	zerolog.Ctx(ctx).Debug().
		Str("record_id", record.ID).
		Str("activity", emissions.Describe(activity)).
		Float64("co2_kg", kg).
		Msg("activity logged")

	return &record, false, nil
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, tenantID, recordID string) (*ActivityRecord, error) {
	record, err := s.records.Get(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

// ListActivities fetches an owner's records newest first with cursor pagination.
func (s *Service) ListActivities(ctx context.Context, tenantID, ownerID string, cursor *Cursor, limit int) ([]ActivityRecord, *Cursor, error) {
	if err := requireOwner(tenantID, ownerID); err != nil {
		return nil, nil, err
	}
	return s.records.ListByOwner(ctx, tenantID, ownerID, cursor, clampLimit(limit))
}

// WindowInput names a date range for one owner. Start and End are calendar
// dates evaluated in Location, or in the service's reporting timezone when nil.
type WindowInput struct {
	TenantID string
	OwnerID  string
	Start    time.Time
	End      time.Time
	Category string
	Location *time.Location
}

// ComputeSummary aggregates an owner's records over an inclusive date range.
func (s *Service) ComputeSummary(ctx context.Context, input WindowInput) (stats.Summary, error) {
	q, err := s.windowQuery(input)
	if err != nil {
		return stats.Summary{}, err
	}
	return s.summarize(ctx, input.TenantID, q)
}

// CategoryBreakdown returns per-category totals over an inclusive date range.
func (s *Service) CategoryBreakdown(ctx context.Context, input WindowInput) ([]stats.CategoryTotal, error) {
	q, err := s.windowQuery(input)
	if err != nil {
		return nil, err
	}
	entries, err := s.fetch(ctx, input.TenantID, q)
	if err != nil {
		return nil, err
	}
	return stats.Breakdown(q, entries)
}

// DailySeries returns per-day totals over an inclusive date range.
func (s *Service) DailySeries(ctx context.Context, input WindowInput) ([]stats.DayTotal, error) {
	q, err := s.windowQuery(input)
	if err != nil {
		return nil, err
	}
	entries, err := s.fetch(ctx, input.TenantID, q)
	if err != nil {
		return nil, err
	}
	return stats.Daily(q, entries)
}

// Dashboard bundles the standard windows with their period-over-period trends.
type Dashboard struct {
	GeneratedAt   time.Time
	Today         stats.Summary
	Yesterday     stats.Summary
	Week          stats.Summary
	PreviousWeek  stats.Summary
	Month         stats.Summary
	PreviousMonth stats.Summary
	DailyTrend    stats.Trend
	WeeklyTrend   stats.Trend
	MonthlyTrend  stats.Trend
	Equivalents   emissions.Equivalents
}

// Dashboard summarises today, yesterday, this and last week, this and last
// month. The windows are independent and are fetched concurrently.
func (s *Service) Dashboard(ctx context.Context, tenantID, ownerID string, loc *time.Location) (Dashboard, error) {
	if err := requireOwner(tenantID, ownerID); err != nil {
		return Dashboard{}, err
	}
	loc = s.location(loc)
	now := s.now()

	d := Dashboard{GeneratedAt: now}
	windows := []struct {
		window stats.Window
		out    *stats.Summary
	}{
		{stats.Today(now, loc), &d.Today},
		{stats.Yesterday(now, loc), &d.Yesterday},
		{stats.TrailingWeek(now, loc), &d.Week},
		{stats.PreviousWeek(now, loc), &d.PreviousWeek},
		{stats.CalendarMonth(now, loc), &d.Month},
		{stats.PreviousMonth(now, loc), &d.PreviousMonth},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range windows {
		g.Go(func() error {
			summary, err := s.summarize(gctx, tenantID, stats.Query{OwnerID: ownerID, Window: w.window})
			if err != nil {
				return err
			}
			*w.out = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d.DailyTrend = stats.CompareSummaries(d.Today, d.Yesterday)
	d.WeeklyTrend = stats.CompareSummaries(d.Week, d.PreviousWeek)
	d.MonthlyTrend = stats.CompareSummaries(d.Month, d.PreviousMonth)
	d.Equivalents = emissions.Equivalence(d.Month.TotalCO2)
	return d, nil
}

// CreateGoalInput captures a new goal.
type CreateGoalInput struct {
	TenantID      string
	OwnerID       string
	Title         string
	GoalType      stats.GoalType
	TargetValue   float64
	BaselineValue *float64
	Category      string
	BaselineDate  *time.Time
	TargetDate    time.Time
	Location      *time.Location
}

// CreateGoal validates and stores a goal. A reduction goal without an explicit
// baseline captures the owner's total over the baseline period before today.
func (s *Service) CreateGoal(ctx context.Context, input CreateGoalInput) (*Goal, error) {
	if err := requireOwner(input.TenantID, input.OwnerID); err != nil {
		return nil, err
	}
	if !input.GoalType.Valid() {
		return nil, fmt.Errorf("%w: unknown goal type %q", stats.ErrInvalidGoal, input.GoalType)
	}
	if input.TargetValue <= 0 {
		return nil, fmt.Errorf("%w: target value must be positive", stats.ErrInvalidGoal)
	}
	if input.GoalType == stats.GoalReductionPercentage && input.TargetValue > 100 {
		return nil, fmt.Errorf("%w: reduction target cannot exceed 100 percent", stats.ErrInvalidGoal)
	}
	category := strings.ToLower(strings.TrimSpace(input.Category))
	if category != "" {
		if _, err := s.resolver.CanonicalUnit(category); err != nil {
			return nil, err
		}
	}

	now := s.now()
	loc := s.location(input.Location)
	// The whole target day counts.
	targetDate := stats.EndOfDay(input.TargetDate, loc)
	if targetDate.Before(now) {
		return nil, fmt.Errorf("%w: target date is in the past", stats.ErrInvalidGoal)
	}

	goal := Goal{
		ID:           uuid.NewString(),
		TenantID:     input.TenantID,
		OwnerID:      input.OwnerID,
		Title:        strings.TrimSpace(input.Title),
		GoalType:     input.GoalType,
		TargetValue:  input.TargetValue,
		Category:     category,
		BaselineDate: input.BaselineDate,
		TargetDate:   targetDate.UTC(),
		Status:       stats.GoalActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if goal.GoalType == stats.GoalReductionPercentage {
		switch {
		case input.BaselineValue != nil:
			if *input.BaselineValue < 0 {
				return nil, fmt.Errorf("%w: baseline value cannot be negative", stats.ErrInvalidGoal)
			}
			goal.BaselineValue = *input.BaselineValue
		default:
			window := stats.TrailingDays(now.In(loc).AddDate(0, 0, -1), stats.BaselinePeriodDays, loc)
			baseline, err := s.summarize(ctx, input.TenantID, stats.Query{OwnerID: input.OwnerID, Window: window, Category: category})
			if err != nil {
				return nil, err
			}
			goal.BaselineValue = baseline.TotalCO2
		}
	}

	if err := s.goals.CreateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("store goal: %w", err)
	}
	return &goal, nil
}

// GetGoal fetches a goal by ID.
func (s *Service) GetGoal(ctx context.Context, tenantID, goalID string) (*Goal, error) {
	goal, err := s.goals.GetGoal(ctx, tenantID, goalID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, ErrGoalNotFound
	}
	return goal, nil
}

// ListGoals returns an owner's goals, optionally restricted to one status.
func (s *Service) ListGoals(ctx context.Context, tenantID, ownerID string, status stats.GoalStatus) ([]Goal, error) {
	if err := requireOwner(tenantID, ownerID); err != nil {
		return nil, err
	}
	return s.goals.ListGoals(ctx, tenantID, ownerID, status)
}

// EvaluateGoal computes progress for a goal and persists a resulting status
// transition.
func (s *Service) EvaluateGoal(ctx context.Context, tenantID, goalID string, loc *time.Location) (stats.GoalProgress, error) {
	goal, err := s.GetGoal(ctx, tenantID, goalID)
	if err != nil {
		return stats.GoalProgress{}, err
	}
	return s.evaluate(ctx, *goal, s.location(loc))
}

// EvaluateActiveGoals evaluates every active goal of an owner.
func (s *Service) EvaluateActiveGoals(ctx context.Context, tenantID, ownerID string, loc *time.Location) ([]stats.GoalProgress, error) {
	goals, err := s.ListGoals(ctx, tenantID, ownerID, stats.GoalActive)
	if err != nil {
		return nil, err
	}
	out := make([]stats.GoalProgress, 0, len(goals))
	for _, goal := range goals {
		progress, err := s.evaluate(ctx, goal, s.location(loc))
		if err != nil {
			return nil, fmt.Errorf("evaluate goal %s: %w", goal.ID, err)
		}
		out = append(out, progress)
	}
	return out, nil
}

func (s *Service) evaluate(ctx context.Context, goal Goal, loc *time.Location) (stats.GoalProgress, error) {
	now := s.now()
	engineGoal := goal.engineGoal()

	window, err := stats.GoalWindow(engineGoal, now, loc)
	if err != nil {
		return stats.GoalProgress{}, err
	}
	summary, err := s.summarize(ctx, goal.TenantID, stats.Query{OwnerID: goal.OwnerID, Window: window, Category: goal.Category})
	if err != nil {
		return stats.GoalProgress{}, err
	}
	progress, err := stats.ComputeGoalProgress(engineGoal, summary, now)
	if err != nil {
		return stats.GoalProgress{}, err
	}
	if !progress.Transitioned() {
		return progress, nil
	}

	applied, err := s.goals.TransitionGoal(ctx, goal, GoalTransition{
		From:         progress.PreviousStatus,
		To:           progress.Status,
		CurrentValue: progress.CurrentValue,
		Progress:     progress.ProgressPercent,
		ChangedAt:    now,
	})
	if err != nil {
		return stats.GoalProgress{}, fmt.Errorf("store goal transition: %w", err)
	}
	if !applied {
		// Another evaluation already moved the goal out of active.
		stored, err := s.GetGoal(ctx, goal.TenantID, goal.ID)
		if err != nil {
			return stats.GoalProgress{}, err
		}
		progress.Status = stored.Status
		return progress, nil
	}

	observability.RecordGoalTransition(string(progress.Status))
	zerolog.Ctx(ctx).Info().
		Str("goal_id", goal.ID).
		Str("from", string(progress.PreviousStatus)).
		Str("to", string(progress.Status)).
		Float64("progress_percent", progress.ProgressPercent).
		Msg("goal status changed")
	return progress, nil
}

func (s *Service) windowQuery(input WindowInput) (stats.Query, error) {
	if err := requireOwner(input.TenantID, input.OwnerID); err != nil {
		return stats.Query{}, err
	}
	category := strings.ToLower(strings.TrimSpace(input.Category))
	if category != "" {
		if _, err := s.resolver.CanonicalUnit(category); err != nil {
			return stats.Query{}, err
		}
	}
	window, err := stats.DayRange(input.Start, input.End, s.location(input.Location))
	if err != nil {
		return stats.Query{}, err
	}
	return stats.Query{OwnerID: input.OwnerID, Window: window, Category: category}, nil
}

func (s *Service) summarize(ctx context.Context, tenantID string, q stats.Query) (stats.Summary, error) {
	entries, err := s.fetch(ctx, tenantID, q)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(q, entries)
}

func (s *Service) fetch(ctx context.Context, tenantID string, q stats.Query) ([]stats.Entry, error) {
	records, err := s.records.Query(ctx, RecordQuery{
		TenantID: tenantID,
		OwnerID:  q.OwnerID,
		Start:    q.Window.Start,
		End:      q.Window.End,
		Category: q.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("query activity records: %w", err)
	}
	return toEntries(records), nil
}

func (s *Service) location(loc *time.Location) *time.Location {
	if loc != nil {
		return loc
	}
	return s.loc
}

func requireOwner(tenantID, ownerID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
