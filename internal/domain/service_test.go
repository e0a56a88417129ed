package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/persistence/memory"
	"example.com/footprint/internal/stats"
)

const (
	tenant = "tenant-1"
	owner  = "owner-1"
)

func newService(t *testing.T, now time.Time) (*domain.Service, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	svc := domain.NewService(repo, repo, domain.WithClock(func() time.Time { return now }))
	return svc, repo
}

func logActivity(t *testing.T, svc *domain.Service, category, sub string, qty float64, unit string, at time.Time) *domain.ActivityRecord {
	t.Helper()
	record, replay, err := svc.LogActivity(context.Background(), domain.LogActivityInput{
		TenantID:    tenant,
		OwnerID:     owner,
		Category:    category,
		Subcategory: sub,
		Quantity:    qty,
		Unit:        unit,
		OccurredAt:  at,
	})
	require.NoError(t, err)
	require.False(t, replay)
	return record
}

func TestLogActivityResolvesAndStores(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, repo := newService(t, now)

	record := logActivity(t, svc, "Travel", "Car", 100, "km", now.Add(-time.Hour))
	assert.Equal(t, 21.0, record.CO2Equivalent)
	assert.Equal(t, "travel", record.Category)
	assert.Equal(t, "car", record.Subcategory)
	assert.Equal(t, "2024.1", record.FactorVersion)
	assert.Equal(t, now, record.CreatedAt)

	stored, err := repo.Get(context.Background(), tenant, record.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, *record, *stored)
}

func TestLogActivityDefaultsOccurredAtToNow(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)

	record := logActivity(t, svc, "electricity", "", 10, "kWh", time.Time{})
	assert.Equal(t, now, record.OccurredAt)
}

func TestLogActivityIdempotentReplay(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)
	input := domain.LogActivityInput{
		TenantID:       tenant,
		OwnerID:        owner,
		Category:       "fuel",
		Subcategory:    "gasoline",
		Quantity:       10,
		Unit:           "liters",
		IdempotencyKey: "key-1",
	}

	first, replay, err := svc.LogActivity(context.Background(), input)
	require.NoError(t, err)
	require.False(t, replay)

	second, replay, err := svc.LogActivity(context.Background(), input)
	require.NoError(t, err)
	require.True(t, replay)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 23.1, second.CO2Equivalent)
}

func TestLogActivityRejectsBeforePersisting(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, repo := newService(t, now)

	_, _, err := svc.LogActivity(context.Background(), domain.LogActivityInput{
		TenantID: tenant, OwnerID: owner, Category: "electricity", Quantity: 5, Unit: "gallons",
	})
	require.ErrorIs(t, err, emissions.ErrUnsupportedUnit)

	records, _, err := repo.ListByOwner(context.Background(), tenant, owner, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, _, err = svc.LogActivity(context.Background(), domain.LogActivityInput{TenantID: tenant, Category: "electricity", Quantity: 5, Unit: "kWh"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPreviewEmission(t *testing.T) {
	svc, _ := newService(t, time.Now())

	preview, err := svc.PreviewEmission(emissions.Activity{Category: "electricity", Quantity: 1, Unit: "MWh"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, preview.CO2Kg)
	assert.Equal(t, "kWh", preview.CanonicalUnit)
	assert.False(t, preview.Equivalents.IsEmpty)

	_, err = svc.PreviewEmission(emissions.Activity{Category: "travel", Subcategory: "rocket", Quantity: 1, Unit: "km"})
	require.ErrorIs(t, err, emissions.ErrUnsupportedSubcategory)
}

func TestListActivitiesPaginates(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)
	for i := 0; i < 5; i++ {
		logActivity(t, svc, "electricity", "", float64(i+1), "kWh", now.Add(-time.Duration(i)*time.Hour))
	}

	page, next, err := svc.ListActivities(context.Background(), tenant, owner, nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.NotNil(t, next)
	assert.Equal(t, 1.0, page[0].Quantity)

	rest, next, err := svc.ListActivities(context.Background(), tenant, owner, next, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Nil(t, next)
	assert.Equal(t, 5.0, rest[1].Quantity)
}

func TestGetActivityNotFound(t *testing.T) {
	svc, _ := newService(t, time.Now())
	_, err := svc.GetActivity(context.Background(), tenant, "missing")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestComputeSummary(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)

	logActivity(t, svc, "electricity", "", 100, "kWh", time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC))
	logActivity(t, svc, "travel", "bus", 100, "km", time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC))
	logActivity(t, svc, "waste", "recyclable", 10, "kg", time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC))
	logActivity(t, svc, "fuel", "gasoline", 10, "liters", time.Date(2024, 5, 31, 9, 0, 0, 0, time.UTC))

	summary, err := svc.ComputeSummary(context.Background(), domain.WindowInput{
		TenantID: tenant,
		OwnerID:  owner,
		Start:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalEntries)
	assert.Equal(t, 56.0, summary.TotalCO2)
	assert.Equal(t, 2, summary.UniqueDaysWithEntries)

	travel, err := svc.ComputeSummary(context.Background(), domain.WindowInput{
		TenantID: tenant,
		OwnerID:  owner,
		Start:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Category: "travel",
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, travel.TotalCO2)

	_, err = svc.ComputeSummary(context.Background(), domain.WindowInput{
		TenantID: tenant,
		OwnerID:  owner,
		Start:    time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, stats.ErrInvalidRange)

	_, err = svc.ComputeSummary(context.Background(), domain.WindowInput{
		TenantID: tenant, OwnerID: owner, Start: now, End: now, Category: "diet",
	})
	require.ErrorIs(t, err, emissions.ErrUnsupportedCategory)
}

func TestBreakdownAndDailySeries(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)
	logActivity(t, svc, "electricity", "", 100, "kWh", time.Date(2024, 6, 14, 8, 0, 0, 0, time.UTC))
	logActivity(t, svc, "travel", "car", 100, "km", time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC))

	input := domain.WindowInput{TenantID: tenant, OwnerID: owner, Start: now.AddDate(0, 0, -2), End: now}

	rows, err := svc.CategoryBreakdown(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "electricity", rows[0].Category)

	series, err := svc.DailySeries(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, []float64{0, 50, 21}, []float64{series[0].TotalCO2, series[1].TotalCO2, series[2].TotalCO2})
}

func TestDashboard(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)

	logActivity(t, svc, "electricity", "", 100, "kWh", now.Add(-2*time.Hour))                     // today 50
	logActivity(t, svc, "electricity", "", 200, "kWh", now.AddDate(0, 0, -1))                     // yesterday 100
	logActivity(t, svc, "travel", "car", 100, "km", time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)) // previous week 21
	logActivity(t, svc, "fuel", "diesel", 10, "liters", time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC))

	d, err := svc.Dashboard(context.Background(), tenant, owner, nil)
	require.NoError(t, err)

	assert.Equal(t, 50.0, d.Today.TotalCO2)
	assert.Equal(t, 100.0, d.Yesterday.TotalCO2)
	assert.Equal(t, 150.0, d.Week.TotalCO2)
	assert.Equal(t, 21.0, d.PreviousWeek.TotalCO2)
	assert.Equal(t, 171.0, d.Month.TotalCO2)
	assert.Equal(t, 26.8, d.PreviousMonth.TotalCO2)

	assert.Equal(t, stats.Trend{Current: 50, Previous: 100, PercentageChange: 50, IsImprovement: true}, d.DailyTrend)
	assert.False(t, d.WeeklyTrend.IsImprovement)
	assert.Equal(t, 614.3, d.WeeklyTrend.PercentageChange)
	assert.False(t, d.Equivalents.IsEmpty)
	assert.Equal(t, now, d.GeneratedAt)
}

func TestCreateGoalCapturesBaseline(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)

	logActivity(t, svc, "electricity", "", 400, "kWh", now.AddDate(0, 0, -10)) // 200 inside baseline
	logActivity(t, svc, "electricity", "", 400, "kWh", now.AddDate(0, 0, -45)) // outside
	logActivity(t, svc, "electricity", "", 400, "kWh", now.Add(-time.Hour))    // today is not baseline

	goal, err := svc.CreateGoal(context.Background(), domain.CreateGoalInput{
		TenantID:    tenant,
		OwnerID:     owner,
		Title:       "Cut electricity",
		GoalType:    stats.GoalReductionPercentage,
		TargetValue: 20,
		Category:    "electricity",
		TargetDate:  now.AddDate(0, 2, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 200.0, goal.BaselineValue)
	assert.Equal(t, stats.GoalActive, goal.Status)

	explicit := 1000.0
	goal, err = svc.CreateGoal(context.Background(), domain.CreateGoalInput{
		TenantID: tenant, OwnerID: owner, GoalType: stats.GoalReductionPercentage,
		TargetValue: 10, BaselineValue: &explicit, TargetDate: now.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, goal.BaselineValue)
}

func TestCreateGoalValidation(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)

	tests := []struct {
		name  string
		input domain.CreateGoalInput
		want  error
	}{
		{name: "unknown type", input: domain.CreateGoalInput{GoalType: "net_zero", TargetValue: 1, TargetDate: now.AddDate(0, 1, 0)}, want: stats.ErrInvalidGoal},
		{name: "non-positive target", input: domain.CreateGoalInput{GoalType: stats.GoalAbsoluteTarget, TargetValue: 0, TargetDate: now.AddDate(0, 1, 0)}, want: stats.ErrInvalidGoal},
		{name: "reduction above 100", input: domain.CreateGoalInput{GoalType: stats.GoalReductionPercentage, TargetValue: 120, TargetDate: now.AddDate(0, 1, 0)}, want: stats.ErrInvalidGoal},
		{name: "target date in the past", input: domain.CreateGoalInput{GoalType: stats.GoalAbsoluteTarget, TargetValue: 10, TargetDate: now.AddDate(0, 0, -1)}, want: stats.ErrInvalidGoal},
		{name: "unknown category", input: domain.CreateGoalInput{GoalType: stats.GoalAbsoluteTarget, TargetValue: 10, Category: "diet", TargetDate: now.AddDate(0, 1, 0)}, want: emissions.ErrUnsupportedCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.TenantID = tenant
			tt.input.OwnerID = owner
			_, err := svc.CreateGoal(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateGoalDueToday(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now)

	goal, err := svc.CreateGoal(context.Background(), domain.CreateGoalInput{
		TenantID: tenant, OwnerID: owner, GoalType: stats.GoalAbsoluteTarget,
		TargetValue: 10, TargetDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 23, 59, 59, 999999999, time.UTC), goal.TargetDate)
}

func TestGoalTargetDayStillCounts(t *testing.T) {
	created := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := memory.NewRepository()
	clock := created
	svc := domain.NewService(repo, repo, domain.WithClock(func() time.Time { return clock }))

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	goal, err := svc.CreateGoal(context.Background(), domain.CreateGoalInput{
		TenantID: tenant, OwnerID: owner, GoalType: stats.GoalAbsoluteTarget,
		TargetValue: 100, TargetDate: time.Date(2024, 6, 16, 0, 0, 0, 0, berlin), Location: berlin,
	})
	require.NoError(t, err)

	clock = time.Date(2024, 6, 16, 9, 0, 0, 0, berlin)
	progress, err := svc.EvaluateGoal(context.Background(), tenant, goal.ID, berlin)
	require.NoError(t, err)
	assert.Equal(t, stats.GoalActive, progress.Status)

	clock = time.Date(2024, 6, 17, 0, 30, 0, 0, berlin)
	progress, err = svc.EvaluateGoal(context.Background(), tenant, goal.ID, berlin)
	require.NoError(t, err)
	assert.Equal(t, stats.GoalExpired, progress.Status)
}

func TestEvaluateGoalCompletesOnce(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, repo := newService(t, now)

	goal, err := svc.CreateGoal(context.Background(), domain.CreateGoalInput{
		TenantID: tenant, OwnerID: owner, GoalType: stats.GoalAbsoluteTarget,
		TargetValue: 100, TargetDate: now.AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	logActivity(t, svc, "electricity", "", 200, "kWh", now) // 100 kg

	progress, err := svc.EvaluateGoal(context.Background(), tenant, goal.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, stats.GoalCompleted, progress.Status)
	assert.Equal(t, stats.GoalActive, progress.PreviousStatus)
	assert.Equal(t, 100.0, progress.ProgressPercent)

	stored, err := svc.GetGoal(context.Background(), tenant, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.GoalCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	progress, err = svc.EvaluateGoal(context.Background(), tenant, goal.ID, nil)
	require.NoError(t, err)
	assert.False(t, progress.Transitioned())
	assert.Len(t, repo.Transitions(), 1)
}

func TestEvaluateActiveGoalsExpires(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewRepository()
	clock := created
	svc := domain.NewService(repo, repo, domain.WithClock(func() time.Time { return clock }))

	goal, err := svc.CreateGoal(context.Background(), domain.CreateGoalInput{
		TenantID: tenant, OwnerID: owner, GoalType: stats.GoalAbsoluteTarget,
		TargetValue: 100, TargetDate: created.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	logActivity(t, svc, "electricity", "", 100, "kWh", created.Add(time.Hour)) // 50 kg

	clock = created.AddDate(0, 0, 8)
	results, err := svc.EvaluateActiveGoals(context.Background(), tenant, owner, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, goal.ID, results[0].GoalID)
	assert.Equal(t, stats.GoalExpired, results[0].Status)

	active, err := svc.ListGoals(context.Background(), tenant, owner, stats.GoalActive)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestStorageErrorsPropagate(t *testing.T) {
	boom := errors.New("connection refused")
	svc := domain.NewService(failingRepo{err: boom}, memory.NewRepository())

	_, err := svc.ComputeSummary(context.Background(), domain.WindowInput{TenantID: tenant, OwnerID: owner, Start: time.Now(), End: time.Now()})
	require.ErrorIs(t, err, boom)

	_, err = svc.Dashboard(context.Background(), tenant, owner, time.UTC)
	require.ErrorIs(t, err, boom)

	_, _, err = svc.LogActivity(context.Background(), domain.LogActivityInput{TenantID: tenant, OwnerID: owner, Category: "electricity", Quantity: 1, Unit: "kWh"})
	require.ErrorIs(t, err, boom)
}

func TestLogActivityConcurrentReplay(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := memory.NewRepository()
	slow := slowLookupRepo{Repository: repo, delay: 20 * time.Millisecond}
	svc := domain.NewService(slow, repo, domain.WithClock(func() time.Time { return now }))

	input := domain.LogActivityInput{
		TenantID: tenant, OwnerID: owner, Category: "travel", Subcategory: "car",
		Quantity: 100, Unit: "km", IdempotencyKey: "k1",
	}

	type result struct {
		record *domain.ActivityRecord
		replay bool
		err    error
	}
	results := make([]result, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, replay, err := svc.LogActivity(context.Background(), input)
			results[i] = result{record, replay, err}
		}(i)
	}
	wg.Wait()

	require.NoError(t, results[0].err)
	require.NoError(t, results[1].err)
	assert.NotEqual(t, results[0].replay, results[1].replay)
	assert.Equal(t, results[0].record.ID, results[1].record.ID)

	stored, _, err := repo.ListByOwner(context.Background(), tenant, owner, nil, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestLogActivityIdempotencyLookupError(t *testing.T) {
	boom := errors.New("connection reset")
	repo := memory.NewRepository()
	svc := domain.NewService(lookupFailingRepo{Repository: repo, err: boom}, repo)

	_, _, err := svc.LogActivity(context.Background(), domain.LogActivityInput{
		TenantID: tenant, OwnerID: owner, Category: "electricity", Quantity: 1, Unit: "kWh", IdempotencyKey: "k1",
	})
	require.ErrorIs(t, err, boom)

	stored, _, err := repo.ListByOwner(context.Background(), tenant, owner, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// slowLookupRepo widens the gap between the idempotency lookup and the insert.
type slowLookupRepo struct {
	*memory.Repository
	delay time.Duration
}

func (r slowLookupRepo) FindByIdempotency(ctx context.Context, tenantID, ownerID, key string) (*domain.ActivityRecord, error) {
	time.Sleep(r.delay)
	return r.Repository.FindByIdempotency(ctx, tenantID, ownerID, key)
}

type lookupFailingRepo struct {
	*memory.Repository
	err error
}

func (r lookupFailingRepo) FindByIdempotency(context.Context, string, string, string) (*domain.ActivityRecord, error) {
	return nil, r.err
}

type failingRepo struct {
	err error
}

func (f failingRepo) FindByIdempotency(context.Context, string, string, string) (*domain.ActivityRecord, error) {
	return nil, f.err
}

func (f failingRepo) Create(context.Context, domain.ActivityRecord, string) error { return f.err }

func (f failingRepo) Get(context.Context, string, string) (*domain.ActivityRecord, error) {
	return nil, f.err
}

func (f failingRepo) Query(context.Context, domain.RecordQuery) ([]domain.ActivityRecord, error) {
	return nil, f.err
}

func (f failingRepo) ListByOwner(context.Context, string, string, *domain.Cursor, int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	return nil, nil, f.err
}
