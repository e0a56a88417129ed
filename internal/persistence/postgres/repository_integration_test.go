//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/events"
	"example.com/footprint/internal/migration"
	"example.com/footprint/internal/stats"
)

func startDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("footprint"),
		postgrescontainer.WithUsername("footprint"),
		postgrescontainer.WithPassword("footprint"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	m, err := migration.New(connStr, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestRepositoryRespectsTenantIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(startDatabase(t))

	now := time.Now().UTC().Truncate(time.Microsecond)
	record := domain.ActivityRecord{
		ID:            uuid.NewString(),
		TenantID:      uuid.NewString(),
		OwnerID:       uuid.NewString(),
		Category:      "transport",
		Subcategory:   "car",
		Quantity:      100,
		Unit:          "km",
		CO2Equivalent: 21,
		FactorVersion: "2024.1",
		OccurredAt:    now,
		CreatedAt:     now,
	}
	require.NoError(t, repo.Create(ctx, record, "key-1"))

	stored, err := repo.Get(ctx, record.TenantID, record.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, record.ID, stored.ID)
	require.InDelta(t, 21.0, stored.CO2Equivalent, 1e-9)
	require.Equal(t, "car", stored.Subcategory)

	replay, err := repo.FindByIdempotency(ctx, record.TenantID, record.OwnerID, "key-1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	require.Equal(t, record.ID, replay.ID)

	duplicate := record
	duplicate.ID = uuid.NewString()
	require.ErrorIs(t, repo.Create(ctx, duplicate, "key-1"), domain.ErrIdempotencyConflict)

	storedOther, err := repo.Get(ctx, uuid.NewString(), record.ID)
	require.NoError(t, err)
	require.Nil(t, storedOther)

	var eventType, partitionKey string
	err = repo.pool.QueryRow(ctx, `SELECT event_type, partition_key FROM outbox WHERE aggregate_id=$1`, record.ID).Scan(&eventType, &partitionKey)
	require.NoError(t, err)
	require.Equal(t, events.TypeEmissionLogged, eventType)
	require.Equal(t, record.TenantID+":"+record.OwnerID, partitionKey)
}

func TestRepositoryQueryAndPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(startDatabase(t))

	tenant, owner := uuid.NewString(), uuid.NewString()
	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, domain.ActivityRecord{
			ID:            uuid.NewString(),
			TenantID:      tenant,
			OwnerID:       owner,
			Category:      "energy",
			Quantity:      10,
			Unit:          "kwh",
			CO2Equivalent: 4.2,
			FactorVersion: "2024.1",
			OccurredAt:    base.Add(time.Duration(i) * 24 * time.Hour),
			CreatedAt:     base,
		}, ""))
	}

	inRange, err := repo.Query(ctx, domain.RecordQuery{
		TenantID: tenant,
		OwnerID:  owner,
		Start:    base.Add(24 * time.Hour),
		End:      base.Add(3 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, inRange, 3)

	page, next, err := repo.ListByOwner(ctx, tenant, owner, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	require.True(t, page[0].OccurredAt.After(page[1].OccurredAt))

	rest, _, err := repo.ListByOwner(ctx, tenant, owner, next, 10)
	require.NoError(t, err)
	require.Len(t, rest, 3)
}

func TestTransitionGoalIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(startDatabase(t))

	now := time.Now().UTC().Truncate(time.Microsecond)
	goal := domain.Goal{
		ID:          uuid.NewString(),
		TenantID:    uuid.NewString(),
		OwnerID:     uuid.NewString(),
		Title:       "Under 50 kg",
		GoalType:    stats.GoalAbsoluteTarget,
		TargetValue: 50,
		TargetDate:  now.Add(7 * 24 * time.Hour),
		Status:      stats.GoalActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.CreateGoal(ctx, goal))

	transition := domain.GoalTransition{From: stats.GoalActive, To: stats.GoalCompleted, CurrentValue: 50, Progress: 1, ChangedAt: now}
	applied, err := repo.TransitionGoal(ctx, goal, transition)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = repo.TransitionGoal(ctx, goal, domain.GoalTransition{From: stats.GoalActive, To: stats.GoalExpired, ChangedAt: now})
	require.NoError(t, err)
	require.False(t, applied)

	stored, err := repo.GetGoal(ctx, goal.TenantID, goal.ID)
	require.NoError(t, err)
	require.Equal(t, stats.GoalCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	active, err := repo.ListGoals(ctx, goal.TenantID, goal.OwnerID, stats.GoalActive)
	require.NoError(t, err)
	require.Empty(t, active)

	var count int
	require.NoError(t, repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE event_type=$1 AND aggregate_id=$2`,
		events.TypeGoalStatusChanged, goal.ID).Scan(&count))
	require.Equal(t, 1, count)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
