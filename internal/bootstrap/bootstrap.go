// Package bootstrap assembles the domain service from configuration for the
// footprint binaries.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/footprint/internal/config"
	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/persistence/memory"
	"example.com/footprint/internal/persistence/postgres"
)

// Runtime holds the service and the resources behind it.
type Runtime struct {
	Service  *domain.Service
	Resolver *emissions.Resolver
	Location *time.Location
	// Pool is nil for the memory storage driver.
	Pool *pgxpool.Pool
}

// Close releases the connection pool, if any.
func (r *Runtime) Close() {
	if r.Pool != nil {
		r.Pool.Close()
	}
}

// NewResolver loads the factor table named by cfg, or the embedded one.
func NewResolver(cfg config.Config) (*emissions.Resolver, error) {
	if cfg.FactorTablePath == "" {
		return emissions.NewResolver(emissions.DefaultTable()), nil
	}
	table, err := emissions.LoadTableFile(cfg.FactorTablePath)
	if err != nil {
		return nil, fmt.Errorf("load factor table: %w", err)
	}
	return emissions.NewResolver(table), nil
}

// NewRuntime wires the repositories selected by cfg.StorageDriver into a
// domain service.
func NewRuntime(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Runtime, error) {
	resolver, err := NewResolver(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Resolver: resolver, Location: loc}
	var records domain.RecordRepository
	var goals domain.GoalRepository

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo := postgres.NewRepository(pool)
		rt.Pool = pool
		records, goals = repo, repo
	default:
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		repo := memory.NewRepository()
		records, goals = repo, repo
	}

	logger.Info().
		Str("storage", cfg.StorageDriver).
		Str("factor_version", resolver.Table().Version()).
		Str("timezone", loc.String()).
		Msg("service configured")

	rt.Service = domain.NewService(records, goals,
		domain.WithResolver(resolver),
		domain.WithLocation(loc),
	)
	return rt, nil
}
