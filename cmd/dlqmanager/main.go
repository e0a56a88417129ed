package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/footprint/internal/config"
	"example.com/footprint/internal/logging"
	"example.com/footprint/internal/outbox"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("FOOTPRINT_CONFIG"))
	if err != nil {
		logging.New("footprint-dlq", "info", "json").Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New("footprint-dlq", cfg.LogLevel, cfg.LogFormat)
	if cfg.PostgresURL == "" {
		logger.Fatal().Msg("dlq manager requires postgres_url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddress).Msg("dlq manager metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	if err := manager.Run(ctx, cfg.DLQPollInterval, cfg.DLQBatchSize); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("dlq manager stopped")
	}
	logger.Info().Msg("dlq manager shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}
}
