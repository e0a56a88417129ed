package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"example.com/footprint/internal/api"
	"example.com/footprint/internal/auth"
	"example.com/footprint/internal/bootstrap"
	"example.com/footprint/internal/config"
	"example.com/footprint/internal/logging"
	"example.com/footprint/internal/outbox"
	httptransport "example.com/footprint/internal/transport/http"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("FOOTPRINT_CONFIG"))
	if err != nil {
		logging.New("footprint-api", "info", "json").Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New("footprint-api", cfg.LogLevel, cfg.LogFormat)
	zerolog.DefaultContextLogger = &logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap.NewRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise service")
	}
	defer rt.Close()

	var dispatcher *outbox.Dispatcher
	if rt.Pool != nil && cfg.OutboxEnabled {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers,
			outbox.WithProducerLogger(logger.With().Str("component", "kafka_producer").Logger()))
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL,
			outbox.WithRegistryCredentials(cfg.SchemaRegistryUser, cfg.SchemaRegistryPass))
		dispatcher = outbox.NewDispatcher(rt.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.With().Str("component", "outbox").Logger()))
		go dispatcher.Start(ctx)
	}

	handler := api.NewHandler(rt.Service)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         logger,
		Auth:           auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}),
		AllowedOrigins: cfg.CORSAllowOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, func(r chi.Router) { handler.RegisterRoutes(r) })

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, router)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress).Msg("footprint api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-shutdownCh
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
