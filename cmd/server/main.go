/**
 * @description
 * This is the main entry point for the billing service: a single deployable
 * that serves the internal HTTP API and runs the scheduled sweeps (gateway
 * reconciliation, due-date reminders) from an embedded cron scheduler. It
 * wires configuration, the database pool, Redis, RabbitMQ and the external
 * API clients, then runs until terminated.
 */
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/zapfatura/billing-service/internal/api"
	"github.com/zapfatura/billing-service/internal/app"
	"github.com/zapfatura/billing-service/internal/config"
	"github.com/zapfatura/billing-service/internal/store"
	"github.com/zapfatura/billing-service/pkg/gatewayclient"
	"github.com/zapfatura/billing-service/pkg/rabbitmq"
	"github.com/zapfatura/billing-service/pkg/waclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env for local development; real environments use actual env vars.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Database pool
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// Sweep lease: Redis when configured, otherwise in-process only.
	var locks app.SweepLocker = app.NoopSweepLocker{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("unable to parse redis URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		locks = app.NewRedisSweepLocker(redisClient, cfg.SweepLockPrefix, time.Duration(cfg.SweepLockTTLSeconds)*time.Second)
		logger.Info("redis sweep lease enabled")
	} else {
		logger.Warn("REDIS_URL not set; sweep lease disabled")
	}

	// Event producer: fall back to a no-op publisher when the broker is down,
	// event publication is best-effort everywhere.
	var producer rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("rabbitmq unavailable; using fallback publisher", "error", err)
			producer = &rabbitmq.EventProducerFallback{}
		} else {
			producer = eventProducer
			defer eventProducer.Close()
		}
	} else {
		producer = &rabbitmq.EventProducerFallback{}
	}

	// Dependencies
	repository := store.NewPostgresRepository(dbpool)
	gateway := gatewayclient.NewClient(cfg.GatewayAPIBaseURL, cfg.GatewayAPIKey)
	provider := waclient.NewClient(cfg.WAAPIBaseURL, cfg.WAAPIKey)
	connector := app.NewConnector(repository, provider, cfg.WAWebhookURL)
	service := app.NewService(
		repository,
		gateway,
		connector,
		producer,
		locks,
		time.Duration(cfg.GatewayChargeExpiryMins)*time.Minute,
		time.Duration(cfg.SendDelayMillis)*time.Millisecond,
	)

	// Cron scheduler
	jobs := app.NewJobs(service, logger)
	scheduler := app.NewScheduler(jobs, logger, cfg.ReconcileSweepSchedule, cfg.NotifySweepSchedule)
	scheduler.Start()
	logger.Info("scheduler started")

	// HTTP server
	handler := api.NewHandler(service, connector)
	router := api.NewRouter(handler, cfg.InternalAPIKey)
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal to gracefully shut down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped gracefully")
}
