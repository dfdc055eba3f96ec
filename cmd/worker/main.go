// Package main provides the entrypoint for the background sync worker.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/app"
	"github.com/cropadvisor/cropadvisor/internal/provider/resilience"
	"github.com/cropadvisor/cropadvisor/internal/telemetry"
	"github.com/cropadvisor/cropadvisor/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "cropadvisor-worker"

	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting sync worker")

	// The worker exposes a health endpoint for the hosting platform.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryConfig := telemetry.ConfigFromEnv()
	telemetryConfig.ServiceName = serviceName
	telemetryConfig.ServiceVersion = Version
	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := resilience.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	appConfig := app.ConfigFromEnv()
	a, err := app.Build(ctx, appConfig, app.Options{Logger: log, ProviderMetrics: providerMetrics})
	if err != nil {
		log.Fatal().Err(err).Str("store", appConfig.Store).Msg("failed to initialize offline advisor")
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close offline store")
		}
	}()

	jobConfig := worker.ConfigFromEnv()
	job := worker.NewSyncJob(worker.SyncJobConfig{
		Config:      jobConfig,
		Coordinator: a.Coordinator,
		Cache:       a.Cache,
		Logger:      log.With().Str("component", "sync_job").Logger(),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": Version,
			"job":     job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go job.Start(ctx)

	if projectID, subscription := os.Getenv("PUBSUB_PROJECT_ID"), os.Getenv("PUBSUB_SUBSCRIPTION"); projectID != "" && subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Job:              job,
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured, running on schedule only")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Interface("metrics", job.MetricsSnapshot()).Msg("worker stopped")
}
