// Package main provides the entrypoint for the crop advisor API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/advisor"
	"github.com/cropadvisor/cropadvisor/internal/api"
	"github.com/cropadvisor/cropadvisor/internal/api/middleware"
	"github.com/cropadvisor/cropadvisor/internal/app"
	"github.com/cropadvisor/cropadvisor/internal/provider/resilience"
	"github.com/cropadvisor/cropadvisor/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "cropadvisor-api"

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting crop advisor API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()

	telemetryConfig := telemetry.ConfigFromEnv()
	telemetryConfig.ServiceName = serviceName
	telemetryConfig.ServiceVersion = Version

	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryConfig.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryConfig.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := resilience.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}
	advisorMetrics, err := advisor.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize advisor metrics")
	}

	appConfig := app.ConfigFromEnv()
	a, err := app.Build(ctx, appConfig, app.Options{
		Logger:          log,
		ProviderMetrics: providerMetrics,
		AdvisorMetrics:  advisorMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Str("store", appConfig.Store).Msg("failed to initialize offline advisor")
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close offline store")
		}
	}()
	log.Info().
		Str("store", appConfig.Store).
		Bool("offline_available", a.Service.IsOfflineModeAvailable(ctx)).
		Msg("offline advisor initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		RequireTLS:  os.Getenv("REQUIRE_TLS") == "true",
		Metrics:     httpMetrics,
		Registry:    a.Registry,
		Checks:      a.Checks(),
		Advisor:     a.Service,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
