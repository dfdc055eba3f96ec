// Package api provides the HTTP API for the crop advisor.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/api/handler"
	"github.com/cropadvisor/cropadvisor/internal/api/middleware"
	"github.com/cropadvisor/cropadvisor/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	RequireTLS  bool
	Metrics     *middleware.Metrics
	Registry    *resilience.Registry
	Checks      map[string]handler.CheckFunc
	Advisor     handler.Advisor
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "cropadvisor-api"
	}

	// Order matters: request and device IDs feed tracing, logging and rate limiting.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.Checks,
	})
	offlineHandler := handler.NewOfflineHandler(cfg.Advisor, cfg.Logger)

	downloadRateLimit := middleware.RateLimitByDevice(middleware.DownloadRateLimit)
	recommendationRateLimit := middleware.RateLimitByDevice(middleware.RecommendationRateLimit)
	standardRateLimit := middleware.RateLimitByDevice(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit))
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/offline", func(r chi.Router) {
			r.Use(middleware.RequireJSON)

			r.With(standardRateLimit).Get("/availability", offlineHandler.Availability)
			r.With(standardRateLimit).Get("/status", offlineHandler.Status)
			r.With(downloadRateLimit).Post("/download", offlineHandler.Download)

			r.With(recommendationRateLimit).Post("/recommendations", offlineHandler.Recommend)
			r.With(standardRateLimit).Get("/recommendations", offlineHandler.ListRecommendations)

			r.With(recommendationRateLimit).Post("/sync", offlineHandler.Sync)
			r.With(standardRateLimit).Delete("/cache", offlineHandler.Clear)
		})
	})

	return r
}
