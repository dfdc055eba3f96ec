package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/advisor"
	"github.com/cropadvisor/cropadvisor/internal/api/handler"
	"github.com/cropadvisor/cropadvisor/internal/catalog"
	"github.com/cropadvisor/cropadvisor/internal/catalog/remote"
	"github.com/cropadvisor/cropadvisor/internal/connectivity"
	"github.com/cropadvisor/cropadvisor/internal/database"
	"github.com/cropadvisor/cropadvisor/internal/offline"
	"github.com/cropadvisor/cropadvisor/internal/provider/resilience"
	"github.com/cropadvisor/cropadvisor/internal/syncer"
)

// ErrUnknownStore is returned for an unrecognised store backend.
var ErrUnknownStore = errors.New("unknown offline store")

// Options carries process-level dependencies into Build.
type Options struct {
	Logger zerolog.Logger

	// ProviderMetrics and AdvisorMetrics are optional.
	ProviderMetrics *resilience.ProviderMetrics
	AdvisorMetrics  *advisor.Metrics
}

// App is the assembled advisor with its supporting pieces.
type App struct {
	Registry    *resilience.Registry
	Cache       *offline.Cache
	Coordinator *syncer.Coordinator
	Service     *advisor.Service

	closers []io.Closer
	closeFn []func()
}

// Build opens the configured store and wires the fetcher, probe, uploader and facade.
// The caller must Close the returned App.
func Build(ctx context.Context, cfg Config, opts Options) (*App, error) {
	cfg = cfg.withDefaults()
	logger := opts.Logger
	a := &App{Registry: resilience.NewRegistry()}

	store, err := a.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Cache = offline.NewCache(offline.CacheConfig{
		Store:      store,
		Logger:     logger.With().Str("component", "offline_cache").Logger(),
		MaxRecords: cfg.MaxRecords,
		Validity:   cfg.CacheValidity,
	})

	a.Coordinator = syncer.New(syncer.Config{
		Cache:    a.Cache,
		Probe:    a.probe(cfg, logger),
		Fetcher:  a.fetcher(cfg, opts.ProviderMetrics, logger),
		Uploader: a.uploader(cfg, opts.ProviderMetrics, logger),
		Logger:   logger.With().Str("component", "syncer").Logger(),
	})

	a.Service = advisor.NewService(advisor.Config{
		Cache:   a.Cache,
		Syncer:  a.Coordinator,
		Metrics: opts.AdvisorMetrics,
		Logger:  logger.With().Str("component", "advisor").Logger(),
	})

	return a, nil
}

// Checks returns readiness checks for the local subsystems.
func (a *App) Checks() map[string]handler.CheckFunc {
	return map[string]handler.CheckFunc{
		"offline_store": func(ctx context.Context) error {
			_, err := a.Cache.Status(ctx)
			return err
		},
	}
}

// Close releases the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	for _, fn := range a.closeFn {
		fn()
	}
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context, cfg Config, logger zerolog.Logger) (offline.Store, error) {
	switch cfg.Store {
	case StoreMemory:
		logger.Warn().Msg("using in-memory offline store; data is lost on exit")
		return offline.NewInMemoryStore(), nil

	case StoreSQLite:
		s, err := offline.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		logger.Info().Str("path", cfg.SQLitePath).Msg("sqlite offline store opened")
		return s, nil

	case StorePostgres:
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		s := offline.NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		a.closeFn = append(a.closeFn, pool.Close)
		logger.Info().
			Str("dsn", dbConfig.Redacted()).
			Int("max_conns", dbConfig.MaxConns).
			Msg("postgres offline store connected")
		return s, nil

	case StoreRedis:
		s, err := offline.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis offline store connected")
		return s, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Store)
	}
}

func (a *App) fetcher(cfg Config, metrics *resilience.ProviderMetrics, logger zerolog.Logger) catalog.Fetcher {
	switch {
	case cfg.CatalogURL != "":
		logger.Info().Str("url", cfg.CatalogURL).Msg("using remote crop catalog")
		return remote.NewClient(remote.ClientConfig{
			BaseURL:  cfg.CatalogURL,
			APIKey:   cfg.CatalogAPIKey,
			Registry: a.Registry,
			Metrics:  metrics,
			Logger:   logger.With().Str("provider", resilience.ProviderCropCatalog).Logger(),
		})
	case cfg.CatalogFile != "":
		logger.Info().Str("path", cfg.CatalogFile).Msg("using crop catalog file")
		return catalog.NewFileFetcher(cfg.CatalogFile)
	default:
		return catalog.EmbeddedFetcher{}
	}
}

func (a *App) probe(cfg Config, logger zerolog.Logger) connectivity.Probe {
	if cfg.ConnectivityURL == "" {
		return connectivity.NewStaticProbe(true)
	}
	return connectivity.NewHTTPProbe(connectivity.HTTPProbeConfig{
		URL:      cfg.ConnectivityURL,
		Registry: a.Registry,
		Logger:   logger.With().Str("component", "connectivity").Logger(),
	})
}

func (a *App) uploader(cfg Config, metrics *resilience.ProviderMetrics, logger zerolog.Logger) syncer.Uploader {
	if cfg.SyncURL == "" {
		return syncer.NoopUploader{}
	}
	return syncer.NewHTTPUploader(syncer.HTTPUploaderConfig{
		URL:      cfg.SyncURL,
		APIKey:   cfg.SyncAPIKey,
		Registry: a.Registry,
		Metrics:  metrics,
		Logger:   logger.With().Str("provider", resilience.ProviderSyncUpload).Logger(),
	})
}
