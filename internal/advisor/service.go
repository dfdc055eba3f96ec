package advisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/cropadvisor/cropadvisor/internal/crop"
	"github.com/cropadvisor/cropadvisor/internal/offline"
	"github.com/cropadvisor/cropadvisor/internal/recommendation"
	"github.com/cropadvisor/cropadvisor/internal/syncer"
	"github.com/cropadvisor/cropadvisor/internal/telemetry"
)

// Config configures a Service.
type Config struct {
	Composer *recommendation.Composer
	Cache    *offline.Cache
	Syncer   *syncer.Coordinator
	// Metrics is optional.
	Metrics *Metrics
	Logger  zerolog.Logger
}

// Service is the caller-facing facade over the composer, cache and sync coordinator.
// Failures are reported in result values; no method panics.
type Service struct {
	composer *recommendation.Composer
	cache    *offline.Cache
	syncer   *syncer.Coordinator
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	if cfg.Composer == nil {
		cfg.Composer = recommendation.NewComposer(recommendation.ComposerConfig{Logger: cfg.Logger})
	}
	return &Service{
		composer: cfg.Composer,
		cache:    cfg.Cache,
		syncer:   cfg.Syncer,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// IsOfflineModeAvailable reports whether a snapshot and model manifest are cached.
func (s *Service) IsOfflineModeAvailable(ctx context.Context) bool {
	return s.cache.IsAvailable(ctx)
}

// DownloadOfflineData refreshes the cached snapshot. Without connectivity it fails and
// leaves the existing cache untouched.
func (s *Service) DownloadOfflineData(ctx context.Context) DownloadResult {
	info, err := s.syncer.Download(ctx)
	s.metrics.recordDownload(ctx, err == nil)
	if errors.Is(err, syncer.ErrNoConnection) {
		return DownloadResult{Error: MsgDownloadNeedsConnection}
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("offline data download failed")
		return DownloadResult{Error: fmt.Sprintf("Failed to download offline data: %v", err)}
	}
	return DownloadResult{
		Success: true,
		Message: "Offline data downloaded successfully",
		Data: &DownloadData{
			CropsCached:  info.CropsCached,
			ModelsCached: info.ModelsCached,
			CacheSizeMB:  info.CacheSizeMB,
		},
	}
}

// GetOfflineRecommendation composes a recommendation from the cached catalog and appends it
// to the cached records.
func (s *Service) GetOfflineRecommendation(ctx context.Context, req RecommendationRequest) RecommendationResult {
	ctx, span := telemetry.Tracer(instrumentationName).Start(ctx, "advisor.GetOfflineRecommendation")
	defer span.End()

	res := s.recommend(ctx, req)
	s.metrics.recordRecommendation(ctx, res)
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
		span.SetAttributes(attribute.String("error_type", string(res.ErrorType)))
	} else if primary, ok := res.Data.Primary(); ok {
		span.SetAttributes(attribute.String("primary_crop", primary.Crop))
	}
	return res
}

func (s *Service) recommend(ctx context.Context, req RecommendationRequest) RecommendationResult {
	catalogOK, manifestOK, err := s.cache.Presence(ctx)
	if err != nil {
		return processingFailure(err)
	}
	switch {
	case !catalogOK && !manifestOK:
		return RecommendationResult{Error: MsgOfflineDataUnavailable, ErrorType: ErrorTypeOfflineDataUnavailable}
	case !catalogOK:
		return RecommendationResult{Error: MsgCacheMissing, ErrorType: ErrorTypeCacheMissing}
	case !manifestOK:
		return RecommendationResult{Error: MsgModelsMissing, ErrorType: ErrorTypeModelsMissing}
	}

	catalog, err := s.cache.Catalog(ctx)
	if errors.Is(err, offline.ErrCatalogMissing) {
		return RecommendationResult{Error: MsgCacheMissing, ErrorType: ErrorTypeCacheMissing}
	}
	if err != nil {
		return processingFailure(err)
	}

	rec, err := s.compose(req, catalog)
	if err != nil {
		s.logger.Warn().Err(err).Msg("offline recommendation failed")
		return processingFailure(err)
	}

	if err := s.cache.Append(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("record_id", rec.ID).Msg("failed to cache recommendation")
	}

	return RecommendationResult{Success: true, Data: rec}
}

// compose runs the composer with panics converted to errors.
func (s *Service) compose(req RecommendationRequest, catalog crop.Catalog) (rec *recommendation.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("panic during recommendation composition")
			rec, err = nil, fmt.Errorf("%v", r)
		}
	}()
	return s.composer.Compose(recommendation.Request{
		Location:       req.Location,
		FarmSize:       req.FarmSize,
		IrrigationType: req.IrrigationType,
		SoilData:       req.SoilData,
		Language:       req.Language,
	}, catalog)
}

// SyncCachedRecommendations marks unsynced records as synced once connectivity allows.
func (s *Service) SyncCachedRecommendations(ctx context.Context) SyncResult {
	res, err := s.syncer.SyncPending(ctx)
	if errors.Is(err, syncer.ErrNoConnection) {
		return SyncResult{Error: MsgSyncNeedsConnection}
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("sync failed")
		return SyncResult{Error: fmt.Sprintf("Sync failed: %v", err)}
	}
	s.metrics.recordSynced(ctx, res.SyncedCount)
	return SyncResult{
		Success:     true,
		Message:     fmt.Sprintf("Synced %d recommendations", res.SyncedCount),
		SyncedCount: res.SyncedCount,
	}
}

// GetCacheStatus returns the aggregate cache view. Read failures yield a zero status.
func (s *Service) GetCacheStatus(ctx context.Context) CacheStatus {
	st, err := s.cache.Status(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read cache status")
		return CacheStatus{}
	}
	return CacheStatus{
		OfflineAvailable:        st.OfflineAvailable,
		DownloadDate:            st.DownloadDate,
		CacheSizeMB:             st.CacheSizeMB,
		CachedRecommendations:   st.CachedRecommendations,
		UnsyncedRecommendations: st.UnsyncedRecommendations,
		CacheValidity:           st.CacheValidity,
	}
}

// CachedRecommendations returns every cached record, oldest first.
func (s *Service) CachedRecommendations(ctx context.Context) ([]recommendation.Record, error) {
	return s.cache.Records(ctx)
}

// ClearOfflineCache removes every cached entry.
func (s *Service) ClearOfflineCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

func processingFailure(err error) RecommendationResult {
	return RecommendationResult{Error: err.Error(), ErrorType: ErrorTypeProcessing}
}
