package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/offline"
	"github.com/cropadvisor/cropadvisor/internal/syncer"
)

// Coordinator is the part of syncer.Coordinator the job drives.
type Coordinator interface {
	Download(ctx context.Context) (*offline.SnapshotInfo, error)
	SyncPending(ctx context.Context) (*syncer.Result, error)
}

// StatusReader reports the offline cache state.
type StatusReader interface {
	Status(ctx context.Context) (*offline.Status, error)
}

// SyncJobConfig holds configuration for creating a SyncJob.
type SyncJobConfig struct {
	Config      Config
	Coordinator Coordinator
	Cache       StatusReader
	Logger      zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// SyncJob refreshes a stale snapshot and pushes unsynced records.
// Runs are serialised.
type SyncJob struct {
	config      Config
	coordinator Coordinator
	cache       StatusReader
	logger      zerolog.Logger
	now         func() time.Time

	runMu   sync.Mutex
	mu      sync.RWMutex
	metrics Metrics
}

// Metrics tracks sync job statistics.
type Metrics struct {
	Runs             int64
	FailedRuns       int64
	SkippedOffline   int64
	RecordsSynced    int64
	CatalogRefreshes int64
	LastRunAt        time.Time
	LastRunDuration  time.Duration
	LastError        string
}

// RunResult describes one run.
type RunResult struct {
	StartTime        time.Time
	Duration         time.Duration
	CatalogRefreshed bool
	Pending          int
	Synced           int
	// Offline is set when the connectivity probe failed and nothing was attempted.
	Offline bool
	Err     error
}

// NewSyncJob creates a new sync job.
func NewSyncJob(cfg SyncJobConfig) *SyncJob {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SyncJob{
		config:      cfg.Config.withDefaults(),
		coordinator: cfg.Coordinator,
		cache:       cfg.Cache,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

// Run performs one pass: refresh the snapshot if due, then sync pending records.
// Being offline is not a failure.
func (j *SyncJob) Run(ctx context.Context) *RunResult {
	j.runMu.Lock()
	defer j.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result := &RunResult{StartTime: j.now()}

	refreshed, err := j.RefreshCatalog(ctx, false)
	switch {
	case errors.Is(err, syncer.ErrNoConnection):
		result.Offline = true
	case err != nil:
		result.Err = err
	}
	result.CatalogRefreshed = refreshed

	if !result.Offline {
		res, err := j.coordinator.SyncPending(ctx)
		switch {
		case errors.Is(err, syncer.ErrNoConnection):
			result.Offline = true
		case err != nil:
			result.Err = errors.Join(result.Err, err)
		default:
			result.Pending = res.Pending
			result.Synced = res.SyncedCount
		}
	}

	result.Duration = j.now().Sub(result.StartTime)
	j.record(result)

	event := j.logger.Info()
	if result.Err != nil {
		event = j.logger.Error().Err(result.Err)
	}
	event.
		Bool("offline", result.Offline).
		Bool("catalog_refreshed", result.CatalogRefreshed).
		Int("pending", result.Pending).
		Int("synced", result.Synced).
		Dur("duration", result.Duration).
		Msg("sync job completed")

	return result
}

// RefreshCatalog downloads a new snapshot when refresh is enabled and the current one is
// missing or older than RefreshAfter. force skips both conditions.
func (j *SyncJob) RefreshCatalog(ctx context.Context, force bool) (bool, error) {
	if !force {
		if !j.config.RefreshCatalog {
			return false, nil
		}
		due, err := j.refreshDue(ctx)
		if err != nil {
			return false, err
		}
		if !due {
			return false, nil
		}
	}

	info, err := j.coordinator.Download(ctx)
	if err != nil {
		return false, err
	}

	j.mu.Lock()
	j.metrics.CatalogRefreshes++
	j.mu.Unlock()

	j.logger.Info().
		Int("crops", info.CropsCached).
		Str("source", info.Source).
		Msg("catalog snapshot refreshed")
	return true, nil
}

func (j *SyncJob) refreshDue(ctx context.Context) (bool, error) {
	st, err := j.cache.Status(ctx)
	if err != nil {
		return false, err
	}
	if !st.OfflineAvailable || st.DownloadDate == nil {
		return true, nil
	}
	return j.now().Sub(*st.DownloadDate) >= j.config.RefreshAfter, nil
}

// Start runs the job immediately and then on every Interval until ctx is cancelled.
func (j *SyncJob) Start(ctx context.Context) {
	j.logger.Info().Dur("interval", j.config.Interval).Msg("starting sync job scheduler")

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("sync job scheduler stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *SyncJob) record(r *RunResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.Runs++
	j.metrics.LastRunAt = r.StartTime
	j.metrics.LastRunDuration = r.Duration
	j.metrics.RecordsSynced += int64(r.Synced)
	if r.Offline {
		j.metrics.SkippedOffline++
	}
	if r.Err != nil {
		j.metrics.FailedRuns++
		j.metrics.LastError = r.Err.Error()
	} else {
		j.metrics.LastError = ""
	}
}

// GetMetrics returns a copy of the current metrics.
func (j *SyncJob) GetMetrics() Metrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}

// MetricsSnapshot returns the current metrics as a map for logging.
func (j *SyncJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"runs":              m.Runs,
		"failed_runs":       m.FailedRuns,
		"skipped_offline":   m.SkippedOffline,
		"records_synced":    m.RecordsSynced,
		"catalog_refreshes": m.CatalogRefreshes,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"last_error":        m.LastError,
	}
}
