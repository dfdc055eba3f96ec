// Package syncer reconciles the offline cache with the remote side when connectivity allows.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/catalog"
	"github.com/cropadvisor/cropadvisor/internal/connectivity"
	"github.com/cropadvisor/cropadvisor/internal/offline"
	"github.com/cropadvisor/cropadvisor/internal/recommendation"
)

// Errors.
var (
	// ErrNoConnection is returned when a network operation is attempted while offline.
	ErrNoConnection = errors.New("no network connection")

	// ErrUploadFailed wraps uploader failures.
	ErrUploadFailed = errors.New("sync upload failed")
)

// Cache is the part of the offline cache the coordinator drives.
type Cache interface {
	DownloadSnapshot(ctx context.Context, fetcher catalog.Fetcher) (*offline.SnapshotInfo, error)
	Unsynced(ctx context.Context) ([]recommendation.Record, error)
	MarkSynced(ctx context.Context, ids []string, at time.Time) (int, error)
}

// Config configures a Coordinator.
type Config struct {
	Cache    Cache
	Probe    connectivity.Probe
	Fetcher  catalog.Fetcher
	Uploader Uploader
	Logger   zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result summarises one sync run.
type Result struct {
	SyncedCount int
	// Pending is the number of unsynced records found before the run.
	Pending int
}

// Coordinator gates downloads and syncs on connectivity.
type Coordinator struct {
	cache    Cache
	probe    connectivity.Probe
	fetcher  catalog.Fetcher
	uploader Uploader
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a Coordinator. A nil Uploader acknowledges locally.
func New(cfg Config) *Coordinator {
	if cfg.Uploader == nil {
		cfg.Uploader = NoopUploader{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator{
		cache:    cfg.Cache,
		probe:    cfg.Probe,
		fetcher:  cfg.Fetcher,
		uploader: cfg.Uploader,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Download refreshes the cached snapshot from the fetcher. It requires connectivity and
// leaves the existing cache untouched on failure.
func (c *Coordinator) Download(ctx context.Context) (*offline.SnapshotInfo, error) {
	if !c.probe.IsOnline(ctx) {
		return nil, ErrNoConnection
	}
	info, err := c.cache.DownloadSnapshot(ctx, c.fetcher)
	if err != nil {
		c.logger.Warn().Err(err).Msg("offline snapshot download failed")
		return nil, err
	}
	return info, nil
}

// SyncPending hands every unsynced record to the uploader and marks the acknowledged ones
// synced. Offline, it returns ErrNoConnection without touching any record. With nothing
// pending the uploader is not called.
func (c *Coordinator) SyncPending(ctx context.Context) (*Result, error) {
	if !c.probe.IsOnline(ctx) {
		return nil, ErrNoConnection
	}

	pending, err := c.cache.Unsynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unsynced records: %w", err)
	}
	if len(pending) == 0 {
		return &Result{}, nil
	}

	acked, err := c.uploader.Upload(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	synced, err := c.cache.MarkSynced(ctx, acked, c.now())
	if err != nil {
		return nil, fmt.Errorf("mark records synced: %w", err)
	}

	c.logger.Info().
		Int("pending", len(pending)).
		Int("acknowledged", len(acked)).
		Int("synced", synced).
		Msg("synced cached recommendations")

	return &Result{SyncedCount: synced, Pending: len(pending)}, nil
}
