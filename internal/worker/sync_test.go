package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropadvisor/cropadvisor/internal/offline"
	"github.com/cropadvisor/cropadvisor/internal/syncer"
	"github.com/cropadvisor/cropadvisor/internal/worker"
)

var now = time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)

type fakeCoordinator struct {
	mu          sync.Mutex
	downloads   int
	syncs       int
	downloadErr error
	syncErr     error
	synced      int
}

func (f *fakeCoordinator) Download(context.Context) (*offline.SnapshotInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return &offline.SnapshotInfo{CropsCached: 10, ModelsCached: 1, Source: "test"}, nil
}

func (f *fakeCoordinator) SyncPending(context.Context) (*syncer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return &syncer.Result{SyncedCount: f.synced, Pending: f.synced}, nil
}

type fakeStatus struct {
	status *offline.Status
	err    error
}

func (f fakeStatus) Status(context.Context) (*offline.Status, error) {
	return f.status, f.err
}

func downloadedAt(t time.Time) fakeStatus {
	return fakeStatus{status: &offline.Status{OfflineAvailable: true, DownloadDate: &t, CacheValidity: true}}
}

func newJob(coord *fakeCoordinator, status worker.StatusReader, cfg worker.Config) *worker.SyncJob {
	return worker.NewSyncJob(worker.SyncJobConfig{
		Config:      cfg,
		Coordinator: coord,
		Cache:       status,
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return now },
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := worker.DefaultConfig()
	assert.Equal(t, 15*time.Minute, cfg.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.True(t, cfg.RefreshCatalog)
	assert.Equal(t, 24*time.Hour, cfg.RefreshAfter)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("WORKER_INTERVAL", "5m")
	t.Setenv("WORKER_TIMEOUT", "not-a-duration")
	t.Setenv("WORKER_REFRESH_CATALOG", "false")
	t.Setenv("WORKER_REFRESH_AFTER", "6h")

	cfg := worker.ConfigFromEnv()
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.False(t, cfg.RefreshCatalog)
	assert.Equal(t, 6*time.Hour, cfg.RefreshAfter)
}

func TestSyncJob_Run_FreshSnapshotOnlySyncs(t *testing.T) {
	coord := &fakeCoordinator{synced: 3}
	job := newJob(coord, downloadedAt(now.Add(-time.Hour)), worker.DefaultConfig())

	res := job.Run(context.Background())
	require.NoError(t, res.Err)
	assert.False(t, res.CatalogRefreshed)
	assert.Equal(t, 3, res.Synced)
	assert.Equal(t, 0, coord.downloads)
	assert.Equal(t, 1, coord.syncs)

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.Runs)
	assert.Equal(t, int64(3), m.RecordsSynced)
	assert.Equal(t, now, m.LastRunAt)
}

func TestSyncJob_Run_RefreshesStaleSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		status fakeStatus
	}{
		{name: "stale", status: downloadedAt(now.Add(-25 * time.Hour))},
		{name: "never downloaded", status: fakeStatus{status: &offline.Status{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &fakeCoordinator{}
			job := newJob(coord, tt.status, worker.DefaultConfig())

			res := job.Run(context.Background())
			require.NoError(t, res.Err)
			assert.True(t, res.CatalogRefreshed)
			assert.Equal(t, 1, coord.downloads)
			assert.Equal(t, int64(1), job.GetMetrics().CatalogRefreshes)
		})
	}
}

func TestSyncJob_Run_RefreshDisabled(t *testing.T) {
	coord := &fakeCoordinator{}
	cfg := worker.DefaultConfig()
	cfg.RefreshCatalog = false
	job := newJob(coord, fakeStatus{status: &offline.Status{}}, cfg)

	res := job.Run(context.Background())
	require.NoError(t, res.Err)
	assert.False(t, res.CatalogRefreshed)
	assert.Equal(t, 0, coord.downloads)
	assert.Equal(t, 1, coord.syncs)
}

func TestSyncJob_Run_OfflineIsNotAFailure(t *testing.T) {
	coord := &fakeCoordinator{downloadErr: syncer.ErrNoConnection, syncErr: syncer.ErrNoConnection}
	job := newJob(coord, fakeStatus{status: &offline.Status{}}, worker.DefaultConfig())

	res := job.Run(context.Background())
	assert.NoError(t, res.Err)
	assert.True(t, res.Offline)
	assert.Equal(t, 0, coord.syncs)

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.SkippedOffline)
	assert.Zero(t, m.FailedRuns)
}

func TestSyncJob_Run_FailedRefreshStillSyncs(t *testing.T) {
	coord := &fakeCoordinator{downloadErr: errors.New("catalog unavailable"), synced: 1}
	job := newJob(coord, fakeStatus{status: &offline.Status{}}, worker.DefaultConfig())

	res := job.Run(context.Background())
	require.Error(t, res.Err)
	assert.Equal(t, 1, coord.syncs)
	assert.Equal(t, 1, res.Synced)

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.FailedRuns)
	assert.Equal(t, "catalog unavailable", m.LastError)
	assert.Equal(t, "catalog unavailable", job.MetricsSnapshot()["last_error"])
}

func TestSyncJob_Run_StatusError(t *testing.T) {
	coord := &fakeCoordinator{}
	job := newJob(coord, fakeStatus{err: offline.ErrStoreUnavailable}, worker.DefaultConfig())

	res := job.Run(context.Background())
	assert.ErrorIs(t, res.Err, offline.ErrStoreUnavailable)
	assert.Equal(t, 0, coord.downloads)
	assert.Equal(t, 1, coord.syncs)
}

func TestSyncJob_StartStopsOnCancel(t *testing.T) {
	coord := &fakeCoordinator{}
	cfg := worker.DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	job := newJob(coord, downloadedAt(now), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.GetMetrics().Runs >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
