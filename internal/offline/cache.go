package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/catalog"
	"github.com/cropadvisor/cropadvisor/internal/crop"
	"github.com/cropadvisor/cropadvisor/internal/recommendation"
)

const flagTrue = "true"

// CacheConfig configures a Cache.
type CacheConfig struct {
	Store  Store
	Logger zerolog.Logger

	// MaxRecords defaults to MaxCachedRecords.
	MaxRecords int

	// Validity defaults to CacheValidity.
	Validity time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Cache owns every offline_ key in its store. Read-modify-write sequences are serialised.
type Cache struct {
	mu         sync.Mutex
	store      Store
	logger     zerolog.Logger
	maxRecords int
	validity   time.Duration
	now        func() time.Time
}

// NewCache creates a cache over store.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.Store == nil {
		cfg.Store = NewInMemoryStore()
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = MaxCachedRecords
	}
	if cfg.Validity <= 0 {
		cfg.Validity = CacheValidity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		store:      cfg.Store,
		logger:     cfg.Logger,
		maxRecords: cfg.MaxRecords,
		validity:   cfg.Validity,
		now:        cfg.Now,
	}
}

// IsAvailable reports whether both a catalog snapshot and a model manifest are cached.
func (c *Cache) IsAvailable(ctx context.Context) bool {
	catalogOK, manifestOK, err := c.Presence(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read offline cache presence")
		return false
	}
	return catalogOK && manifestOK
}

// Presence reports which of the catalog snapshot and the model manifest are cached.
func (c *Cache) Presence(ctx context.Context) (catalogOK, manifestOK bool, err error) {
	catalogOK, err = c.exists(ctx, KeyCropDatabase)
	if err != nil {
		return false, false, err
	}
	manifestOK, err = c.exists(ctx, KeyModels)
	if err != nil {
		return false, false, err
	}
	return catalogOK, manifestOK, nil
}

// DownloadSnapshot fetches a catalog and replaces the cached snapshot, manifest and dates
// in one atomic write. On any failure the existing cache is left untouched.
// Connectivity is the caller's concern.
func (c *Cache) DownloadSnapshot(ctx context.Context, fetcher catalog.Fetcher) (*SnapshotInfo, error) {
	result, err := fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: fetcher returned no result", ErrInvalidSnapshot)
	}
	snapshot := result.Catalog.Clone()
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	now := c.now().UTC()
	catalogJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	manifestJSON, err := json.Marshal(NewManifest(now))
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	stamp := []byte(now.Format(time.RFC3339))

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.store.SetMany(ctx, map[string][]byte{
		KeyCropDatabase:     catalogJSON,
		KeyCropDatabaseDate: stamp,
		KeyModels:           manifestJSON,
		KeyAvailable:        []byte(flagTrue),
		KeyDownloadDate:     stamp,
	})
	if err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	size, err := c.sizeBytes(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Int("crops", snapshot.Len()).
		Str("source", result.Source).
		Int64("cache_bytes", size).
		Msg("offline snapshot stored")

	return &SnapshotInfo{
		CropsCached:  snapshot.Len(),
		ModelsCached: 1,
		CacheSizeMB:  toMB(size),
		DownloadedAt: now,
		Source:       result.Source,
	}, nil
}

// Catalog returns the cached catalog, validated on read.
func (c *Cache) Catalog(ctx context.Context) (crop.Catalog, error) {
	data, err := c.store.Get(ctx, KeyCropDatabase)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrCatalogMissing
	}
	if err != nil {
		return nil, err
	}
	cat, err := crop.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, KeyCropDatabase, err)
	}
	return cat, nil
}

// Manifest returns the cached model manifest.
func (c *Cache) Manifest(ctx context.Context) (*ModelManifest, error) {
	data, err := c.store.Get(ctx, KeyModels)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrManifestMissing
	}
	if err != nil {
		return nil, err
	}
	var m ModelManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, KeyModels, err)
	}
	return &m, nil
}

// Append adds rec at the end of the record list, evicting the oldest entries beyond the bound.
func (c *Cache) Append(ctx context.Context, rec *recommendation.Record) error {
	if rec == nil {
		return ErrNilRecord
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.loadRecords(ctx)
	if err != nil {
		return err
	}

	records = append(records, *rec)
	if over := len(records) - c.maxRecords; over > 0 {
		records = records[over:]
		c.logger.Debug().Int("evicted", over).Msg("evicted oldest cached recommendations")
	}

	return c.saveRecords(ctx, records)
}

// Records returns every cached record, oldest first.
func (c *Cache) Records(ctx context.Context) ([]recommendation.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadRecords(ctx)
}

// Unsynced returns the records not yet synced, oldest first.
func (c *Cache) Unsynced(ctx context.Context) ([]recommendation.Record, error) {
	records, err := c.Records(ctx)
	if err != nil {
		return nil, err
	}
	var out []recommendation.Record
	for _, r := range records {
		if !r.Synced {
			out = append(out, r)
		}
	}
	return out, nil
}

// MarkSynced flips the given records to synced at the given time and returns how many changed.
// Already-synced and unknown ids are ignored.
func (c *Cache) MarkSynced(ctx context.Context, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.loadRecords(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range records {
		if _, ok := want[records[i].ID]; !ok {
			continue
		}
		if records[i].MarkSynced(at.UTC()) {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := c.saveRecords(ctx, records); err != nil {
		return 0, err
	}
	return changed, nil
}

// Status returns an aggregate view of the cache.
func (c *Cache) Status(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := &Status{}

	catalogOK, err := c.exists(ctx, KeyCropDatabase)
	if err != nil {
		return nil, err
	}
	manifestOK, err := c.exists(ctx, KeyModels)
	if err != nil {
		return nil, err
	}
	st.OfflineAvailable = catalogOK && manifestOK

	if raw, err := c.store.Get(ctx, KeyDownloadDate); err == nil {
		if ts, perr := time.Parse(time.RFC3339, string(raw)); perr == nil {
			st.DownloadDate = &ts
			st.CacheValidity = c.now().Sub(ts) < c.validity
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	size, err := c.sizeBytes(ctx)
	if err != nil {
		return nil, err
	}
	st.CacheSizeBytes = size
	st.CacheSizeMB = toMB(size)

	records, err := c.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	st.CachedRecommendations = len(records)
	for _, r := range records {
		if !r.Synced {
			st.UnsyncedRecommendations++
		}
	}
	return st, nil
}

// Clear removes every key the cache owns.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return fmt.Errorf("list cache keys: %w", err)
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	c.logger.Info().Int("keys", len(keys)).Msg("offline cache cleared")
	return nil
}

func (c *Cache) exists(ctx context.Context, key string) (bool, error) {
	_, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) loadRecords(ctx context.Context) ([]recommendation.Record, error) {
	data, err := c.store.Get(ctx, KeyRecommendations)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []recommendation.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, KeyRecommendations, err)
	}
	return records, nil
}

func (c *Cache) saveRecords(ctx context.Context, records []recommendation.Record) error {
	if records == nil {
		records = []recommendation.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := c.store.SetMany(ctx, map[string][]byte{KeyRecommendations: data}); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

func (c *Cache) sizeBytes(ctx context.Context) (int64, error) {
	keys, err := c.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}
	var total int64
	for _, k := range keys {
		v, err := c.store.Get(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += int64(len(v))
	}
	return total, nil
}

func toMB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}
