// Package offline persists the crop catalog snapshot, the model manifest and generated
// recommendations in a local key/value store.
package offline

import (
	"errors"
	"time"

	"github.com/cropadvisor/cropadvisor/internal/suitability"
)

// Cache limits.
const (
	// MaxCachedRecords bounds the recommendation list; the oldest entries are evicted first.
	MaxCachedRecords = 50

	// CacheValidity is how long a downloaded snapshot is reported as fresh.
	CacheValidity = 7 * 24 * time.Hour
)

// KeyPrefix namespaces every key owned by the cache.
const KeyPrefix = "offline_"

// Cache keys.
const (
	KeyCropDatabase     = KeyPrefix + "crop_database"
	KeyCropDatabaseDate = KeyPrefix + "crop_database_date"
	KeyModels           = KeyPrefix + "models"
	KeyRecommendations  = KeyPrefix + "recommendations"
	KeyAvailable        = KeyPrefix + "available"
	KeyDownloadDate     = KeyPrefix + "download_date"
)

// Errors.
var (
	ErrNotFound         = errors.New("key not found")
	ErrInvalidSnapshot  = errors.New("invalid catalog snapshot")
	ErrCatalogMissing   = errors.New("crop catalog not cached")
	ErrManifestMissing  = errors.New("model manifest not cached")
	ErrCorruptEntry     = errors.New("corrupt cache entry")
	ErrNilRecord        = errors.New("record is nil")
	ErrStoreUnavailable = errors.New("offline store unavailable")
)

// ManifestType identifies the scoring model described by a manifest.
const ManifestType = "rule_based_suitability"

// ManifestVersion is the current manifest version.
const ManifestVersion = "1.0"

// ModelManifest is a self-describing record of the scoring rubric. It gates whether offline
// mode is considered available and carries no model weights.
type ModelManifest struct {
	Version   string             `json:"version"`
	Type      string             `json:"type"`
	Criteria  map[string]float64 `json:"criteria"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewManifest describes the current suitability rubric.
func NewManifest(createdAt time.Time) ModelManifest {
	return ModelManifest{
		Version: ManifestVersion,
		Type:    ManifestType,
		Criteria: map[string]float64{
			"temperature": suitability.WeightTemperature,
			"ph":          suitability.WeightPH,
			"rainfall":    suitability.WeightRainfall,
			"irrigation":  suitability.WeightIrrigation,
			"soil_health": suitability.WeightSoilHealth,
			"market":      suitability.WeightMarket,
		},
		CreatedAt: createdAt.UTC(),
	}
}

// SnapshotInfo describes a completed snapshot download.
type SnapshotInfo struct {
	CropsCached  int
	ModelsCached int
	CacheSizeMB  float64
	DownloadedAt time.Time
	Source       string
}

// Status is an aggregate view of the cache.
type Status struct {
	OfflineAvailable        bool
	DownloadDate            *time.Time
	CacheSizeBytes          int64
	CacheSizeMB             float64
	CachedRecommendations   int
	UnsyncedRecommendations int
	CacheValidity           bool
}
