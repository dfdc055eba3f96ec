// Package advisor exposes the offline recommendation engine to callers as structured results.
package advisor

import (
	"time"

	"github.com/cropadvisor/cropadvisor/internal/recommendation"
)

// ErrorType classifies a failed recommendation so callers can branch on it.
type ErrorType string

const (
	ErrorTypeOfflineDataUnavailable ErrorType = "offline_data_unavailable"
	ErrorTypeCacheMissing           ErrorType = "cache_missing"
	ErrorTypeModelsMissing          ErrorType = "models_missing"
	ErrorTypeProcessing             ErrorType = "processing_error"
)

// User-facing messages.
const (
	MsgDownloadNeedsConnection = "Network connection required to download offline data"
	MsgSyncNeedsConnection     = "Network connection required to sync"
	MsgOfflineDataUnavailable  = "Offline data not available. Please download offline data first."
	MsgCacheMissing            = "Cached crop database is missing. Please download offline data again."
	MsgModelsMissing           = "Offline models are missing. Please download offline data again."
)

// RecommendationRequest is the caller's input for an offline recommendation.
type RecommendationRequest struct {
	Location       recommendation.Location `json:"location"`
	FarmSize       float64                 `json:"farm_size"`
	IrrigationType string                  `json:"irrigation_type"`
	SoilData       map[string]any          `json:"soil_data,omitempty"`
	Language       string                  `json:"language,omitempty"`
}

// DownloadData summarises a stored snapshot.
type DownloadData struct {
	CropsCached  int     `json:"crops_cached"`
	ModelsCached int     `json:"models_cached"`
	CacheSizeMB  float64 `json:"cache_size_mb"`
}

// DownloadResult is returned by DownloadOfflineData.
type DownloadResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
	Data    *DownloadData `json:"data,omitempty"`
}

// RecommendationResult is returned by GetOfflineRecommendation.
type RecommendationResult struct {
	Success   bool                   `json:"success"`
	Data      *recommendation.Record `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorType ErrorType              `json:"error_type,omitempty"`
}

// SyncResult is returned by SyncCachedRecommendations.
type SyncResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	SyncedCount int    `json:"synced_count"`
}

// CacheStatus is returned by GetCacheStatus.
type CacheStatus struct {
	OfflineAvailable        bool       `json:"offline_available"`
	DownloadDate            *time.Time `json:"download_date"`
	CacheSizeMB             float64    `json:"cache_size_mb"`
	CachedRecommendations   int        `json:"cached_recommendations"`
	UnsyncedRecommendations int        `json:"unsynced_recommendations"`
	CacheValidity           bool       `json:"cache_validity"`
}
