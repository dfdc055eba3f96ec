// Package app assembles the offline advisor from environment configuration. The API
// server, the worker and the CLI share it.
package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cropadvisor/cropadvisor/internal/offline"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config holds the wiring choices read from the environment.
type Config struct {
	// Store selects the offline store backend.
	// Default: sqlite
	Store string

	// SQLitePath is the database file for the sqlite backend.
	// Default: data/offline.db
	SQLitePath string

	// Redis configures the redis backend.
	Redis offline.RedisConfig

	// CatalogURL, when set, makes the remote catalog service the snapshot source.
	CatalogURL    string
	CatalogAPIKey string

	// CatalogFile, when set and CatalogURL is empty, loads the snapshot from a YAML file.
	// With neither set the embedded catalog is used.
	CatalogFile string

	// ConnectivityURL, when set, is probed before network operations.
	// Without it the device is assumed online.
	ConnectivityURL string

	// SyncURL, when set, receives unsynced records. Without it records are
	// acknowledged locally.
	SyncURL    string
	SyncAPIKey string

	// MaxRecords bounds the cached record list.
	// Default: 50
	MaxRecords int

	// CacheValidity is the snapshot age reported as still valid.
	// Default: 7 days
	CacheValidity time.Duration
}

// ConfigFromEnv reads the wiring configuration.
func ConfigFromEnv() Config {
	cfg := Config{
		Store:           strings.ToLower(strings.TrimSpace(os.Getenv("OFFLINE_STORE"))),
		SQLitePath:      os.Getenv("OFFLINE_DB_PATH"),
		Redis:           offline.RedisConfigFromEnv(),
		CatalogURL:      strings.TrimSpace(os.Getenv("CATALOG_URL")),
		CatalogAPIKey:   os.Getenv("CATALOG_API_KEY"),
		CatalogFile:     strings.TrimSpace(os.Getenv("CATALOG_FILE")),
		ConnectivityURL: strings.TrimSpace(os.Getenv("CONNECTIVITY_URL")),
		SyncURL:         strings.TrimSpace(os.Getenv("SYNC_UPLOAD_URL")),
		SyncAPIKey:      os.Getenv("SYNC_API_KEY"),
	}
	if n, err := strconv.Atoi(os.Getenv("OFFLINE_MAX_RECORDS")); err == nil {
		cfg.MaxRecords = n
	}
	if d, err := time.ParseDuration(os.Getenv("OFFLINE_CACHE_VALIDITY")); err == nil {
		cfg.CacheValidity = d
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Store == "" {
		c.Store = StoreSQLite
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/offline.db"
	}
	if c.MaxRecords <= 0 {
		c.MaxRecords = offline.MaxCachedRecords
	}
	if c.CacheValidity <= 0 {
		c.CacheValidity = offline.CacheValidity
	}
	return c
}
