// Package worker runs background sync and catalog refresh for the offline cache.
package worker

import (
	"os"
	"time"
)

// Config holds configuration for the sync job.
type Config struct {
	// Interval between scheduled runs.
	// Default: 15 minutes
	Interval time.Duration

	// Timeout bounds a single run.
	// Default: 2 minutes
	Timeout time.Duration

	// RefreshCatalog enables re-downloading the snapshot once it reaches RefreshAfter.
	// Default: true
	RefreshCatalog bool

	// RefreshAfter is the snapshot age that triggers a refresh.
	// Default: 24 hours
	RefreshAfter time.Duration
}

// DefaultConfig returns the default job configuration.
func DefaultConfig() Config {
	return Config{
		Interval:       15 * time.Minute,
		Timeout:        2 * time.Minute,
		RefreshCatalog: true,
		RefreshAfter:   24 * time.Hour,
	}
}

// ConfigFromEnv reads WORKER_INTERVAL, WORKER_TIMEOUT, WORKER_REFRESH_CATALOG and
// WORKER_REFRESH_AFTER, falling back to DefaultConfig for unset or invalid values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Interval = durationEnv("WORKER_INTERVAL", cfg.Interval)
	cfg.Timeout = durationEnv("WORKER_TIMEOUT", cfg.Timeout)
	cfg.RefreshAfter = durationEnv("WORKER_REFRESH_AFTER", cfg.RefreshAfter)
	if v := os.Getenv("WORKER_REFRESH_CATALOG"); v != "" {
		cfg.RefreshCatalog = v == "true" || v == "1"
	}
	return cfg
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RefreshAfter <= 0 {
		c.RefreshAfter = d.RefreshAfter
	}
	return c
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
