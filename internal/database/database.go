// Package database opens the PostgreSQL pool behind the postgres offline store backend.
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidConfig is returned when the offline store pool settings are unusable.
var ErrInvalidConfig = errors.New("invalid database config")

// DefaultApplicationName tags offline store sessions in pg_stat_activity.
const DefaultApplicationName = "cropadvisor-offline"

// Config holds the connection settings for the postgres offline store.
type Config struct {
	// URL, when set, is used as the DSN and the discrete fields below are ignored.
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// ApplicationName is reported to the server for each session.
	// Default: cropadvisor-offline
	ApplicationName string

	// ConnectTimeout bounds dialing so an unreachable server fails fast.
	// Default: 5 seconds
	ConnectTimeout time.Duration

	// MaxConns caps the pool. The store issues one statement per call.
	// Default: 4
	MaxConns int

	// MinConns is the number of idle connections kept open. Capped at MaxConns.
	// Default: 0
	MinConns int

	// MaxConnLifetime recycles long-lived connections.
	// Default: 30 minutes
	MaxConnLifetime time.Duration

	// HealthCheckPeriod is how often idle connections are checked.
	// Default: 1 minute
	HealthCheckPeriod time.Duration
}

// ConfigFromEnv reads the offline store database settings.
// DATABASE_URL takes precedence over the DB_* variables.
func ConfigFromEnv() Config {
	cfg := Config{
		URL:             os.Getenv("DATABASE_URL"),
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnvOrDefault("DB_USER", "cropadvisor"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnvOrDefault("DB_NAME", "cropadvisor"),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
		ApplicationName: getEnvOrDefault("DB_APPLICATION_NAME", DefaultApplicationName),
		MaxConns:        getEnvInt("DB_MAX_CONNS", 0),
		MinConns:        getEnvInt("DB_MIN_CONNS", 0),
	}
	if d, err := time.ParseDuration(os.Getenv("DB_CONNECT_TIMEOUT")); err == nil {
		cfg.ConnectTimeout = d
	}
	if d, err := time.ParseDuration(os.Getenv("DB_CONN_MAX_LIFETIME")); err == nil {
		cfg.MaxConnLifetime = d
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.ApplicationName == "" {
		c.ApplicationName = DefaultApplicationName
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 4
	}
	if c.MinConns < 0 {
		c.MinConns = 0
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = time.Minute
	}
	return c
}

// Validate reports whether the config names a reachable database.
func (c Config) Validate() error {
	if c.URL != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database name is required", ErrInvalidConfig)
	}
	return nil
}

// ConnectionString returns the DSN. Credentials are escaped.
func (c Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return c.dsn().String()
}

// Redacted returns the DSN with the password masked, for logging.
func (c Config) Redacted() string {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return "postgres://invalid"
		}
		return u.Redacted()
	}
	return c.dsn().Redacted()
}

func (c Config) dsn() *url.URL {
	c = c.withDefaults()
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	q.Set("application_name", c.ApplicationName)
	q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Round(time.Second)/time.Second)))

	u := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	switch {
	case c.Password != "":
		u.User = url.UserPassword(c.User, c.Password)
	case c.User != "":
		u.User = url.User(c.User)
	}
	return u
}

// Connect opens the pool for the offline store and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns) //nolint:gosec // bounded by withDefaults
	poolConfig.MinConns = int32(cfg.MinConns) //nolint:gosec // bounded by withDefaults
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	if poolConfig.ConnConfig.ConnectTimeout == 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}
