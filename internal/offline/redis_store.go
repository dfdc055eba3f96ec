package offline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Namespace is prepended to every key. Defaults to "cropadvisor:".
	Namespace string
}

// RedisConfigFromEnv reads REDIS_ADDR, REDIS_PASSWORD and REDIS_NAMESPACE.
func RedisConfigFromEnv() RedisConfig {
	return RedisConfig{
		Addr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Password:  os.Getenv("REDIS_PASSWORD"),
		Namespace: strings.TrimSpace(os.Getenv("REDIS_NAMESPACE")),
	}
}

// RedisStore is a Redis implementation of Store. Batch writes run in MULTI/EXEC.
type RedisStore struct {
	rdb       *goredis.Client
	namespace string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: missing REDIS_ADDR", ErrStoreUnavailable)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "cropadvisor:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{rdb: rdb, namespace: cfg.Namespace}, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Get returns the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.namespace+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// SetMany writes entries in a single transaction.
func (s *RedisStore) SetMany(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, key := range sortedKeys(entries) {
			pipe.Set(ctx, s.namespace+key, entries[key], 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set batch: %w", err)
	}
	return nil
}

// Delete removes keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.namespace + k
	}
	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Keys scans for keys with the given prefix.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	// SCAN may return a key more than once.
	seen := make(map[string]struct{})
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.namespace+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := strings.TrimPrefix(iter.Val(), s.namespace)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Verify interface compliance.
var _ Store = (*RedisStore)(nil)
