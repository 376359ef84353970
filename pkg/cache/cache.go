// Package cache is a thin JSON cache over Redis. A Store with no client is a
// valid no-op cache, so the app keeps working when Redis is down.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
)

const driver = "redis"

// Store reads and writes JSON values in Redis.
type Store struct {
	rdb *redis.Client
}

// New wraps an existing client. A nil client yields a no-op store.
func New(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Connect dials Redis from config and pings it. On failure it returns a
// no-op store together with the error so the caller can decide.
func Connect(ctx context.Context) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return New(nil), fmt.Errorf("cache: redis ping: %w", err)
	}
	return New(rdb), nil
}

// Client returns the underlying client, or nil.
func (s *Store) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.rdb
}

// Enabled reports whether a Redis client is attached.
func (s *Store) Enabled() bool { return s.Client() != nil }

// Get unmarshals the value at key into dest and reports a hit.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	if !s.Enabled() {
		return false
	}
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil || json.Unmarshal(val, dest) != nil {
		metrics.CacheMisses.WithLabelValues(driver).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(driver).Inc()
	return true
}

// Set stores value under key for ttl.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, ttl).Err()
}

// Del removes keys.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// Remember returns the cached value at key or fills it from fn.
func Remember[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var v T
	if s.Get(ctx, key, &v) {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		return v, err
	}
	_ = s.Set(ctx, key, v, ttl)
	return v, nil
}

// Close releases the client.
func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.rdb.Close()
}
