package hybrid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vmail/backend/internal/storage"
	"vmail/backend/internal/storage/redis"
)

// Store keeps directory records in a relational store and attempt counters in
// Redis, so every server instance sees the same counters.
type Store struct {
	storage.Store
	redis   *redis.Client
	timeout time.Duration
}

var (
	_ storage.Store               = (*Store)(nil)
	_ storage.RateLimitRepository = (*Store)(nil)
)

// NewStore combines a directory store with a Redis client. Both are closed by Close.
func NewStore(directory storage.Store, counters *redis.Client) *Store {
	return &Store{
		Store:   directory,
		redis:   counters,
		timeout: 2 * time.Second,
	}
}

// IncrementRateLimit counts an event in Redis.
func (s *Store) IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error) {
	return s.redis.IncrementRateLimit(ctx, key, window)
}

// ResetRateLimit clears a counter in Redis.
func (s *Store) ResetRateLimit(ctx context.Context, key string) error {
	return s.redis.ResetRateLimit(ctx, key)
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx)
}

// Health checks the database and Redis.
func (s *Store) Health() error {
	if err := s.Store.Health(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.redis.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close closes both connections.
func (s *Store) Close() error {
	return errors.Join(s.Store.Close(), s.redis.Close())
}
