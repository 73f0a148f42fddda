// Package ratelimit bounds repeated credential checks for one address.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"vmail/backend/internal/domain"
	"vmail/backend/internal/storage"
)

// AttemptLimiter counts credential checks per key in a fixed window. The counter
// lives in a storage.RateLimitRepository, so with Redis it is shared by every replica.
type AttemptLimiter struct {
	repo        storage.RateLimitRepository
	maxAttempts int64
	window      time.Duration
}

// NewAttemptLimiter allows maxAttempts checks per key inside window.
func NewAttemptLimiter(repo storage.RateLimitRepository, maxAttempts int, window time.Duration) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &AttemptLimiter{
		repo:        repo,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

// Allow records an attempt for key and returns domain.ErrTooManyAttempts once the
// window's budget is spent.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) error {
	n, err := l.repo.IncrementRateLimit(ctx, attemptKey(key), l.window)
	if err != nil {
		return fmt.Errorf("count attempt: %w", err)
	}
	if n > l.maxAttempts {
		return domain.ErrTooManyAttempts
	}
	return nil
}

// Reset clears the attempts for key after a successful check.
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	return l.repo.ResetRateLimit(ctx, attemptKey(key))
}

func attemptKey(key string) string {
	return "auth:" + key
}
