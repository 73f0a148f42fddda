package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vmail/backend/internal/domain"
	"vmail/backend/internal/storage/memory"
)

func TestAttemptLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := NewAttemptLimiter(memory.NewStore(), 3, time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow(ctx, "alice@example.org"))
	}
	assert.ErrorIs(t, limiter.Allow(ctx, "alice@example.org"), domain.ErrTooManyAttempts)

	// other keys are independent
	assert.NoError(t, limiter.Allow(ctx, "bob@example.org"))

	require.NoError(t, limiter.Reset(ctx, "alice@example.org"))
	assert.NoError(t, limiter.Allow(ctx, "alice@example.org"))
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) ResetRateLimit(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestAttemptLimiter_RepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := &mockRepo{}
	repo.On("IncrementRateLimit", ctx, "auth:alice@example.org", 15*time.Minute).
		Return(int64(0), errors.New("redis down"))

	limiter := NewAttemptLimiter(repo, 0, 0)
	err := limiter.Allow(ctx, "alice@example.org")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTooManyAttempts)
	repo.AssertExpectations(t)
}
