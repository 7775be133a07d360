package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/urielssan/subite/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetQuote(ctx context.Context, key string) (*domain.Quote, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quote), args.Error(1)
}

func (m *mockCache) SetQuote(ctx context.Context, key string, quote domain.Quote, ttl time.Duration) error {
	args := m.Called(ctx, key, quote, ttl)
	return args.Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverCacheRepository(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverCacheRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		quote := &domain.Quote{Price: 3000}
		primary.On("GetQuote", ctx, "a").Return(quote, nil).Once()

		got, err := repo.GetQuote(ctx, "a")
		assert.NoError(t, err)
		assert.Equal(t, quote, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		quote := &domain.Quote{Price: 1}
		primary.On("GetQuote", ctx, "b").Return(nil, errors.New("fail")).Once()
		fallback.On("GetQuote", ctx, "b").Return(quote, nil).Once()

		got, err := repo.GetQuote(ctx, "b")
		assert.NoError(t, err)
		assert.Equal(t, quote, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDownSkipsPrimary", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now()
		fallback.On("SetQuote", ctx, "c", domain.Quote{Price: 2}, time.Minute).Return(nil).Once()

		assert.NoError(t, repo.SetQuote(ctx, "c", domain.Quote{Price: 2}, time.Minute))
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "SetQuote", ctx, "c", domain.Quote{Price: 2}, time.Minute)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("GetQuote", ctx, "d").Return(nil, nil).Once()

		got, err := repo.GetQuote(ctx, "d")
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("GetQuote", ctx, "e").Return(nil, errors.New("still fail")).Once()
		fallback.On("GetQuote", ctx, "e").Return(nil, nil).Once()

		_, err := repo.GetQuote(ctx, "e")
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetQuoteFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("SetQuote", ctx, "f", domain.Quote{Km: 3}, time.Minute).Return(errors.New("fail")).Once()
		fallback.On("SetQuote", ctx, "f", domain.Quote{Km: 3}, time.Minute).Return(nil).Once()

		assert.NoError(t, repo.SetQuote(ctx, "f", domain.Quote{Km: 3}, time.Minute))
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("CheckRateLimitSuccess", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "ip", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "ip", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("CheckRateLimitFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "ip2", 10, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "ip2", 10, time.Minute).Return(false, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "ip2", 10, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
