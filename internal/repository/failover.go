package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urielssan/subite/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverCacheRepository serves from primary until it fails, then from
// fallback, retrying primary once per recoveryInterval.
type FailoverCacheRepository struct {
	primary   domain.CacheRepository
	fallback  domain.CacheRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverCacheRepository(primary, fallback domain.CacheRepository, logger *zerolog.Logger) *FailoverCacheRepository {
	return &FailoverCacheRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCacheRepository) markDown(err error, op string) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Str("op", op).Msg("Primary cache failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the primary should be tried for this call.
func (r *FailoverCacheRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverCacheRepository) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary cache recovered")
	}
}

func (r *FailoverCacheRepository) GetQuote(ctx context.Context, key string) (*domain.Quote, error) {
	if r.usePrimary() {
		quote, err := r.primary.GetQuote(ctx, key)
		if err == nil {
			r.recovered()
			return quote, nil
		}
		r.markDown(err, "get_quote")
	}

	return r.fallback.GetQuote(ctx, key)
}

func (r *FailoverCacheRepository) SetQuote(ctx context.Context, key string, quote domain.Quote, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SetQuote(ctx, key, quote, ttl)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err, "set_quote")
	}

	return r.fallback.SetQuote(ctx, key, quote, ttl)
}

func (r *FailoverCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err, "rate_limit")
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
