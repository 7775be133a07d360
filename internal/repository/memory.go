package repository

import (
	"context"
	"sync"
	"time"

	"github.com/urielssan/subite/internal/domain"
)

// MemoryCacheRepository is the in-process cache used when Redis is absent
// or unreachable. Expired entries are dropped on read.
type MemoryCacheRepository struct {
	quotes     sync.Map
	rateLimits sync.Map
	mu         sync.Mutex
	now        func() time.Time
}

type quoteEntry struct {
	quote     domain.Quote
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{now: time.Now}
}

func (r *MemoryCacheRepository) GetQuote(_ context.Context, key string) (*domain.Quote, error) {
	val, ok := r.quotes.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(quoteEntry)
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		r.quotes.Delete(key)
		return nil, nil
	}
	quote := entry.quote
	return &quote, nil
}

func (r *MemoryCacheRepository) SetQuote(_ context.Context, key string, quote domain.Quote, ttl time.Duration) error {
	entry := quoteEntry{quote: quote}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}
	r.quotes.Store(key, entry)
	return nil
}

func (r *MemoryCacheRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
