package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	quotePrefix     = "subite:quote:"
	rateLimitPrefix = "subite:rate_limit:"
)

// RedisCacheRepository keeps pricing quotes and request counters in Redis.
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{client: client}
}

// GetQuote returns the cached quote or nil on a miss.
func (r *RedisCacheRepository) GetQuote(ctx context.Context, key string) (*domain.Quote, error) {
	if r.client == nil {
		return nil, errors.New("redis client is nil")
	}
	val, err := r.client.Get(ctx, quotePrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote from redis: %w", err)
	}

	var quote domain.Quote
	if err := json.Unmarshal([]byte(val), &quote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	return &quote, nil
}

func (r *RedisCacheRepository) SetQuote(ctx context.Context, key string, quote domain.Quote, ttl time.Duration) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	if err := r.client.Set(ctx, quotePrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set quote in redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts one hit for key in a fixed window and reports
// whether the count is still within limit.
func (r *RedisCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errors.New("redis client is nil")
	}
	k := rateLimitPrefix + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
