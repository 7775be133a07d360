package repository

import (
	"context"
	"testing"
	"time"

	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	repo := NewRedisCacheRepository(client)
	ctx := context.Background()

	t.Run("SetAndGetQuote", func(t *testing.T) {
		quote := domain.Quote{Price: 42000, Km: 210.5}
		require.NoError(t, repo.SetQuote(ctx, "distance:abc", quote, time.Minute))

		got, err := repo.GetQuote(ctx, "distance:abc")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, quote, *got)
		assert.True(t, s.Exists(quotePrefix+"distance:abc"))
	})

	t.Run("QuoteExpires", func(t *testing.T) {
		require.NoError(t, repo.SetQuote(ctx, "surcharge:x", domain.Quote{Price: 3000}, time.Minute))
		s.FastForward(time.Minute + time.Second)

		got, err := repo.GetQuote(ctx, "surcharge:x")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetMissingQuote", func(t *testing.T) {
		got, err := repo.GetQuote(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptQuote", func(t *testing.T) {
		require.NoError(t, s.Set(quotePrefix+"bad", "{not json"))
		_, err := repo.GetQuote(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "203.0.113.7"
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisCacheRepository(nil)
		_, err := repo.GetQuote(ctx, "k")
		assert.ErrorContains(t, err, "redis client is nil")
		assert.Error(t, repo.SetQuote(ctx, "k", domain.Quote{}, time.Second))
		_, err = repo.CheckRateLimit(ctx, "k", 1, time.Second)
		assert.Error(t, err)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("ServerDown", func(t *testing.T) {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer down.Close()
		assert.Error(t, Ping(ctx, down))
		_, err := NewRedisCacheRepository(down).GetQuote(ctx, "k")
		assert.Error(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(client))
		assert.NoError(t, Close(nil))
	})
}
