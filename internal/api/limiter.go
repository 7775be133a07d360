package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type rateLimiter struct {
	limiters  sync.Map
	cfg       config.APIRateLimitConfig
	keyHeader string
	knownKeys map[string]struct{}
}

func newRateLimiter(cfg config.APIRateLimitConfig, auth config.APIAuthConfig) *rateLimiter {
	keyHeader := strings.TrimSpace(auth.HeaderAPIKey)
	if keyHeader == "" {
		keyHeader = apiKeyHeaderDefault
	}
	known := make(map[string]struct{}, len(auth.APIKeys))
	for _, k := range auth.APIKeys {
		if key := strings.TrimSpace(k.Key); key != "" {
			known[key] = struct{}{}
		}
	}
	return &rateLimiter{cfg: cfg, keyHeader: keyHeader, knownKeys: known}
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}

// clientKey gives configured API keys their own bucket so admin clients
// behind one proxy do not share one. Unknown keys count against the IP.
func (l *rateLimiter) clientKey(c *gin.Context) string {
	if apiKey := strings.TrimSpace(c.GetHeader(l.keyHeader)); apiKey != "" {
		if _, ok := l.knownKeys[apiKey]; ok {
			return "key:" + apiKey
		}
	}
	return "ip:" + c.ClientIP()
}

func (l *rateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.cfg.RPS <= 0 {
			c.Next()
			return
		}
		if !l.getLimiter(l.clientKey(c)).Allow() {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", nil)
			return
		}
		c.Next()
	}
}

// bookingThrottle caps booking requests per client IP over a shared cache so
// the limit holds across instances.
func bookingThrottle(cache domain.CacheRepository, perMinute int, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil || perMinute <= 0 {
			c.Next()
			return
		}
		allowed, err := cache.CheckRateLimit(c.Request.Context(), "booking:"+c.ClientIP(), perMinute, time.Minute)
		if err != nil {
			logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("booking throttle unavailable")
			c.Next()
			return
		}
		if !allowed {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many booking requests, try again in a minute", nil)
			return
		}
		c.Next()
	}
}
