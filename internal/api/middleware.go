package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID tags every request with an id, reusing a sane inbound one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog writes one zerolog line per request and counts it.
func AccessLog(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(c.Request.Method+" "+endpoint, strconv.Itoa(status))

		event := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		}
		event.
			Str("request_id", requestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery turns panics into the standard 500 body.
func Recovery(logger *zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error().Interface("panic", recovered).Str("request_id", requestID(c)).Msg("panic recovered")
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	})
}

// CORS allows the configured origins. It returns nil when none are set.
func CORS(cfg config.APICORSConfig, auth config.APIAuthConfig) gin.HandlerFunc {
	if len(cfg.AllowedOrigins) == 0 {
		return nil
	}
	headers := []string{"Origin", "Content-Type", "Accept", requestIDHeader, apiKeyHeaderDefault, apiExtraHeaderDefault}
	if auth.HeaderAPIKey != "" {
		headers = append(headers, auth.HeaderAPIKey)
	}
	if auth.HeaderExtra != "" {
		headers = append(headers, auth.HeaderExtra)
	}
	return cors.New(cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  headers,
		ExposeHeaders: []string{requestIDHeader, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	})
}
