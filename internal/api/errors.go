package api

import (
	"errors"
	"net/http"

	"github.com/urielssan/subite/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func respondError(c *gin.Context, status int, code, message string, extra gin.H) {
	body := gin.H{
		"error":      message,
		"code":       code,
		"request_id": requestID(c),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

// respondDomainError maps service errors to HTTP responses. Unknown errors
// are logged with the request id and reported generically.
func respondDomainError(c *gin.Context, logger *zerolog.Logger, err error) {
	if seats, ok := domain.AsInsufficientSeats(err); ok {
		respondError(c, http.StatusConflict, "insufficient_seats", err.Error(), gin.H{"free": seats.Free})
		return
	}

	var validation domain.ValidationError
	switch {
	case errors.As(err, &validation):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), gin.H{"field": validation.Field})
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, domain.ErrPricingUnavailable):
		logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("pricing unavailable")
		respondError(c, http.StatusServiceUnavailable, "pricing_unavailable", "pricing service unavailable, please try again later", nil)
	default:
		logger.Error().Err(err).Str("request_id", requestID(c)).Str("path", c.FullPath()).Msg("request failed")
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}

func badRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "bad_request", message, nil)
}
