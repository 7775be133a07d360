package pricing

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/metrics"
	"github.com/urielssan/subite/internal/models"

	"github.com/rs/zerolog"
)

const (
	CallSurcharge = "surcharge"
	CallKm        = "km"
	CallDistance  = "distance"

	maxResponseBytes = 1 << 16
)

var (
	errNotConfigured = errors.New("endpoint not configured")
	errMissingField  = errors.New("response field missing")
)

// Client calls the external pricing service. Successful answers are cached
// when a cache is configured.
type Client struct {
	cfg        config.PricingConfig
	httpClient *http.Client
	cache      domain.CacheRepository
	logger     *zerolog.Logger
}

// NewClient constructs a client. cache may be nil.
func NewClient(cfg config.PricingConfig, cache domain.CacheRepository, logger *zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
		logger:     logger,
	}
}

type surchargeRequest struct {
	Address string `json:"address"`
}

type surchargeResponse struct {
	Surcharge *float64 `json:"surcharge"`
}

type kmRequest struct {
	Km      float64 `json:"km"`
	KmPrice float64 `json:"km_price"`
}

type kmResponse struct {
	TotalPrice *float64 `json:"total_price"`
}

type distanceRequest struct {
	Origin      models.Place `json:"origin"`
	Destination models.Place `json:"destination"`
	KmPrice     float64      `json:"km_price"`
}

type distanceResponse struct {
	Price *float64 `json:"price"`
	Km    *float64 `json:"km"`
}

// Surcharge asks for the pickup surcharge of an address.
func (c *Client) Surcharge(ctx context.Context, address string) (float64, error) {
	q, err := c.quote(ctx, CallSurcharge, c.cfg.SurchargeURL, surchargeRequest{Address: address}, func(body []byte) (domain.Quote, error) {
		var resp surchargeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return domain.Quote{}, err
		}
		if resp.Surcharge == nil {
			return domain.Quote{}, fmt.Errorf("surcharge: %w", errMissingField)
		}
		return domain.Quote{Price: *resp.Surcharge}, nil
	})
	return q.Price, err
}

// PriceForKm asks for the total of a trip of km kilometres.
func (c *Client) PriceForKm(ctx context.Context, km, kmPrice float64) (float64, error) {
	q, err := c.quote(ctx, CallKm, c.cfg.KmURL, kmRequest{Km: km, KmPrice: kmPrice}, func(body []byte) (domain.Quote, error) {
		var resp kmResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return domain.Quote{}, err
		}
		if resp.TotalPrice == nil {
			return domain.Quote{}, fmt.Errorf("total_price: %w", errMissingField)
		}
		return domain.Quote{Price: *resp.TotalPrice, Km: km}, nil
	})
	return q.Price, err
}

// PriceAndDistance asks for the price and road distance between two places.
func (c *Client) PriceAndDistance(ctx context.Context, origin, destination models.Place, kmPrice float64) (domain.Quote, error) {
	req := distanceRequest{Origin: origin, Destination: destination, KmPrice: kmPrice}
	return c.quote(ctx, CallDistance, c.cfg.DistanceURL, req, func(body []byte) (domain.Quote, error) {
		var resp distanceResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return domain.Quote{}, err
		}
		if resp.Price == nil {
			return domain.Quote{}, fmt.Errorf("price: %w", errMissingField)
		}
		if resp.Km == nil {
			return domain.Quote{}, fmt.Errorf("km: %w", errMissingField)
		}
		return domain.Quote{Price: *resp.Price, Km: *resp.Km}, nil
	})
}

func (c *Client) quote(ctx context.Context, call, endpoint string, body any, decode func([]byte) (domain.Quote, error)) (domain.Quote, error) {
	if endpoint == "" {
		metrics.IncPricing(call, "unconfigured")
		return domain.Quote{}, &domain.PricingError{Call: call, Err: errNotConfigured}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Quote{}, &domain.PricingError{Call: call, Err: err}
	}

	key := cacheKey(call, payload)
	if cached := c.readCache(ctx, key); cached != nil {
		metrics.IncPricing(call, "cached")
		return *cached, nil
	}

	start := time.Now()
	raw, status, err := c.post(ctx, endpoint, payload)
	if err == nil {
		var q domain.Quote
		if q, err = decode(raw); err == nil {
			metrics.IncPricing(call, "ok")
			c.logger.Debug().Str("call", call).Dur("took", time.Since(start)).Msg("pricing call succeeded")
			c.writeCache(ctx, key, q)
			return q, nil
		}
		err = fmt.Errorf("malformed response: %w", err)
	}

	metrics.IncPricing(call, "error")
	c.logger.Warn().Err(err).Str("call", call).Int("status", status).Dur("took", time.Since(start)).Msg("pricing call failed")
	return domain.Quote{}, &domain.PricingError{Call: call, Status: status, Err: err}
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) readCache(ctx context.Context, key string) *domain.Quote {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return nil
	}
	q, err := c.cache.GetQuote(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Msg("quote cache read failed")
		return nil
	}
	return q
}

func (c *Client) writeCache(ctx context.Context, key string, q domain.Quote) {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return
	}
	if err := c.cache.SetQuote(ctx, key, q, c.cfg.CacheTTL); err != nil {
		c.logger.Warn().Err(err).Msg("quote cache write failed")
	}
}

func cacheKey(call string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return call + ":" + hex.EncodeToString(sum[:12])
}
