package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/metrics"
	"github.com/urielssan/subite/internal/models"

	"github.com/rs/zerolog"
)

// Calculator prices every booking kind from PriceConfig values and the
// pricing service.
type Calculator struct {
	prices            domain.PriceLookup
	quoter            domain.Quoter
	fallbackSurcharge float64
	logger            *zerolog.Logger
}

func NewCalculator(prices domain.PriceLookup, quoter domain.Quoter, fallbackSurcharge float64, logger *zerolog.Logger) *Calculator {
	return &Calculator{
		prices:            prices,
		quoter:            quoter,
		fallbackSurcharge: fallbackSurcharge,
		logger:            logger,
	}
}

// SharedInput describes a shared-ride quote request.
type SharedInput struct {
	Route         models.Route
	Passengers    int
	ExtraLuggage  bool
	Pet           bool
	PickupAddress string
	// PickupKm, when positive, prices the pickup by distance instead of
	// by address.
	PickupKm float64
}

func (c *Calculator) price(ctx context.Context, key string) (float64, error) {
	v, err := c.prices.Price(ctx, key, models.PriceDefaults[key])
	if err != nil {
		return 0, fmt.Errorf("price %s: %w", key, err)
	}
	return v, nil
}

// Shared returns base x passengers + luggage + pet + pickup surcharge.
func (c *Calculator) Shared(ctx context.Context, in SharedInput) (models.PriceBreakdown, error) {
	base, err := c.price(ctx, in.Route.SharedBaseKey())
	if err != nil {
		return models.PriceBreakdown{}, err
	}

	b := models.PriceBreakdown{Base: base, Count: in.Passengers}
	if in.ExtraLuggage {
		fee, err := c.price(ctx, models.PriceExtraLuggage)
		if err != nil {
			return models.PriceBreakdown{}, err
		}
		b.Extras += fee
	}
	if in.Pet {
		fee, err := c.price(ctx, models.PricePet)
		if err != nil {
			return models.PriceBreakdown{}, err
		}
		b.Extras += fee
	}

	if err := c.pickup(ctx, in, &b); err != nil {
		return models.PriceBreakdown{}, err
	}

	b.Total = base*float64(in.Passengers) + b.Extras + b.Surcharge
	return b, nil
}

func (c *Calculator) pickup(ctx context.Context, in SharedInput, b *models.PriceBreakdown) error {
	address := strings.TrimSpace(in.PickupAddress)
	if address == "" {
		return nil
	}

	if in.PickupKm > 0 {
		kmPrice, err := c.price(ctx, models.PriceKm)
		if err != nil {
			return err
		}
		b.Km = in.PickupKm
		surcharge, err := c.quoter.PriceForKm(ctx, in.PickupKm, kmPrice)
		if err != nil {
			c.fallback(CallKm, err)
			surcharge = in.PickupKm * kmPrice
			b.FallbackUsed = true
		}
		b.Surcharge = surcharge
		return nil
	}

	surcharge, err := c.quoter.Surcharge(ctx, address)
	if err != nil {
		c.fallback(CallSurcharge, err)
		surcharge = c.fallbackSurcharge
		b.FallbackUsed = true
	}
	b.Surcharge = surcharge
	return nil
}

// Parcel returns base x PARCEL_RATIO x parcels.
func (c *Calculator) Parcel(ctx context.Context, route models.Route, parcels int) (models.PriceBreakdown, error) {
	base, err := c.price(ctx, route.SharedBaseKey())
	if err != nil {
		return models.PriceBreakdown{}, err
	}
	ratio, err := c.price(ctx, models.PriceParcelRatio)
	if err != nil {
		return models.PriceBreakdown{}, err
	}

	perParcel := base * ratio
	return models.PriceBreakdown{Base: perParcel, Count: parcels, Total: perParcel * float64(parcels)}, nil
}

func (c *Calculator) Airport(ctx context.Context) (models.PriceBreakdown, error) {
	return c.flat(ctx, models.PriceAirportExclusive)
}

func (c *Calculator) CityExclusive(ctx context.Context, route models.Route) (models.PriceBreakdown, error) {
	return c.flat(ctx, route.CityExclusiveKey())
}

func (c *Calculator) flat(ctx context.Context, key string) (models.PriceBreakdown, error) {
	v, err := c.price(ctx, key)
	if err != nil {
		return models.PriceBreakdown{}, err
	}
	return models.PriceBreakdown{Base: v, Count: 1, Total: v}, nil
}

// Anywhere prices a point-to-point trip. With a city on both ends the
// pricing service is authoritative and its failure is returned as is;
// otherwise the client's km estimate is priced with a local fallback.
func (c *Calculator) Anywhere(ctx context.Context, origin, destination models.Place, kmEstimate float64) (models.PriceBreakdown, error) {
	kmPrice, err := c.price(ctx, models.PriceKm)
	if err != nil {
		return models.PriceBreakdown{}, err
	}

	if origin.HasCity() && destination.HasCity() {
		q, err := c.quoter.PriceAndDistance(ctx, origin, destination, kmPrice)
		if err != nil {
			return models.PriceBreakdown{}, err
		}
		return models.PriceBreakdown{Base: q.Price, Count: 1, Km: q.Km, Total: q.Price}, nil
	}

	if kmEstimate <= 0 {
		return models.PriceBreakdown{}, domain.Invalid("km_estimate", "required when origin and destination cities are not both given")
	}

	b := models.PriceBreakdown{Count: 1, Km: kmEstimate}
	total, err := c.quoter.PriceForKm(ctx, kmEstimate, kmPrice)
	if err != nil {
		c.fallback(CallKm, err)
		total = kmEstimate * kmPrice
		b.FallbackUsed = true
	}
	b.Base = total
	b.Total = total
	return b, nil
}

func (c *Calculator) fallback(call string, err error) {
	metrics.IncPricing(call, "fallback")
	c.logger.Warn().Err(err).Str("call", call).Msg("pricing service failed, using fallback")
}
