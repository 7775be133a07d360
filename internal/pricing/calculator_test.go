package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priceMap map[string]float64

func (p priceMap) Price(_ context.Context, key string, fallback float64) (float64, error) {
	if v, ok := p[key]; ok {
		return v, nil
	}
	return fallback, nil
}

type failingPrices struct{}

func (failingPrices) Price(context.Context, string, float64) (float64, error) {
	return 0, errors.New("database is locked")
}

type stubQuoter struct {
	surcharge    float64
	kmTotal      float64
	quote        domain.Quote
	err          error
	surchargeHit int
}

func (s *stubQuoter) Surcharge(context.Context, string) (float64, error) {
	s.surchargeHit++
	return s.surcharge, s.err
}

func (s *stubQuoter) PriceForKm(context.Context, float64, float64) (float64, error) {
	return s.kmTotal, s.err
}

func (s *stubQuoter) PriceAndDistance(context.Context, models.Place, models.Place, float64) (domain.Quote, error) {
	return s.quote, s.err
}

func newCalculator(prices domain.PriceLookup, q domain.Quoter) *Calculator {
	logger := zerolog.Nop()
	return NewCalculator(prices, q, models.DefaultPickupSurcharge, &logger)
}

func TestCalculator_SharedFormula(t *testing.T) {
	q := &stubQuoter{surcharge: 1500}
	calc := newCalculator(priceMap{models.PriceBaseSharedCBARC: 10000}, q)

	b, err := calc.Shared(context.Background(), SharedInput{
		Route:         models.RouteCBARC,
		Passengers:    3,
		ExtraLuggage:  true,
		Pet:           true,
		PickupAddress: "Sobremonte 100",
	})
	require.NoError(t, err)
	// 10000*3 + 2000 + 10000 + 1500
	assert.Equal(t, 43500.0, b.Total)
	assert.Equal(t, 12000.0, b.Extras)
	assert.Equal(t, 1500.0, b.Surcharge)
	assert.False(t, b.FallbackUsed)
}

func TestCalculator_SharedNoPickupSkipsService(t *testing.T) {
	q := &stubQuoter{err: errors.New("unused")}
	calc := newCalculator(priceMap{}, q)

	b, err := calc.Shared(context.Background(), SharedInput{Route: models.RouteRCCBA, Passengers: 1, PickupAddress: "  "})
	require.NoError(t, err)
	assert.Equal(t, 9000.0, b.Total)
	assert.Equal(t, 0, q.surchargeHit)
}

func TestCalculator_SurchargeTimeoutFallsBack(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	logger := zerolog.Nop()
	client := NewClient(config.PricingConfig{SurchargeURL: srv.URL, Timeout: 50 * time.Millisecond}, nil, &logger)
	calc := NewCalculator(priceMap{}, client, 3000, &logger)

	empty, err := calc.Shared(context.Background(), SharedInput{Route: models.RouteRCCBA, Passengers: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Surcharge)

	withAddress, err := calc.Shared(context.Background(), SharedInput{Route: models.RouteRCCBA, Passengers: 1, PickupAddress: "Colón 50"})
	require.NoError(t, err)
	assert.Equal(t, 3000.0, withAddress.Surcharge)
	assert.True(t, withAddress.FallbackUsed)
	assert.Equal(t, 12000.0, withAddress.Total)
}

func TestCalculator_PickupByKm(t *testing.T) {
	calc := newCalculator(priceMap{models.PriceKm: 400}, &stubQuoter{kmTotal: 2800})
	b, err := calc.Shared(context.Background(), SharedInput{Route: models.RouteRCCBA, Passengers: 1, PickupAddress: "Villa Allende", PickupKm: 7})
	require.NoError(t, err)
	assert.Equal(t, 2800.0, b.Surcharge)

	calc = newCalculator(priceMap{models.PriceKm: 400}, &stubQuoter{err: &domain.PricingError{Call: CallKm}})
	b, err = calc.Shared(context.Background(), SharedInput{Route: models.RouteRCCBA, Passengers: 1, PickupAddress: "Villa Allende", PickupKm: 7})
	require.NoError(t, err)
	assert.Equal(t, 2800.0, b.Surcharge)
	assert.True(t, b.FallbackUsed)
}

func TestCalculator_StoredTotalsIgnoreLaterPriceChanges(t *testing.T) {
	prices := priceMap{models.PriceBaseSharedRCCBA: 9000}
	calc := newCalculator(prices, &stubQuoter{})

	before, err := calc.Shared(context.Background(), SharedInput{Route: models.RouteRCCBA, Passengers: 2})
	require.NoError(t, err)
	stored := before.Total

	prices[models.PriceBaseSharedRCCBA] = 12000
	after, err := calc.Shared(context.Background(), SharedInput{Route: models.RouteRCCBA, Passengers: 2})
	require.NoError(t, err)

	assert.Equal(t, 18000.0, stored)
	assert.Equal(t, 24000.0, after.Total)
}

func TestCalculator_Parcel(t *testing.T) {
	calc := newCalculator(priceMap{models.PriceBaseSharedRCCBA: 8000, models.PriceParcelRatio: 0.5}, &stubQuoter{})
	b, err := calc.Parcel(context.Background(), models.RouteRCCBA, 2)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, b.Base)
	assert.Equal(t, 8000.0, b.Total)
}

func TestCalculator_FlatPrices(t *testing.T) {
	calc := newCalculator(priceMap{models.PriceCityExclusiveCBARC: 50000}, &stubQuoter{})

	b, err := calc.Airport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60000.0, b.Total)

	b, err = calc.CityExclusive(context.Background(), models.RouteCBARC)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, b.Total)

	b, err = calc.CityExclusive(context.Background(), models.RouteRCCBA)
	require.NoError(t, err)
	assert.Equal(t, 45000.0, b.Total)
}

func TestCalculator_Anywhere(t *testing.T) {
	ctx := context.Background()
	cba := models.Place{City: "Córdoba"}
	mza := models.Place{City: "Mendoza"}

	t.Run("distance service", func(t *testing.T) {
		calc := newCalculator(priceMap{}, &stubQuoter{quote: domain.Quote{Price: 200000, Km: 620}})
		b, err := calc.Anywhere(ctx, cba, mza, 0)
		require.NoError(t, err)
		assert.Equal(t, 200000.0, b.Total)
		assert.Equal(t, 620.0, b.Km)
	})

	t.Run("distance service down has no fallback", func(t *testing.T) {
		calc := newCalculator(priceMap{}, &stubQuoter{err: &domain.PricingError{Call: CallDistance, Err: errors.New("timeout")}})
		_, err := calc.Anywhere(ctx, cba, mza, 100)
		assert.ErrorIs(t, err, domain.ErrPricingUnavailable)
	})

	t.Run("km estimate with fallback", func(t *testing.T) {
		calc := newCalculator(priceMap{models.PriceKm: 500}, &stubQuoter{err: &domain.PricingError{Call: CallKm}})
		b, err := calc.Anywhere(ctx, models.Place{Street: "x"}, mza, 100)
		require.NoError(t, err)
		assert.Equal(t, 50000.0, b.Total)
		assert.True(t, b.FallbackUsed)
	})

	t.Run("km estimate priced by service", func(t *testing.T) {
		calc := newCalculator(priceMap{}, &stubQuoter{kmTotal: 42000})
		b, err := calc.Anywhere(ctx, models.Place{}, models.Place{}, 80)
		require.NoError(t, err)
		assert.Equal(t, 42000.0, b.Total)
		assert.Equal(t, 80.0, b.Km)
	})

	t.Run("nothing to price", func(t *testing.T) {
		calc := newCalculator(priceMap{}, &stubQuoter{})
		_, err := calc.Anywhere(ctx, models.Place{}, mza, 0)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestCalculator_PriceLookupError(t *testing.T) {
	calc := newCalculator(failingPrices{}, &stubQuoter{})
	_, err := calc.Airport(context.Background())
	assert.ErrorContains(t, err, "database is locked")
	_, err = calc.Shared(context.Background(), SharedInput{Route: models.RouteRCCBA, Passengers: 1})
	assert.Error(t, err)
}
