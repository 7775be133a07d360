package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/routes", "2xx")
	})

	before := testutil.ToFloat64(bookingsCreated.WithLabelValues("parcel"))
	IncBooking("parcel")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingsCreated.WithLabelValues("parcel")))

	IncSeatRejection("RC-CBA")
	assert.GreaterOrEqual(t, testutil.ToFloat64(seatRejections.WithLabelValues("RC-CBA")), 1.0)

	IncPricing("surcharge", "fallback")
	assert.GreaterOrEqual(t, testutil.ToFloat64(pricingCalls.WithLabelValues("surcharge", "fallback")), 1.0)

	moved := testutil.ToFloat64(slotActions.WithLabelValues("moved"))
	AddSlotActions("moved", 3)
	AddSlotActions("moved", 0)
	assert.Equal(t, moved+3, testutil.ToFloat64(slotActions.WithLabelValues("moved")))
}
