package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "subite"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created by kind.",
		},
		[]string{"kind"},
	)

	seatRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seat_rejections_total",
			Help:      "Shared bookings refused for lack of seats, by route.",
		},
		[]string{"route"},
	)

	pricingCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_calls_total",
			Help:      "Pricing service calls by call and outcome.",
		},
		[]string{"call", "outcome"},
	)

	slotActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_maintenance_total",
			Help:      "Slot maintenance actions (deleted, flagged, moved, failed).",
		},
		[]string{"action"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsCreated, seatRejections, pricingCalls, slotActions)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

func IncBooking(kind string) {
	bookingsCreated.WithLabelValues(kind).Inc()
}

func IncSeatRejection(route string) {
	seatRejections.WithLabelValues(route).Inc()
}

// IncPricing records one pricing call. Outcome is ok, cached, error or fallback.
func IncPricing(call, outcome string) {
	pricingCalls.WithLabelValues(call, outcome).Inc()
}

func AddSlotActions(action string, n int) {
	if n <= 0 {
		return
	}
	slotActions.WithLabelValues(action).Add(float64(n))
}
