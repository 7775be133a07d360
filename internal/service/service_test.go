package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/urielssan/subite/internal/database"
	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/models"
	"github.com/urielssan/subite/internal/pricing"
	"github.com/urielssan/subite/internal/slots"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var art = time.FixedZone("ART", -3*3600)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) PublishJSON(eventType string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
	return nil
}

func (b *recordingBus) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type recordingSync struct {
	mu      sync.Mutex
	upserts []models.BookingSummary
	deletes []string
}

func (s *recordingSync) EnqueueUpsert(_ context.Context, b models.BookingSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, b)
	return nil
}

func (s *recordingSync) EnqueueDelete(_ context.Context, b models.BookingSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, b.Key())
	return nil
}

type stubQuoter struct {
	surcharge float64
	quote     domain.Quote
	err       error
}

func (q *stubQuoter) Surcharge(context.Context, string) (float64, error) { return q.surcharge, q.err }

func (q *stubQuoter) PriceForKm(_ context.Context, km, kmPrice float64) (float64, error) {
	return km * kmPrice, q.err
}

func (q *stubQuoter) PriceAndDistance(context.Context, models.Place, models.Place, float64) (domain.Quote, error) {
	return q.quote, q.err
}

type testEnv struct {
	db       *database.DB
	clock    *fixedClock
	bus      *recordingBus
	sync     *recordingSync
	quoter   *stubQuoter
	catalog  *slots.Catalog
	bookings *BookingService
	admin    *AdminService
	slots    *SlotService
}

// newTestEnv wires the services over an in-memory database. The clock reads
// Monday 2030-01-07 10:15 ART.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	canon := []models.TimeOfDay{}
	for _, raw := range models.DefaultSlotTimes {
		canon = append(canon, models.MustTimeOfDay(raw))
	}
	lists := map[models.Route][]models.TimeOfDay{models.RouteRCCBA: canon, models.RouteCBARC: canon}

	env := &testEnv{
		db:      db,
		clock:   &fixedClock{now: time.Date(2030, 1, 7, 10, 15, 0, 0, art)},
		bus:     &recordingBus{},
		sync:    &recordingSync{},
		quoter:  &stubQuoter{surcharge: 1500},
		catalog: slots.NewCatalog(lists, lists),
	}
	calc := pricing.NewCalculator(db, env.quoter, models.DefaultPickupSurcharge, &logger)
	env.bookings = NewBookingService(db, db, calc, env.catalog, env.clock, env.bus, env.sync, 4, &logger)
	env.admin = NewAdminService(db, db, db, env.clock, env.bus, env.sync, 4, &logger)
	env.slots = NewSlotService(db, env.catalog, env.clock, env.bus, env.sync, &logger)
	return env
}

func (e *testEnv) slot(t *testing.T, route models.Route, date, hhmm string, capacity int) int64 {
	t.Helper()
	d, err := models.ParseDate(date)
	require.NoError(t, err)
	load, err := e.db.EnsureSlot(context.Background(), route, d, models.MustTimeOfDay(hhmm), capacity)
	require.NoError(t, err)
	return load.ID
}

func (e *testEnv) book(t *testing.T, scheduleID int64, passengers int) *models.Confirmation {
	t.Helper()
	conf, err := e.bookings.BookShared(context.Background(), SharedBookingRequest{
		ScheduleID: scheduleID,
		Passengers: passengers,
		Contact:    models.Contact{Name: "Ana", Phone: "3584000000"},
	})
	require.NoError(t, err)
	return conf
}
