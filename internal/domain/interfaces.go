package domain

import (
	"context"
	"time"

	"github.com/urielssan/subite/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// PriceLookup resolves a PriceConfig key, returning fallback when unset.
type PriceLookup interface {
	Price(ctx context.Context, key string, fallback float64) (float64, error)
}

// Quote is a price-and-distance answer from the pricing service.
type Quote struct {
	Price float64 `json:"price"`
	Km    float64 `json:"km"`
}

// Quoter is the external pricing service. Every call may fail with an
// error wrapping ErrPricingUnavailable.
type Quoter interface {
	Surcharge(ctx context.Context, address string) (float64, error)
	PriceForKm(ctx context.Context, km, kmPrice float64) (float64, error)
	PriceAndDistance(ctx context.Context, origin, destination models.Place, kmPrice float64) (Quote, error)
}

// CacheRepository keeps pricing answers and request counters.
type CacheRepository interface {
	GetQuote(ctx context.Context, key string) (*Quote, error)
	SetQuote(ctx context.Context, key string, quote Quote, ttl time.Duration) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type PriceRepository interface {
	PriceLookup
	ListPrices(ctx context.Context) ([]models.PriceEntry, error)
	UpsertPrices(ctx context.Context, values map[string]float64) error
}

type ScheduleRepository interface {
	EnsureDaySlots(ctx context.Context, route models.Route, date time.Time, times []models.TimeOfDay, capacity int) (int, error)
	ListDayLoads(ctx context.Context, route models.Route, date time.Time) ([]models.ScheduleLoad, error)
	ListLoadsFrom(ctx context.Context, from time.Time) ([]models.ScheduleLoad, error)
	GetScheduleLoad(ctx context.Context, id int64) (*models.ScheduleLoad, error)
	SaveSchedule(ctx context.Context, s *models.TripSchedule) error
	DeleteSchedule(ctx context.Context, id int64, cascade bool) ([]models.SharedBooking, error)
}

// SlotRepository is what slot maintenance needs from storage.
type SlotRepository interface {
	ListLoadsBetween(ctx context.Context, from, to time.Time) ([]models.ScheduleLoad, error)
	ListSharedBookingsFrom(ctx context.Context, from time.Time) ([]models.SharedBooking, error)
	ListOrphanSharedBookings(ctx context.Context) ([]int64, error)
	FindSlot(ctx context.Context, route models.Route, date time.Time, t models.TimeOfDay) (*models.ScheduleLoad, error)
	EnsureSlot(ctx context.Context, route models.Route, date time.Time, t models.TimeOfDay, capacity int) (*models.ScheduleLoad, error)
	MoveSharedBooking(ctx context.Context, bookingID, targetID int64) error
	DeleteSlotIfEmpty(ctx context.Context, id int64) (bool, error)
	MarkNeedsReview(ctx context.Context, id int64) error
}

type BookingRepository interface {
	CreateSharedBooking(ctx context.Context, b *models.SharedBooking) error
	CreateParcelBooking(ctx context.Context, b *models.ParcelBooking) error
	CreateAirportBooking(ctx context.Context, b *models.AirportExclusive) error
	CreateCityExclusive(ctx context.Context, b *models.CityExclusive) error
	CreateAnywhereBooking(ctx context.Context, b *models.AnywhereBooking) error
	GetBookingSummary(ctx context.Context, kind models.BookingKind, id int64) (*models.BookingSummary, error)
	ListBookings(ctx context.Context) (*models.BookingsOverview, error)
	ListBookingsBetween(ctx context.Context, from, to time.Time) (*models.BookingsOverview, error)
	DeleteBooking(ctx context.Context, kind models.BookingKind, id int64) (*models.BookingSummary, error)
	CountBookings(ctx context.Context) (models.DashboardCounts, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// SyncWorker mirrors bookings into the spreadsheet ledger.
type SyncWorker interface {
	EnqueueUpsert(ctx context.Context, booking models.BookingSummary) error
	EnqueueDelete(ctx context.Context, booking models.BookingSummary) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SheetsWriter is the spreadsheet ledger of bookings, one row per booking key.
type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking models.BookingSummary) error
	DeleteBookingRow(ctx context.Context, key string) error
}
