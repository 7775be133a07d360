package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/events"
	"github.com/urielssan/subite/internal/models"

	"github.com/rs/zerolog"
)

// AdminService backs the authenticated management endpoints.
type AdminService struct {
	prices       domain.PriceRepository
	schedules    domain.ScheduleRepository
	bookings     domain.BookingRepository
	clock        domain.Clock
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	capacity     int
	logger       *zerolog.Logger
}

func NewAdminService(
	prices domain.PriceRepository,
	schedules domain.ScheduleRepository,
	bookings domain.BookingRepository,
	clock domain.Clock,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	capacity int,
	logger *zerolog.Logger,
) *AdminService {
	if capacity <= 0 {
		capacity = models.DefaultCapacity
	}
	return &AdminService{
		prices:       prices,
		schedules:    schedules,
		bookings:     bookings,
		clock:        clock,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		capacity:     capacity,
		logger:       logger,
	}
}

func (s *AdminService) Dashboard(ctx context.Context) (models.DashboardCounts, error) {
	return s.bookings.CountBookings(ctx)
}

func (s *AdminService) Prices(ctx context.Context) ([]models.PriceEntry, error) {
	return s.prices.ListPrices(ctx)
}

// UpdatePrices stores the given values. Stored booking totals are not
// recomputed.
func (s *AdminService) UpdatePrices(ctx context.Context, values map[string]float64, changedBy string) error {
	if len(values) == 0 {
		return domain.Invalid("prices", "no values given")
	}
	clean := make(map[string]float64, len(values))
	for k, v := range values {
		key := strings.ToUpper(strings.TrimSpace(k))
		if key == "" {
			return domain.Invalid("prices", "empty key")
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Invalid(key, "must be a non-negative number")
		}
		clean[key] = v
	}

	if err := s.prices.UpsertPrices(ctx, clean); err != nil {
		return err
	}
	s.logger.Info().Str("by", changedBy).Int("keys", len(clean)).Msg("prices updated")
	s.publish(events.EventPricesUpdated, events.PricesUpdatedPayload{Values: clean})
	return nil
}

// Schedules lists slots from the given date, today when empty.
func (s *AdminService) Schedules(ctx context.Context, rawFrom string) ([]models.ScheduleLoad, error) {
	from := models.DateOf(s.clock.Now())
	if strings.TrimSpace(rawFrom) != "" {
		d, err := parseDate(rawFrom)
		if err != nil {
			return nil, err
		}
		from = d
	}
	return s.schedules.ListLoadsFrom(ctx, from)
}

type ScheduleInput struct {
	Route    string `json:"route"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Capacity *int   `json:"capacity"`
}

// SaveSchedule creates the slot or updates the capacity of the existing one.
func (s *AdminService) SaveSchedule(ctx context.Context, in ScheduleInput) (*models.TripSchedule, error) {
	route, err := parseRoute(in.Route)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return nil, err
	}
	t, err := parseTime(in.Time)
	if err != nil {
		return nil, err
	}
	capacity := s.capacity
	if in.Capacity != nil {
		capacity = *in.Capacity
	}
	if capacity < 0 {
		return nil, domain.Invalid("capacity", "must not be negative")
	}

	sch := &models.TripSchedule{Route: route, Date: date, Time: t, Capacity: capacity}
	if err := s.schedules.SaveSchedule(ctx, sch); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("schedule_id", sch.ID).Str("route", string(route)).
		Str("date", models.FormatDate(date)).Str("time", t.String()).Int("capacity", capacity).
		Msg("schedule saved")
	s.publish(events.EventScheduleChanged, events.ScheduleChangedPayload{Action: "saved", Schedule: *sch})
	return sch, nil
}

// DeleteSchedule removes a slot. With cascade its bookings are removed too,
// otherwise a slot with bookings is a conflict.
func (s *AdminService) DeleteSchedule(ctx context.Context, id int64, cascade bool, changedBy string) ([]models.SharedBooking, error) {
	load, err := s.schedules.GetScheduleLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	removed, err := s.schedules.DeleteSchedule(ctx, id, cascade)
	if err != nil {
		return nil, err
	}

	for _, b := range removed {
		s.afterDelete(ctx, b.Summary(), changedBy)
	}
	s.logger.Info().Int64("schedule_id", id).Int("bookings_removed", len(removed)).Msg("schedule deleted")
	s.publish(events.EventScheduleChanged, events.ScheduleChangedPayload{Action: "deleted", Schedule: load.TripSchedule})
	return removed, nil
}

func (s *AdminService) Bookings(ctx context.Context) (*models.BookingsOverview, error) {
	return s.bookings.ListBookings(ctx)
}

// BookingsBetween returns bookings dated in [from, to]. Empty bounds default
// to today and today plus DefaultCleanupDays.
func (s *AdminService) BookingsBetween(ctx context.Context, rawFrom, rawTo string) (*models.BookingsOverview, time.Time, time.Time, error) {
	today := models.DateOf(s.clock.Now())
	from, to := today, today.AddDate(0, 0, models.DefaultCleanupDays)
	var err error
	if strings.TrimSpace(rawFrom) != "" {
		if from, err = parseDate(rawFrom); err != nil {
			return nil, from, to, err
		}
	}
	if strings.TrimSpace(rawTo) != "" {
		if to, err = parseDate(rawTo); err != nil {
			return nil, from, to, err
		}
	}
	if to.Before(from) {
		return nil, from, to, domain.Invalid("to", "must not be before from")
	}

	overview, err := s.bookings.ListBookingsBetween(ctx, from, to)
	return overview, from, to, err
}

func (s *AdminService) DeleteBooking(ctx context.Context, rawKind string, id int64, changedBy string) (*models.BookingSummary, error) {
	kind, err := models.ParseBookingKind(rawKind)
	if err != nil {
		return nil, domain.ValidationError{Field: "kind", Msg: "unknown booking kind", Err: err}
	}
	summary, err := s.bookings.DeleteBooking(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	s.afterDelete(ctx, *summary, changedBy)
	return summary, nil
}

func (s *AdminService) afterDelete(ctx context.Context, summary models.BookingSummary, changedBy string) {
	s.logger.Info().Str("booking", summary.Key()).Str("by", changedBy).Msg("booking deleted")
	publishBookingEvent(s.eventBus, s.logger, events.EventBookingDeleted, summary, changedBy)
	if s.sheetsWorker != nil {
		if err := s.sheetsWorker.EnqueueDelete(ctx, summary); err != nil {
			s.logger.Error().Err(err).Str("booking", summary.Key()).Msg("sheets enqueue error")
		}
	}
}

func (s *AdminService) publish(eventType string, payload any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
