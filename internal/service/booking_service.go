package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/events"
	"github.com/urielssan/subite/internal/metrics"
	"github.com/urielssan/subite/internal/models"
	"github.com/urielssan/subite/internal/pricing"
	"github.com/urielssan/subite/internal/slots"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pricer quotes every booking kind.
type Pricer interface {
	Shared(ctx context.Context, in pricing.SharedInput) (models.PriceBreakdown, error)
	Parcel(ctx context.Context, route models.Route, parcels int) (models.PriceBreakdown, error)
	Airport(ctx context.Context) (models.PriceBreakdown, error)
	CityExclusive(ctx context.Context, route models.Route) (models.PriceBreakdown, error)
	Anywhere(ctx context.Context, origin, destination models.Place, kmEstimate float64) (models.PriceBreakdown, error)
}

type BookingService struct {
	schedules    domain.ScheduleRepository
	bookings     domain.BookingRepository
	pricer       Pricer
	catalog      *slots.Catalog
	clock        domain.Clock
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	capacity     int
	logger       *zerolog.Logger
}

func NewBookingService(
	schedules domain.ScheduleRepository,
	bookings domain.BookingRepository,
	pricer Pricer,
	catalog *slots.Catalog,
	clock domain.Clock,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	capacity int,
	logger *zerolog.Logger,
) *BookingService {
	if capacity <= 0 {
		capacity = models.DefaultCapacity
	}
	return &BookingService{
		schedules:    schedules,
		bookings:     bookings,
		pricer:       pricer,
		catalog:      catalog,
		clock:        clock,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		capacity:     capacity,
		logger:       logger,
	}
}

// SharedListing is the availability of one route and day.
type SharedListing struct {
	Route      models.Route              `json:"route"`
	Date       string                    `json:"date"`
	Passengers int                       `json:"passengers"`
	Slots      []models.SlotAvailability `json:"slots"`
}

// SharedAvailability creates the day's canonical slots if missing and lists
// every slot still bookable today or later.
func (s *BookingService) SharedAvailability(ctx context.Context, rawRoute, rawDate string, passengers int) (*SharedListing, error) {
	route, err := parseRoute(rawRoute)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	if passengers < 1 {
		return nil, domain.Invalid("passengers", "must be at least 1")
	}

	w := newWindow(s.clock)
	if err := w.checkDate(date); err != nil {
		return nil, err
	}

	if _, err := s.schedules.EnsureDaySlots(ctx, route, date, s.catalog.For(route, date), s.capacity); err != nil {
		return nil, err
	}

	loads, err := s.schedules.ListDayLoads(ctx, route, date)
	if err != nil {
		return nil, err
	}

	listing := &SharedListing{
		Route:      route,
		Date:       models.FormatDate(date),
		Passengers: passengers,
		Slots:      make([]models.SlotAvailability, 0, len(loads)),
	}
	for _, l := range loads {
		if w.slotPassed(l.Date, l.Time) {
			continue
		}
		free := l.Free()
		listing.Slots = append(listing.Slots, models.SlotAvailability{
			Schedule: l.TripSchedule,
			Booked:   l.Booked,
			Free:     free,
			Bookable: free >= passengers,
		})
	}
	return listing, nil
}

type SharedBookingRequest struct {
	ScheduleID    int64   `json:"schedule_id"`
	Passengers    int     `json:"passengers"`
	PickupAddress string  `json:"pickup_address"`
	PickupKm      float64 `json:"pickup_km"`
	ExtraLuggage  bool    `json:"extra_luggage"`
	Pet           bool    `json:"pet"`

	models.Contact
}

func (s *BookingService) BookShared(ctx context.Context, req SharedBookingRequest) (*models.Confirmation, error) {
	if req.Passengers < 1 {
		return nil, domain.Invalid("passengers", "must be at least 1")
	}
	if req.PickupKm < 0 {
		return nil, domain.Invalid("pickup_km", "must not be negative")
	}
	if req.PickupKm > 0 && strings.TrimSpace(req.PickupAddress) == "" {
		return nil, domain.Invalid("pickup_km", "requires a pickup_address")
	}
	contact, err := normalizeContact(req.Contact)
	if err != nil {
		return nil, err
	}

	load, err := s.schedules.GetScheduleLoad(ctx, req.ScheduleID)
	if err != nil {
		return nil, err
	}
	if newWindow(s.clock).slotPassed(load.Date, load.Time) {
		return nil, domain.Invalid("schedule_id", "departure %s %s has already left", models.FormatDate(load.Date), load.Time)
	}

	pickup := strings.TrimSpace(req.PickupAddress)
	breakdown, err := s.pricer.Shared(ctx, pricing.SharedInput{
		Route:         load.Route,
		Passengers:    req.Passengers,
		ExtraLuggage:  req.ExtraLuggage,
		Pet:           req.Pet,
		PickupAddress: pickup,
		PickupKm:      req.PickupKm,
	})
	if err != nil {
		return nil, err
	}

	booking := &models.SharedBooking{
		Reference:     uuid.NewString(),
		ScheduleID:    load.ID,
		Passengers:    req.Passengers,
		PickupAddress: pickup,
		PickupKm:      req.PickupKm,
		ExtraLuggage:  req.ExtraLuggage,
		Pet:           req.Pet,
		TotalPrice:    breakdown.Total,
		Contact:       contact,
	}
	if err := s.bookings.CreateSharedBooking(ctx, booking); err != nil {
		if _, ok := domain.AsInsufficientSeats(err); ok {
			metrics.IncSeatRejection(string(load.Route))
		}
		return nil, err
	}
	booking.Schedule = &load.TripSchedule

	s.afterCreate(ctx, booking.Summary())
	return &models.Confirmation{
		Kind:      models.KindShared,
		Category:  models.KindShared.Label(),
		ID:        booking.ID,
		Reference: booking.Reference,
		Total:     booking.TotalPrice,
		Breakdown: breakdown,
		Details: []models.Detail{
			{Label: "Ruta", Value: load.Route.Label()},
			{Label: "Fecha", Value: models.FormatDate(load.Date)},
			{Label: "Hora", Value: load.Time.String()},
			{Label: "Pasajeros", Value: strconv.Itoa(req.Passengers)},
			{Label: "Retiro a domicilio", Value: yesNo(pickup != "")},
			{Label: "Valija extra", Value: yesNo(req.ExtraLuggage)},
			{Label: "Mascota", Value: yesNo(req.Pet)},
		},
	}, nil
}

type ParcelRequest struct {
	Route   string `json:"route"`
	Date    string `json:"date"`
	Parcels int    `json:"parcels"`

	models.Contact
}

func (s *BookingService) BookParcel(ctx context.Context, req ParcelRequest) (*models.Confirmation, error) {
	route, err := parseRoute(req.Route)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if req.Parcels < 1 || req.Parcels > models.MaxParcelsPerBooking {
		return nil, domain.Invalid("parcels", "must be between 1 and %d", models.MaxParcelsPerBooking)
	}
	contact, err := normalizeContact(req.Contact)
	if err != nil {
		return nil, err
	}
	if err := newWindow(s.clock).checkDate(date); err != nil {
		return nil, err
	}

	breakdown, err := s.pricer.Parcel(ctx, route, req.Parcels)
	if err != nil {
		return nil, err
	}

	booking := &models.ParcelBooking{
		Reference:  uuid.NewString(),
		Route:      route,
		Date:       date,
		Parcels:    req.Parcels,
		TotalPrice: breakdown.Total,
		Contact:    contact,
	}
	if err := s.bookings.CreateParcelBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.afterCreate(ctx, booking.Summary())
	return &models.Confirmation{
		Kind:      models.KindParcel,
		Category:  models.KindParcel.Label(),
		ID:        booking.ID,
		Reference: booking.Reference,
		Total:     booking.TotalPrice,
		Breakdown: breakdown,
		Details: []models.Detail{
			{Label: "Ruta", Value: route.Label()},
			{Label: "Fecha", Value: models.FormatDate(date)},
			{Label: fmt.Sprintf("Bultos (máx %d x reserva)", models.MaxParcelsPerBooking), Value: strconv.Itoa(req.Parcels)},
			{Label: "Peso por bulto", Value: fmt.Sprintf("%d kg (máx)", models.MaxParcelWeightKg)},
		},
	}, nil
}

type AirportRequest struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	PickupAddress string `json:"pickup_address"`

	models.Contact
}

func (s *BookingService) BookAirport(ctx context.Context, req AirportRequest) (*models.Confirmation, error) {
	date, t, err := s.exclusiveWhen(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	pickup := strings.TrimSpace(req.PickupAddress)
	if pickup == "" {
		return nil, domain.Invalid("pickup_address", "is required")
	}
	contact, err := normalizeContact(req.Contact)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.pricer.Airport(ctx)
	if err != nil {
		return nil, err
	}

	booking := &models.AirportExclusive{
		Reference:     uuid.NewString(),
		Date:          date,
		Time:          t,
		PickupAddress: pickup,
		TotalPrice:    breakdown.Total,
		Contact:       contact,
	}
	if err := s.bookings.CreateAirportBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.afterCreate(ctx, booking.Summary())
	return &models.Confirmation{
		Kind:      models.KindAirport,
		Category:  models.KindAirport.Label(),
		ID:        booking.ID,
		Reference: booking.Reference,
		Total:     booking.TotalPrice,
		Breakdown: breakdown,
		Details: []models.Detail{
			{Label: "Fecha", Value: models.FormatDate(date)},
			{Label: "Hora", Value: t.String()},
			{Label: "Retiro", Value: pickup},
		},
	}, nil
}

type ExclusiveRequest struct {
	Route         string `json:"route"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	PickupAddress string `json:"pickup_address"`

	models.Contact
}

func (s *BookingService) BookCityExclusive(ctx context.Context, req ExclusiveRequest) (*models.Confirmation, error) {
	route, err := parseRoute(req.Route)
	if err != nil {
		return nil, err
	}
	date, t, err := s.exclusiveWhen(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	pickup := strings.TrimSpace(req.PickupAddress)
	if pickup == "" {
		return nil, domain.Invalid("pickup_address", "is required")
	}
	contact, err := normalizeContact(req.Contact)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.pricer.CityExclusive(ctx, route)
	if err != nil {
		return nil, err
	}

	booking := &models.CityExclusive{
		Reference:     uuid.NewString(),
		Route:         route,
		Date:          date,
		Time:          t,
		PickupAddress: pickup,
		TotalPrice:    breakdown.Total,
		Contact:       contact,
	}
	if err := s.bookings.CreateCityExclusive(ctx, booking); err != nil {
		return nil, err
	}

	s.afterCreate(ctx, booking.Summary())
	return &models.Confirmation{
		Kind:      models.KindExclusive,
		Category:  models.KindExclusive.Label(),
		ID:        booking.ID,
		Reference: booking.Reference,
		Total:     booking.TotalPrice,
		Breakdown: breakdown,
		Details: []models.Detail{
			{Label: "Ruta", Value: route.Label()},
			{Label: "Fecha", Value: models.FormatDate(date)},
			{Label: "Hora", Value: t.String()},
			{Label: "Retiro", Value: pickup},
		},
	}, nil
}

type AnywhereRequest struct {
	Date        string       `json:"date"`
	Time        string       `json:"time"`
	Origin      models.Place `json:"origin"`
	Destination models.Place `json:"destination"`
	KmEstimate  float64      `json:"km_estimate"`

	models.Contact
}

func (s *BookingService) BookAnywhere(ctx context.Context, req AnywhereRequest) (*models.Confirmation, error) {
	date, t, err := s.exclusiveWhen(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if req.Origin.String() == "" {
		return nil, domain.Invalid("origin", "is required")
	}
	if req.Destination.String() == "" {
		return nil, domain.Invalid("destination", "is required")
	}
	if req.KmEstimate < 0 {
		return nil, domain.Invalid("km_estimate", "must not be negative")
	}
	contact, err := normalizeContact(req.Contact)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.pricer.Anywhere(ctx, req.Origin, req.Destination, req.KmEstimate)
	if err != nil {
		return nil, err
	}

	booking := &models.AnywhereBooking{
		Reference:   uuid.NewString(),
		Date:        date,
		Time:        t,
		Origin:      req.Origin.String(),
		Destination: req.Destination.String(),
		KmEstimate:  breakdown.Km,
		TotalPrice:  breakdown.Total,
		Contact:     contact,
	}
	if err := s.bookings.CreateAnywhereBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.afterCreate(ctx, booking.Summary())
	return &models.Confirmation{
		Kind:      models.KindAnywhere,
		Category:  models.KindAnywhere.Label(),
		ID:        booking.ID,
		Reference: booking.Reference,
		Total:     booking.TotalPrice,
		Breakdown: breakdown,
		Details: []models.Detail{
			{Label: "Fecha", Value: models.FormatDate(date)},
			{Label: "Hora", Value: t.String()},
			{Label: "Origen", Value: booking.Origin},
			{Label: "Destino", Value: booking.Destination},
			{Label: "KM estimados", Value: strconv.FormatFloat(booking.KmEstimate, 'f', -1, 64)},
		},
	}, nil
}

// Receipt returns the booking only when ref matches its reference, so ids
// cannot be enumerated.
func (s *BookingService) Receipt(ctx context.Context, rawKind string, id int64, ref string) (*models.BookingSummary, error) {
	kind, err := models.ParseBookingKind(rawKind)
	if err != nil {
		return nil, domain.ValidationError{Field: "kind", Msg: "unknown booking kind", Err: err}
	}
	summary, err := s.bookings.GetBookingSummary(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if ref == "" || summary.Reference != strings.TrimSpace(ref) {
		return nil, domain.NotFoundError{Resource: string(kind) + " booking"}
	}
	return summary, nil
}

func (s *BookingService) exclusiveWhen(rawDate, rawTime string) (time.Time, models.TimeOfDay, error) {
	date, err := parseDate(rawDate)
	if err != nil {
		return time.Time{}, 0, err
	}
	t, err := parseTime(rawTime)
	if err != nil {
		return time.Time{}, 0, err
	}
	if err := newWindow(s.clock).checkExclusive(date, t); err != nil {
		return time.Time{}, 0, err
	}
	return date, t, nil
}

func (s *BookingService) afterCreate(ctx context.Context, summary models.BookingSummary) {
	metrics.IncBooking(string(summary.Kind))
	s.logger.Info().
		Str("booking", summary.Key()).
		Str("reference", summary.Reference).
		Float64("total", summary.TotalPrice).
		Msg("booking created")

	publishBookingEvent(s.eventBus, s.logger, events.EventBookingCreated, summary, "customer")
	if s.sheetsWorker != nil {
		if err := s.sheetsWorker.EnqueueUpsert(ctx, summary); err != nil {
			s.logger.Error().Err(err).Str("booking", summary.Key()).Msg("sheets enqueue error")
		}
	}
}

func publishBookingEvent(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, summary models.BookingSummary, changedBy string) {
	if bus == nil {
		return
	}
	payload := events.BookingEventPayload{Booking: summary, ChangedBy: changedBy}
	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Str("booking", summary.Key()).Msg("publish event error")
	}
}

func yesNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}
