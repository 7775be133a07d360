package models

import (
	"fmt"
	"strings"
	"time"
)

// BookingKind distinguishes the independent booking tables.
type BookingKind string

const (
	KindShared    BookingKind = "shared"
	KindParcel    BookingKind = "parcel"
	KindAirport   BookingKind = "airport"
	KindExclusive BookingKind = "exclusive"
	KindAnywhere  BookingKind = "anywhere"
)

var BookingKinds = []BookingKind{KindShared, KindParcel, KindAirport, KindExclusive, KindAnywhere}

func ParseBookingKind(raw string) (BookingKind, error) {
	k := BookingKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range BookingKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown booking kind %q", raw)
}

// Label is the customer-facing category name.
func (k BookingKind) Label() string {
	switch k {
	case KindShared:
		return "Viaje Compartido"
	case KindParcel:
		return "Encomienda"
	case KindAirport:
		return "Aeropuerto Exclusivo"
	case KindExclusive:
		return "Viaje Exclusivo"
	case KindAnywhere:
		return "Viaje a cualquier destino"
	default:
		return string(k)
	}
}

// Contact is the customer data every booking carries.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// TripSchedule is a departure slot: (route, date, time) is unique.
type TripSchedule struct {
	ID          int64     `json:"id"`
	Route       Route     `json:"route"`
	Date        time.Time `json:"date"`
	Time        TimeOfDay `json:"time"`
	Capacity    int       `json:"capacity"`
	NeedsReview bool      `json:"needs_review"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScheduleLoad is a schedule together with the seats already sold on it.
type ScheduleLoad struct {
	TripSchedule
	Booked int `json:"booked"`
}

func (s ScheduleLoad) Free() int {
	free := s.Capacity - s.Booked
	if free < 0 {
		return 0
	}
	return free
}

// SlotAvailability is one row of a shared-ride listing.
type SlotAvailability struct {
	Schedule TripSchedule `json:"schedule"`
	Booked   int          `json:"booked"`
	Free     int          `json:"free"`
	Bookable bool         `json:"bookable"`
}

type SharedBooking struct {
	ID            int64         `json:"id"`
	Reference     string        `json:"reference"`
	ScheduleID    int64         `json:"schedule_id"`
	Passengers    int           `json:"passengers"`
	PickupAddress string        `json:"pickup_address,omitempty"`
	PickupKm      float64       `json:"pickup_km,omitempty"`
	ExtraLuggage  bool          `json:"extra_luggage"`
	Pet           bool          `json:"pet"`
	TotalPrice    float64       `json:"total_price"`
	CreatedAt     time.Time     `json:"created_at"`
	Schedule      *TripSchedule `json:"schedule,omitempty"`

	Contact
}

type ParcelBooking struct {
	ID         int64     `json:"id"`
	Reference  string    `json:"reference"`
	Route      Route     `json:"route"`
	Date       time.Time `json:"date"`
	Parcels    int       `json:"parcels"`
	TotalPrice float64   `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`

	Contact
}

type AirportExclusive struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	Date          time.Time `json:"date"`
	Time          TimeOfDay `json:"time"`
	PickupAddress string    `json:"pickup_address"`
	TotalPrice    float64   `json:"total_price"`
	CreatedAt     time.Time `json:"created_at"`

	Contact
}

type CityExclusive struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	Route         Route     `json:"route"`
	Date          time.Time `json:"date"`
	Time          TimeOfDay `json:"time"`
	PickupAddress string    `json:"pickup_address"`
	TotalPrice    float64   `json:"total_price"`
	CreatedAt     time.Time `json:"created_at"`

	Contact
}

type AnywhereBooking struct {
	ID          int64     `json:"id"`
	Reference   string    `json:"reference"`
	Date        time.Time `json:"date"`
	Time        TimeOfDay `json:"time"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	KmEstimate  float64   `json:"km_estimate"`
	TotalPrice  float64   `json:"total_price"`
	CreatedAt   time.Time `json:"created_at"`

	Contact
}

// Place is a city/street pair used for long-distance pricing.
type Place struct {
	City   string `json:"city"`
	Street string `json:"street"`
}

func (p Place) HasCity() bool {
	return strings.TrimSpace(p.City) != ""
}

func (p Place) String() string {
	city := strings.TrimSpace(p.City)
	street := strings.TrimSpace(p.Street)
	switch {
	case street == "":
		return city
	case city == "":
		return street
	default:
		return street + ", " + city
	}
}

// BookingSummary flattens any booking kind for listings, exports and
// notifications.
type BookingSummary struct {
	Kind       BookingKind `json:"kind"`
	ID         int64       `json:"id"`
	Reference  string      `json:"reference"`
	Route      Route       `json:"route,omitempty"`
	Date       time.Time   `json:"date"`
	Time       string      `json:"time,omitempty"`
	Count      int         `json:"count"`
	Details    string      `json:"details,omitempty"`
	TotalPrice float64     `json:"total_price"`
	CreatedAt  time.Time   `json:"created_at"`

	Contact
}

// Key identifies the booking across kinds.
func (s BookingSummary) Key() string {
	return fmt.Sprintf("%s:%d", s.Kind, s.ID)
}

func (b SharedBooking) Summary() BookingSummary {
	s := BookingSummary{
		Kind:       KindShared,
		ID:         b.ID,
		Reference:  b.Reference,
		Count:      b.Passengers,
		Contact:    b.Contact,
		TotalPrice: b.TotalPrice,
		CreatedAt:  b.CreatedAt,
	}
	if b.Schedule != nil {
		s.Route = b.Schedule.Route
		s.Date = b.Schedule.Date
		s.Time = b.Schedule.Time.String()
	}
	var extras []string
	if b.PickupAddress != "" {
		extras = append(extras, "retiro: "+b.PickupAddress)
	}
	if b.ExtraLuggage {
		extras = append(extras, "valija extra")
	}
	if b.Pet {
		extras = append(extras, "mascota")
	}
	s.Details = strings.Join(extras, "; ")
	return s
}

func (b ParcelBooking) Summary() BookingSummary {
	return BookingSummary{
		Kind:       KindParcel,
		ID:         b.ID,
		Reference:  b.Reference,
		Route:      b.Route,
		Date:       b.Date,
		Count:      b.Parcels,
		Contact:    b.Contact,
		Details:    fmt.Sprintf("%d bulto(s), máx %d kg c/u", b.Parcels, MaxParcelWeightKg),
		TotalPrice: b.TotalPrice,
		CreatedAt:  b.CreatedAt,
	}
}

func (b AirportExclusive) Summary() BookingSummary {
	return BookingSummary{
		Kind:       KindAirport,
		ID:         b.ID,
		Reference:  b.Reference,
		Date:       b.Date,
		Time:       b.Time.String(),
		Count:      1,
		Contact:    b.Contact,
		Details:    "retiro: " + b.PickupAddress,
		TotalPrice: b.TotalPrice,
		CreatedAt:  b.CreatedAt,
	}
}

func (b CityExclusive) Summary() BookingSummary {
	return BookingSummary{
		Kind:       KindExclusive,
		ID:         b.ID,
		Reference:  b.Reference,
		Route:      b.Route,
		Date:       b.Date,
		Time:       b.Time.String(),
		Count:      1,
		Contact:    b.Contact,
		Details:    "retiro: " + b.PickupAddress,
		TotalPrice: b.TotalPrice,
		CreatedAt:  b.CreatedAt,
	}
}

func (b AnywhereBooking) Summary() BookingSummary {
	return BookingSummary{
		Kind:       KindAnywhere,
		ID:         b.ID,
		Reference:  b.Reference,
		Date:       b.Date,
		Time:       b.Time.String(),
		Count:      1,
		Contact:    b.Contact,
		Details:    fmt.Sprintf("%s → %s (%.1f km)", b.Origin, b.Destination, b.KmEstimate),
		TotalPrice: b.TotalPrice,
		CreatedAt:  b.CreatedAt,
	}
}

// BookingsOverview is the admin review listing, newest first per kind.
type BookingsOverview struct {
	Shared    []SharedBooking    `json:"shared"`
	Parcels   []ParcelBooking    `json:"parcels"`
	Airport   []AirportExclusive `json:"airport"`
	Exclusive []CityExclusive    `json:"exclusive"`
	Anywhere  []AnywhereBooking  `json:"anywhere"`
}

// Summaries flattens the overview in kind order.
func (o BookingsOverview) Summaries() []BookingSummary {
	out := make([]BookingSummary, 0, len(o.Shared)+len(o.Parcels)+len(o.Airport)+len(o.Exclusive)+len(o.Anywhere))
	for _, b := range o.Shared {
		out = append(out, b.Summary())
	}
	for _, b := range o.Parcels {
		out = append(out, b.Summary())
	}
	for _, b := range o.Airport {
		out = append(out, b.Summary())
	}
	for _, b := range o.Exclusive {
		out = append(out, b.Summary())
	}
	for _, b := range o.Anywhere {
		out = append(out, b.Summary())
	}
	return out
}

type DashboardCounts struct {
	Shared    int `json:"shared"`
	Parcels   int `json:"parcels"`
	Airport   int `json:"airport"`
	Exclusive int `json:"exclusive"`
	Anywhere  int `json:"anywhere"`
	Schedules int `json:"schedules"`

	FailedSyncTasks int `json:"failed_sync_tasks"`
}

// PriceEntry is a price key with its effective value.
type PriceEntry struct {
	Key    string  `json:"key"`
	Value  float64 `json:"value"`
	Stored bool    `json:"stored"`
}
