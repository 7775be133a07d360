package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/urielssan/subite/internal/models"
)

const (
	EventBookingCreated  = "booking_created"
	EventBookingDeleted  = "booking_deleted"
	EventBookingMigrated = "booking_migrated"
	EventScheduleChanged = "schedule_changed"
	EventPricesUpdated   = "prices_updated"
)

// BookingEventPayload is the booking snapshot sent to event consumers.
type BookingEventPayload struct {
	Booking   models.BookingSummary `json:"booking"`
	ChangedBy string                `json:"changed_by,omitempty"`
}

// BookingMigratedPayload records a shared booking moved between slots.
type BookingMigratedPayload struct {
	BookingID      int64            `json:"booking_id"`
	Reference      string           `json:"reference"`
	Route          models.Route     `json:"route"`
	Date           time.Time        `json:"date"`
	FromScheduleID int64            `json:"from_schedule_id"`
	FromTime       models.TimeOfDay `json:"from_time"`
	ToScheduleID   int64            `json:"to_schedule_id"`
	ToTime         models.TimeOfDay `json:"to_time"`
}

// ScheduleChangedPayload describes an admin edit of one slot.
type ScheduleChangedPayload struct {
	Action   string              `json:"action"`
	Schedule models.TripSchedule `json:"schedule"`
}

type PricesUpdatedPayload struct {
	Values map[string]float64 `json:"values"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers one handler for several event types.
func (b *EventBus) SubscribeAll(handler EventHandler, eventTypes ...string) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish runs every subscriber of the event type synchronously. A failing
// handler does not stop the others; all failures are returned joined.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
