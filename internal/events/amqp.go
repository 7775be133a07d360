package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urielssan/subite/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Publisher is the part of *amqp.Channel the forwarder needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPForwarder republishes booking events to a durable RabbitMQ queue.
type AMQPForwarder struct {
	conn   *amqp.Connection
	ch     Publisher
	queue  string
	logger *zerolog.Logger
}

type envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// DialAMQP connects to the broker and declares the target queue.
func DialAMQP(cfg config.AMQPConfig, logger *zerolog.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	f := NewAMQPForwarder(ch, cfg.Queue, logger)
	f.conn = conn
	return f, nil
}

func NewAMQPForwarder(ch Publisher, queue string, logger *zerolog.Logger) *AMQPForwarder {
	return &AMQPForwarder{ch: ch, queue: queue, logger: logger}
}

// Register subscribes the forwarder to the booking events.
func (f *AMQPForwarder) Register(bus *EventBus) {
	bus.SubscribeAll(f.Handle, EventBookingCreated, EventBookingDeleted, EventBookingMigrated)
}

// Handle publishes one event as a persistent JSON message.
func (f *AMQPForwarder) Handle(event *Event) error {
	body, err := json.Marshal(envelope{Type: event.Type, OccurredAt: event.CreatedAt.UTC(), Payload: event.Payload})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = f.ch.PublishWithContext(ctx,
		"",      // default exchange
		f.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         event.Type,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		f.logger.Error().Err(err).Str("event", event.Type).Msg("amqp publish failed")
		return fmt.Errorf("amqp publish %s: %w", event.Type, err)
	}
	f.logger.Debug().Str("event", event.Type).Str("queue", f.queue).Msg("event forwarded")
	return nil
}

func (f *AMQPForwarder) Close() error {
	if err := f.ch.Close(); err != nil {
		return err
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
