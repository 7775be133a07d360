package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/events"
	"github.com/urielssan/subite/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramService notifies manager chats about new and removed bookings.
type TelegramService struct {
	bot    domain.TelegramSender
	chats  []int64
	logger *zerolog.Logger
}

func NewTelegramService(bot domain.TelegramSender, chats []int64, logger *zerolog.Logger) *TelegramService {
	return &TelegramService{
		bot:    bot,
		chats:  chats,
		logger: logger,
	}
}

// Register subscribes the notifier to booking events.
func (s *TelegramService) Register(bus *events.EventBus) {
	bus.SubscribeAll(s.Handle, events.EventBookingCreated, events.EventBookingDeleted)
}

func (s *TelegramService) Handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	text := FormatBookingMessage(event.Type, payload.Booking)
	var errs []error
	for _, chatID := range s.chats {
		if _, err := s.SendMessage(chatID, text); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Str("booking", payload.Booking.Key()).Msg("telegram notify failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	return s.bot.Send(msg)
}

// FormatBookingMessage renders a booking event as plain text.
func FormatBookingMessage(eventType string, b models.BookingSummary) string {
	var sb strings.Builder
	switch eventType {
	case events.EventBookingCreated:
		sb.WriteString("🆕 Nueva reserva: ")
	case events.EventBookingDeleted:
		sb.WriteString("🗑 Reserva eliminada: ")
	default:
		sb.WriteString(eventType + ": ")
	}
	sb.WriteString(b.Kind.Label())
	fmt.Fprintf(&sb, " #%d\n", b.ID)

	if b.Route != "" {
		fmt.Fprintf(&sb, "Ruta: %s\n", b.Route.Label())
	}
	sb.WriteString("Fecha: " + models.FormatDate(b.Date))
	if b.Time != "" {
		sb.WriteString(" " + b.Time)
	}
	sb.WriteString("\n")
	if b.Count > 0 {
		fmt.Fprintf(&sb, "Cantidad: %d\n", b.Count)
	}
	fmt.Fprintf(&sb, "Cliente: %s (%s)\n", b.Name, b.Phone)
	if b.Details != "" {
		sb.WriteString("Detalle: " + b.Details + "\n")
	}
	fmt.Fprintf(&sb, "Total: $%.2f", b.TotalPrice)
	return sb.String()
}
