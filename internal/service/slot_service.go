package service

import (
	"context"
	"fmt"
	"time"

	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/events"
	"github.com/urielssan/subite/internal/metrics"
	"github.com/urielssan/subite/internal/models"
	"github.com/urielssan/subite/internal/slots"

	"github.com/rs/zerolog"
)

// Migration failure reasons.
const (
	ReasonNoSlots    = "no_slots"
	ReasonTargetFull = "target_full"
	ReasonOrphan     = "orphan"
)

// SlotService keeps stored slots in line with the canonical catalog.
type SlotService struct {
	repo         domain.SlotRepository
	catalog      *slots.Catalog
	clock        domain.Clock
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	logger       *zerolog.Logger
}

func NewSlotService(
	repo domain.SlotRepository,
	catalog *slots.Catalog,
	clock domain.Clock,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *SlotService {
	return &SlotService{
		repo:         repo,
		catalog:      catalog,
		clock:        clock,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		logger:       logger,
	}
}

// Window returns [today, today+days].
func (s *SlotService) Window(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = models.DefaultCleanupDays
	}
	today := models.DateOf(s.clock.Now())
	return today, today.AddDate(0, 0, days)
}

type CleanupReport struct {
	From    string                `json:"from"`
	To      string                `json:"to"`
	DryRun  bool                  `json:"dry_run"`
	Deleted []models.TripSchedule `json:"deleted"`
	Kept    []models.ScheduleLoad `json:"kept"`
}

// CleanupSlots deletes off-catalog slots without bookings and flags the
// ones that still have bookings for review.
func (s *SlotService) CleanupSlots(ctx context.Context, from, to time.Time, dryRun bool) (*CleanupReport, error) {
	loads, err := s.repo.ListLoadsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &CleanupReport{
		From:    models.FormatDate(from),
		To:      models.FormatDate(to),
		DryRun:  dryRun,
		Deleted: []models.TripSchedule{},
		Kept:    []models.ScheduleLoad{},
	}
	for _, l := range loads {
		if s.catalog.Contains(l.Route, l.Date, l.Time) {
			continue
		}

		if l.Booked == 0 {
			if dryRun {
				report.Deleted = append(report.Deleted, l.TripSchedule)
				continue
			}
			deleted, err := s.repo.DeleteSlotIfEmpty(ctx, l.ID)
			if err != nil {
				return report, err
			}
			if deleted {
				report.Deleted = append(report.Deleted, l.TripSchedule)
				continue
			}
			// Booked between listing and delete.
			if l.Booked, err = s.bookedNow(ctx, l); err != nil {
				return report, err
			}
		}

		if !dryRun && !l.NeedsReview {
			if err := s.repo.MarkNeedsReview(ctx, l.ID); err != nil {
				return report, err
			}
			l.NeedsReview = true
		}
		report.Kept = append(report.Kept, l)
	}

	if !dryRun {
		metrics.AddSlotActions("deleted", len(report.Deleted))
		metrics.AddSlotActions("flagged", len(report.Kept))
	}
	s.logger.Info().Bool("dry_run", dryRun).Int("deleted", len(report.Deleted)).Int("kept", len(report.Kept)).
		Str("from", report.From).Str("to", report.To).Msg("slot cleanup finished")
	return report, nil
}

func (s *SlotService) bookedNow(ctx context.Context, l models.ScheduleLoad) (int, error) {
	current, err := s.repo.FindSlot(ctx, l.Route, l.Date, l.Time)
	if err != nil {
		return 0, err
	}
	return current.Booked, nil
}

type MovedBooking struct {
	BookingID      int64            `json:"booking_id"`
	Reference      string           `json:"reference"`
	Route          models.Route     `json:"route"`
	Date           string           `json:"date"`
	FromScheduleID int64            `json:"from_schedule_id"`
	FromTime       models.TimeOfDay `json:"from_time"`
	ToScheduleID   int64            `json:"to_schedule_id,omitempty"`
	ToTime         models.TimeOfDay `json:"to_time"`
	Passengers     int              `json:"passengers"`
}

type FailedMigration struct {
	BookingID  int64  `json:"booking_id"`
	Reference  string `json:"reference,omitempty"`
	ScheduleID int64  `json:"schedule_id,omitempty"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

type MigrationReport struct {
	From   string            `json:"from"`
	DryRun bool              `json:"dry_run"`
	Moved  []MovedBooking    `json:"moved"`
	Failed []FailedMigration `json:"failed"`
}

type plannedSlot struct {
	route models.Route
	date  string
	time  models.TimeOfDay
}

// MigrateBookings moves shared bookings on off-catalog slots to the nearest
// catalog time of the same route and day. Every booking departing on or
// after from is considered. Each move is capacity-guarded; bookings that
// cannot move are reported for manual review.
func (s *SlotService) MigrateBookings(ctx context.Context, from time.Time, dryRun bool) (*MigrationReport, error) {
	report := &MigrationReport{
		From:   models.FormatDate(from),
		DryRun: dryRun,
		Moved:  []MovedBooking{},
		Failed: []FailedMigration{},
	}

	orphans, err := s.repo.ListOrphanSharedBookings(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range orphans {
		report.Failed = append(report.Failed, FailedMigration{BookingID: id, Reason: ReasonOrphan})
	}

	bookings, err := s.repo.ListSharedBookingsFrom(ctx, from)
	if err != nil {
		return nil, err
	}

	// Seats a dry run would add to each target.
	planned := make(map[plannedSlot]int)

	for _, b := range bookings {
		sch := b.Schedule
		if sch == nil {
			report.Failed = append(report.Failed, FailedMigration{BookingID: b.ID, Reference: b.Reference, ScheduleID: b.ScheduleID, Reason: ReasonOrphan})
			continue
		}
		if s.catalog.Contains(sch.Route, sch.Date, sch.Time) {
			continue
		}

		target, ok := s.catalog.Nearest(sch.Route, sch.Date, sch.Time)
		if !ok {
			report.Failed = append(report.Failed, FailedMigration{BookingID: b.ID, Reference: b.Reference, ScheduleID: sch.ID, Reason: ReasonNoSlots})
			continue
		}

		move := MovedBooking{
			BookingID:      b.ID,
			Reference:      b.Reference,
			Route:          sch.Route,
			Date:           models.FormatDate(sch.Date),
			FromScheduleID: sch.ID,
			FromTime:       sch.Time,
			ToTime:         target,
			Passengers:     b.Passengers,
		}

		if dryRun {
			free, err := s.plannedFree(ctx, planned, sch, target)
			if err != nil {
				return report, err
			}
			if free < b.Passengers {
				report.Failed = append(report.Failed, s.targetFull(b, sch, target, free))
				continue
			}
			planned[plannedSlot{sch.Route, move.Date, target}] += b.Passengers
			report.Moved = append(report.Moved, move)
			continue
		}

		slot, err := s.repo.EnsureSlot(ctx, sch.Route, sch.Date, target, sch.Capacity)
		if err != nil {
			return report, err
		}
		move.ToScheduleID = slot.ID

		if err := s.repo.MoveSharedBooking(ctx, b.ID, slot.ID); err != nil {
			if seats, ok := domain.AsInsufficientSeats(err); ok {
				report.Failed = append(report.Failed, s.targetFull(b, sch, target, seats.Free))
				continue
			}
			return report, err
		}

		report.Moved = append(report.Moved, move)
		s.afterMove(ctx, b, move)
	}

	if !dryRun {
		metrics.AddSlotActions("moved", len(report.Moved))
		metrics.AddSlotActions("failed", len(report.Failed))
	}
	s.logger.Info().Bool("dry_run", dryRun).Int("moved", len(report.Moved)).Int("failed", len(report.Failed)).
		Str("from", report.From).Msg("booking migration finished")
	return report, nil
}

func (s *SlotService) plannedFree(ctx context.Context, planned map[plannedSlot]int, sch *models.TripSchedule, target models.TimeOfDay) (int, error) {
	key := plannedSlot{sch.Route, models.FormatDate(sch.Date), target}
	free := sch.Capacity
	existing, err := s.repo.FindSlot(ctx, sch.Route, sch.Date, target)
	switch {
	case err == nil:
		free = existing.Free()
	case !domain.IsNotFound(err):
		return 0, err
	}
	return free - planned[key], nil
}

func (s *SlotService) targetFull(b models.SharedBooking, sch *models.TripSchedule, target models.TimeOfDay, free int) FailedMigration {
	return FailedMigration{
		BookingID:  b.ID,
		Reference:  b.Reference,
		ScheduleID: sch.ID,
		Reason:     ReasonTargetFull,
		Detail:     fmt.Sprintf("%s has %d free seat(s), %d needed", target, free, b.Passengers),
	}
}

func (s *SlotService) afterMove(ctx context.Context, b models.SharedBooking, move MovedBooking) {
	s.logger.Info().Int64("booking_id", b.ID).Str("from", move.FromTime.String()).Str("to", move.ToTime.String()).
		Str("date", move.Date).Msg("booking migrated")

	if s.eventBus != nil {
		payload := events.BookingMigratedPayload{
			BookingID:      b.ID,
			Reference:      b.Reference,
			Route:          move.Route,
			Date:           b.Schedule.Date,
			FromScheduleID: move.FromScheduleID,
			FromTime:       move.FromTime,
			ToScheduleID:   move.ToScheduleID,
			ToTime:         move.ToTime,
		}
		if err := s.eventBus.PublishJSON(events.EventBookingMigrated, payload); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("publish event error")
		}
	}

	if s.sheetsWorker != nil {
		moved := b
		sch := *b.Schedule
		sch.ID = move.ToScheduleID
		sch.Time = move.ToTime
		moved.ScheduleID = move.ToScheduleID
		moved.Schedule = &sch
		if err := s.sheetsWorker.EnqueueUpsert(ctx, moved.Summary()); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("sheets enqueue error")
		}
	}
}

type ReconcileReport struct {
	Migration *MigrationReport `json:"migration"`
	Cleanup   *CleanupReport   `json:"cleanup"`
}

// Reconcile migrates bookings first so the cleanup can drop the slots the
// migration emptied. In a dry run the cleanup still sees the original
// bookings.
func (s *SlotService) Reconcile(ctx context.Context, from, to time.Time, dryRun bool) (*ReconcileReport, error) {
	migration, err := s.MigrateBookings(ctx, from, dryRun)
	if err != nil {
		return &ReconcileReport{Migration: migration}, err
	}
	cleanup, err := s.CleanupSlots(ctx, from, to, dryRun)
	return &ReconcileReport{Migration: migration, Cleanup: cleanup}, err
}
