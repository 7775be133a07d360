package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/models"
)

const scheduleLoadSelect = `SELECT s.id, s.route, s.date, s.time, s.capacity, s.needs_review, s.created_at,
       COALESCE((SELECT SUM(b.passengers) FROM shared_bookings b WHERE b.schedule_id = s.id), 0)
  FROM trip_schedules s`

// EnsureDaySlots creates the missing slots of one route and date. Existing
// rows, their capacity and their bookings are left untouched.
func (db *DB) EnsureDaySlots(ctx context.Context, route models.Route, date time.Time, times []models.TimeOfDay, capacity int) (int, error) {
	if len(times) == 0 {
		return 0, nil
	}
	created := 0
	now := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO trip_schedules (route, date, time, capacity, needs_review, created_at)
			VALUES (?, ?, ?, ?, 0, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare slot insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range times {
			res, err := stmt.ExecContext(ctx, string(route), models.FormatDate(date), t, capacity, now)
			if err != nil {
				return fmt.Errorf("failed to ensure slot %s %s %s: %w", route, models.FormatDate(date), t, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// ListDayLoads returns the slots of one route and date ordered by time.
func (db *DB) ListDayLoads(ctx context.Context, route models.Route, date time.Time) ([]models.ScheduleLoad, error) {
	return db.queryLoads(ctx, db, scheduleLoadSelect+` WHERE s.route = ? AND s.date = ? ORDER BY s.time`,
		string(route), models.FormatDate(date))
}

// ListLoadsFrom returns every slot on or after from, by date, time, route.
func (db *DB) ListLoadsFrom(ctx context.Context, from time.Time) ([]models.ScheduleLoad, error) {
	return db.queryLoads(ctx, db, scheduleLoadSelect+` WHERE s.date >= ? ORDER BY s.date, s.time, s.route`,
		models.FormatDate(from))
}

// ListLoadsBetween returns the slots in [from, to] by date, route, time.
func (db *DB) ListLoadsBetween(ctx context.Context, from, to time.Time) ([]models.ScheduleLoad, error) {
	return db.queryLoads(ctx, db, scheduleLoadSelect+` WHERE s.date BETWEEN ? AND ? ORDER BY s.date, s.route, s.time`,
		models.FormatDate(from), models.FormatDate(to))
}

func (db *DB) GetScheduleLoad(ctx context.Context, id int64) (*models.ScheduleLoad, error) {
	return getScheduleLoad(ctx, db, id)
}

func getScheduleLoad(ctx context.Context, q queryer, id int64) (*models.ScheduleLoad, error) {
	row := q.QueryRowContext(ctx, scheduleLoadSelect+` WHERE s.id = ?`, id)
	load, err := scanLoad(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{Resource: "schedule", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule %d: %w", id, err)
	}
	return load, nil
}

// FindSlot looks a slot up by its natural key.
func (db *DB) FindSlot(ctx context.Context, route models.Route, date time.Time, t models.TimeOfDay) (*models.ScheduleLoad, error) {
	return findSlot(ctx, db, route, date, t)
}

func findSlot(ctx context.Context, q queryer, route models.Route, date time.Time, t models.TimeOfDay) (*models.ScheduleLoad, error) {
	row := q.QueryRowContext(ctx, scheduleLoadSelect+` WHERE s.route = ? AND s.date = ? AND s.time = ?`,
		string(route), models.FormatDate(date), t)
	load, err := scanLoad(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{Resource: "schedule", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return load, nil
}

// SaveSchedule creates the slot or updates the capacity of the existing one
// with the same route, date and time. Capacity may not drop below the seats
// already sold.
func (db *DB) SaveSchedule(ctx context.Context, s *models.TripSchedule) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := findSlot(ctx, tx, s.Route, s.Date, s.Time)
		if err != nil && !domain.IsNotFound(err) {
			return err
		}

		if existing == nil {
			now := time.Now()
			res, err := tx.ExecContext(ctx, `INSERT INTO trip_schedules (route, date, time, capacity, needs_review, created_at)
				VALUES (?, ?, ?, ?, 0, ?)`, string(s.Route), models.FormatDate(s.Date), s.Time, s.Capacity, now)
			if err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}
			s.ID = id
			s.CreatedAt = now
			return nil
		}

		if s.Capacity < existing.Booked {
			return domain.ConflictError{
				Resource: "schedule",
				Msg:      fmt.Sprintf("capacity %d is below the %d seats already booked", s.Capacity, existing.Booked),
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE trip_schedules SET capacity = ? WHERE id = ?`, s.Capacity, existing.ID); err != nil {
			return fmt.Errorf("failed to update schedule capacity: %w", err)
		}
		s.ID = existing.ID
		s.NeedsReview = existing.NeedsReview
		s.CreatedAt = existing.CreatedAt
		return nil
	})
}

// DeleteSchedule removes a slot. A slot with bookings is only removed when
// cascade is set, in which case the removed bookings are returned.
func (db *DB) DeleteSchedule(ctx context.Context, id int64, cascade bool) ([]models.SharedBooking, error) {
	var removed []models.SharedBooking
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getScheduleLoad(ctx, tx, id); err != nil {
			return err
		}

		bookings, err := querySharedBookings(ctx, tx, sharedBookingSelect+` WHERE b.schedule_id = ? ORDER BY b.id`, id)
		if err != nil {
			return err
		}
		if len(bookings) > 0 && !cascade {
			return domain.ConflictError{
				Resource: "schedule",
				Msg:      fmt.Sprintf("%d booking(s) reference this schedule", len(bookings)),
			}
		}
		if len(bookings) > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM shared_bookings WHERE schedule_id = ?`, id); err != nil {
				return fmt.Errorf("failed to delete schedule bookings: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM trip_schedules WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete schedule: %w", err)
		}
		removed = bookings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteSlotIfEmpty removes the slot only while no booking references it.
func (db *DB) DeleteSlotIfEmpty(ctx context.Context, id int64) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM trip_schedules WHERE id = ?
		AND NOT EXISTS (SELECT 1 FROM shared_bookings WHERE schedule_id = ?)`, id, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete slot %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) MarkNeedsReview(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, `UPDATE trip_schedules SET needs_review = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to flag slot %d: %w", id, err)
	}
	return nil
}

// EnsureSlot returns the slot with the given key, creating it with capacity
// when it does not exist.
func (db *DB) EnsureSlot(ctx context.Context, route models.Route, date time.Time, t models.TimeOfDay, capacity int) (*models.ScheduleLoad, error) {
	var load *models.ScheduleLoad
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO trip_schedules (route, date, time, capacity, needs_review, created_at)
			VALUES (?, ?, ?, ?, 0, ?)`, string(route), models.FormatDate(date), t, capacity, time.Now())
		if err != nil {
			return fmt.Errorf("failed to ensure slot: %w", err)
		}
		load, err = findSlot(ctx, tx, route, date, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return load, nil
}

func (db *DB) queryLoads(ctx context.Context, q queryer, query string, args ...any) ([]models.ScheduleLoad, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var loads []models.ScheduleLoad
	for rows.Next() {
		load, err := scanLoad(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		loads = append(loads, *load)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return loads, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoad(row rowScanner) (*models.ScheduleLoad, error) {
	var load models.ScheduleLoad
	var route, date string
	err := row.Scan(&load.ID, &route, &date, &load.Time, &load.Capacity, &load.NeedsReview, &load.CreatedAt, &load.Booked)
	if err != nil {
		return nil, err
	}
	load.Route = models.Route(route)
	if load.Date, err = parseStoredDate(date); err != nil {
		return nil, err
	}
	return &load, nil
}
