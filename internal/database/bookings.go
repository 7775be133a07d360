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

const sharedBookingSelect = `SELECT b.id, b.reference, b.schedule_id, b.passengers, b.name, b.phone, b.email,
       b.pickup_address, b.pickup_km, b.extra_luggage, b.pet, b.total_price, b.created_at,
       s.route, s.date, s.time, s.capacity, s.needs_review, s.created_at
  FROM shared_bookings b
  JOIN trip_schedules s ON s.id = b.schedule_id`

// BookedSeats sums the passengers of a schedule, 0 when it has no bookings.
func (db *DB) BookedSeats(ctx context.Context, scheduleID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(passengers), 0) FROM shared_bookings WHERE schedule_id = ?`, scheduleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to get booked seats: %w", err)
	}
	return n, nil
}

// CreateSharedBooking inserts the booking only while the schedule still has
// room for all its passengers. The capacity check and the insert are one
// statement, so concurrent requests can never oversell a schedule.
func (db *DB) CreateSharedBooking(ctx context.Context, b *models.SharedBooking) error {
	now := time.Now()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO shared_bookings (
				reference, schedule_id, passengers, name, phone, email,
				pickup_address, pickup_km, extra_luggage, pet, total_price, created_at
			)
			SELECT ?, s.id, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
			  FROM trip_schedules s
			 WHERE s.id = ?
			   AND s.capacity >= ? + COALESCE((SELECT SUM(passengers) FROM shared_bookings WHERE schedule_id = s.id), 0)`,
			b.Reference, b.Passengers, b.Name, b.Phone, b.Email,
			b.PickupAddress, b.PickupKm, b.ExtraLuggage, b.Pet, b.TotalPrice, now,
			b.ScheduleID, b.Passengers,
		)
		if err != nil {
			return fmt.Errorf("failed to create shared booking: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			load, err := getScheduleLoad(ctx, tx, b.ScheduleID)
			if err != nil {
				return err
			}
			return domain.InsufficientSeatsError{Requested: b.Passengers, Free: load.Free()}
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		b.ID = id
		b.CreatedAt = now
		return nil
	})
}

// MoveSharedBooking reassigns a booking to another schedule with the same
// capacity guard used at creation.
func (db *DB) MoveSharedBooking(ctx context.Context, bookingID, targetID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE shared_bookings SET schedule_id = ?
			 WHERE id = ?
			   AND schedule_id != ?
			   AND (SELECT capacity FROM trip_schedules WHERE id = ?) >=
			       passengers + COALESCE((SELECT SUM(o.passengers) FROM shared_bookings o WHERE o.schedule_id = ?), 0)`,
			targetID, bookingID, targetID, targetID, targetID)
		if err != nil {
			return fmt.Errorf("failed to move booking %d: %w", bookingID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		var passengers int
		var current int64
		err = tx.QueryRowContext(ctx, `SELECT passengers, schedule_id FROM shared_bookings WHERE id = ?`, bookingID).
			Scan(&passengers, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFoundError{Resource: "booking", Err: err}
		}
		if err != nil {
			return fmt.Errorf("failed to get booking %d: %w", bookingID, err)
		}
		if current == targetID {
			return nil
		}
		target, err := getScheduleLoad(ctx, tx, targetID)
		if err != nil {
			return err
		}
		return domain.InsufficientSeatsError{Requested: passengers, Free: target.Free()}
	})
}

// ListSharedBookingsFrom returns the shared bookings whose schedule date is
// on or after from, ordered by id.
func (db *DB) ListSharedBookingsFrom(ctx context.Context, from time.Time) ([]models.SharedBooking, error) {
	return querySharedBookings(ctx, db, sharedBookingSelect+` WHERE s.date >= ? ORDER BY b.id`,
		models.FormatDate(from))
}

// ListOrphanSharedBookings returns ids of bookings whose schedule is gone.
func (db *DB) ListOrphanSharedBookings(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT b.id FROM shared_bookings b
		LEFT JOIN trip_schedules s ON s.id = b.schedule_id WHERE s.id IS NULL ORDER BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan bookings: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) CreateParcelBooking(ctx context.Context, b *models.ParcelBooking) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `INSERT INTO parcel_bookings
			(reference, route, date, parcels, name, phone, email, total_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, string(b.Route), models.FormatDate(b.Date), b.Parcels,
		b.Name, b.Phone, b.Email, b.TotalPrice, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create parcel booking: %w", err)
	}
	return setInserted(res, &b.ID, &b.CreatedAt, now)
}

func (db *DB) CreateAirportBooking(ctx context.Context, b *models.AirportExclusive) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `INSERT INTO airport_bookings
			(reference, date, time, name, phone, email, pickup_address, total_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, models.FormatDate(b.Date), b.Time,
		b.Name, b.Phone, b.Email, b.PickupAddress, b.TotalPrice, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create airport booking: %w", err)
	}
	return setInserted(res, &b.ID, &b.CreatedAt, now)
}

func (db *DB) CreateCityExclusive(ctx context.Context, b *models.CityExclusive) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `INSERT INTO city_exclusive_bookings
			(reference, route, date, time, name, phone, email, pickup_address, total_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, string(b.Route), models.FormatDate(b.Date), b.Time,
		b.Name, b.Phone, b.Email, b.PickupAddress, b.TotalPrice, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create exclusive booking: %w", err)
	}
	return setInserted(res, &b.ID, &b.CreatedAt, now)
}

func (db *DB) CreateAnywhereBooking(ctx context.Context, b *models.AnywhereBooking) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `INSERT INTO anywhere_bookings
			(reference, date, time, origin, destination, km_estimate, name, phone, email, total_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, models.FormatDate(b.Date), b.Time, b.Origin, b.Destination, b.KmEstimate,
		b.Name, b.Phone, b.Email, b.TotalPrice, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create anywhere booking: %w", err)
	}
	return setInserted(res, &b.ID, &b.CreatedAt, now)
}

func setInserted(res sql.Result, id *int64, createdAt *time.Time, now time.Time) error {
	lastID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	*id = lastID
	*createdAt = now
	return nil
}

// ListBookings returns every booking, newest first per kind.
func (db *DB) ListBookings(ctx context.Context) (*models.BookingsOverview, error) {
	return listBookings(ctx, db, "", nil)
}

// ListBookingsBetween returns the bookings whose travel date is in
// [from, to], newest first per kind.
func (db *DB) ListBookingsBetween(ctx context.Context, from, to time.Time) (*models.BookingsOverview, error) {
	return listBookings(ctx, db, "date BETWEEN ? AND ?", []any{models.FormatDate(from), models.FormatDate(to)})
}

func listBookings(ctx context.Context, q queryer, dateFilter string, args []any) (*models.BookingsOverview, error) {
	where := func(alias string) string {
		if dateFilter == "" {
			return ""
		}
		return " WHERE " + alias + dateFilter
	}

	var (
		out models.BookingsOverview
		err error
	)
	if out.Shared, err = querySharedBookings(ctx, q, sharedBookingSelect+where("s.")+` ORDER BY b.created_at DESC, b.id DESC`, args...); err != nil {
		return nil, err
	}
	if out.Parcels, err = queryParcels(ctx, q, parcelSelect+where("")+` ORDER BY created_at DESC, id DESC`, args...); err != nil {
		return nil, err
	}
	if out.Airport, err = queryAirport(ctx, q, airportSelect+where("")+` ORDER BY created_at DESC, id DESC`, args...); err != nil {
		return nil, err
	}
	if out.Exclusive, err = queryExclusive(ctx, q, exclusiveSelect+where("")+` ORDER BY created_at DESC, id DESC`, args...); err != nil {
		return nil, err
	}
	if out.Anywhere, err = queryAnywhere(ctx, q, anywhereSelect+where("")+` ORDER BY created_at DESC, id DESC`, args...); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBookingSummary loads one booking of any kind.
func (db *DB) GetBookingSummary(ctx context.Context, kind models.BookingKind, id int64) (*models.BookingSummary, error) {
	return getSummary(ctx, db, kind, id)
}

// DeleteBooking removes one booking inside a transaction and returns what
// was removed.
func (db *DB) DeleteBooking(ctx context.Context, kind models.BookingKind, id int64) (*models.BookingSummary, error) {
	var removed *models.BookingSummary
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		summary, err := getSummary(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+bookingTable(kind)+` WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s booking %d: %w", kind, id, err)
		}
		removed = summary
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// CountBookings returns the dashboard totals.
func (db *DB) CountBookings(ctx context.Context) (models.DashboardCounts, error) {
	var c models.DashboardCounts
	err := db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM shared_bookings),
		(SELECT COUNT(*) FROM parcel_bookings),
		(SELECT COUNT(*) FROM airport_bookings),
		(SELECT COUNT(*) FROM city_exclusive_bookings),
		(SELECT COUNT(*) FROM anywhere_bookings),
		(SELECT COUNT(*) FROM trip_schedules),
		(SELECT COUNT(*) FROM sync_queue WHERE status = ?)`, models.SyncStatusFailed).
		Scan(&c.Shared, &c.Parcels, &c.Airport, &c.Exclusive, &c.Anywhere, &c.Schedules, &c.FailedSyncTasks)
	if err != nil {
		return c, fmt.Errorf("failed to count bookings: %w", err)
	}
	return c, nil
}

func bookingTable(kind models.BookingKind) string {
	switch kind {
	case models.KindShared:
		return "shared_bookings"
	case models.KindParcel:
		return "parcel_bookings"
	case models.KindAirport:
		return "airport_bookings"
	case models.KindExclusive:
		return "city_exclusive_bookings"
	case models.KindAnywhere:
		return "anywhere_bookings"
	default:
		return ""
	}
}

func getSummary(ctx context.Context, q queryer, kind models.BookingKind, id int64) (*models.BookingSummary, error) {
	var (
		summary models.BookingSummary
		found   bool
	)
	switch kind {
	case models.KindShared:
		list, err := querySharedBookings(ctx, q, sharedBookingSelect+` WHERE b.id = ?`, id)
		if err != nil {
			return nil, err
		}
		if found = len(list) == 1; found {
			summary = list[0].Summary()
		}
	case models.KindParcel:
		list, err := queryParcels(ctx, q, parcelSelect+` WHERE id = ?`, id)
		if err != nil {
			return nil, err
		}
		if found = len(list) == 1; found {
			summary = list[0].Summary()
		}
	case models.KindAirport:
		list, err := queryAirport(ctx, q, airportSelect+` WHERE id = ?`, id)
		if err != nil {
			return nil, err
		}
		if found = len(list) == 1; found {
			summary = list[0].Summary()
		}
	case models.KindExclusive:
		list, err := queryExclusive(ctx, q, exclusiveSelect+` WHERE id = ?`, id)
		if err != nil {
			return nil, err
		}
		if found = len(list) == 1; found {
			summary = list[0].Summary()
		}
	case models.KindAnywhere:
		list, err := queryAnywhere(ctx, q, anywhereSelect+` WHERE id = ?`, id)
		if err != nil {
			return nil, err
		}
		if found = len(list) == 1; found {
			summary = list[0].Summary()
		}
	default:
		return nil, domain.Invalid("kind", "unknown booking kind %q", kind)
	}
	if !found {
		return nil, domain.NotFoundError{Resource: string(kind) + " booking"}
	}
	return &summary, nil
}

func querySharedBookings(ctx context.Context, q queryer, query string, args ...any) ([]models.SharedBooking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared bookings: %w", err)
	}
	defer rows.Close()

	var out []models.SharedBooking
	for rows.Next() {
		var (
			b     models.SharedBooking
			s     models.TripSchedule
			route string
			date  string
		)
		err := rows.Scan(
			&b.ID, &b.Reference, &b.ScheduleID, &b.Passengers, &b.Name, &b.Phone, &b.Email,
			&b.PickupAddress, &b.PickupKm, &b.ExtraLuggage, &b.Pet, &b.TotalPrice, &b.CreatedAt,
			&route, &date, &s.Time, &s.Capacity, &s.NeedsReview, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shared booking: %w", err)
		}
		s.ID = b.ScheduleID
		s.Route = models.Route(route)
		if s.Date, err = parseStoredDate(date); err != nil {
			return nil, err
		}
		b.Schedule = &s
		out = append(out, b)
	}
	return out, rows.Err()
}

const parcelSelect = `SELECT id, reference, route, date, parcels, name, phone, email, total_price, created_at
  FROM parcel_bookings`

func queryParcels(ctx context.Context, q queryer, query string, args ...any) ([]models.ParcelBooking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list parcel bookings: %w", err)
	}
	defer rows.Close()

	var out []models.ParcelBooking
	for rows.Next() {
		var b models.ParcelBooking
		var route, date string
		err := rows.Scan(&b.ID, &b.Reference, &route, &date, &b.Parcels, &b.Name, &b.Phone, &b.Email, &b.TotalPrice, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parcel booking: %w", err)
		}
		b.Route = models.Route(route)
		if b.Date, err = parseStoredDate(date); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const airportSelect = `SELECT id, reference, date, time, name, phone, email, pickup_address, total_price, created_at
  FROM airport_bookings`

func queryAirport(ctx context.Context, q queryer, query string, args ...any) ([]models.AirportExclusive, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list airport bookings: %w", err)
	}
	defer rows.Close()

	var out []models.AirportExclusive
	for rows.Next() {
		var b models.AirportExclusive
		var date string
		err := rows.Scan(&b.ID, &b.Reference, &date, &b.Time, &b.Name, &b.Phone, &b.Email, &b.PickupAddress, &b.TotalPrice, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan airport booking: %w", err)
		}
		if b.Date, err = parseStoredDate(date); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const exclusiveSelect = `SELECT id, reference, route, date, time, name, phone, email, pickup_address, total_price, created_at
  FROM city_exclusive_bookings`

func queryExclusive(ctx context.Context, q queryer, query string, args ...any) ([]models.CityExclusive, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusive bookings: %w", err)
	}
	defer rows.Close()

	var out []models.CityExclusive
	for rows.Next() {
		var b models.CityExclusive
		var route, date string
		err := rows.Scan(&b.ID, &b.Reference, &route, &date, &b.Time, &b.Name, &b.Phone, &b.Email, &b.PickupAddress, &b.TotalPrice, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exclusive booking: %w", err)
		}
		b.Route = models.Route(route)
		if b.Date, err = parseStoredDate(date); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const anywhereSelect = `SELECT id, reference, date, time, origin, destination, km_estimate, name, phone, email, total_price, created_at
  FROM anywhere_bookings`

func queryAnywhere(ctx context.Context, q queryer, query string, args ...any) ([]models.AnywhereBooking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list anywhere bookings: %w", err)
	}
	defer rows.Close()

	var out []models.AnywhereBooking
	for rows.Next() {
		var b models.AnywhereBooking
		var date string
		err := rows.Scan(&b.ID, &b.Reference, &date, &b.Time, &b.Origin, &b.Destination, &b.KmEstimate,
			&b.Name, &b.Phone, &b.Email, &b.TotalPrice, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anywhere booking: %w", err)
		}
		if b.Date, err = parseStoredDate(date); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
