package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/urielssan/subite/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testDate(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := models.ParseDate(raw)
	require.NoError(t, err)
	return d
}

// seedSlot creates one slot and returns its id.
func seedSlot(t *testing.T, db *DB, route models.Route, date, hhmm string, capacity int) int64 {
	t.Helper()
	ctx := context.Background()
	d := testDate(t, date)
	tm := models.MustTimeOfDay(hhmm)
	_, err := db.EnsureDaySlots(ctx, route, d, []models.TimeOfDay{tm}, capacity)
	require.NoError(t, err)
	load, err := db.FindSlot(ctx, route, d, tm)
	require.NoError(t, err)
	return load.ID
}

func seedShared(t *testing.T, db *DB, scheduleID int64, passengers int) *models.SharedBooking {
	t.Helper()
	b := &models.SharedBooking{
		Reference:  uuid.NewString(),
		ScheduleID: scheduleID,
		Passengers: passengers,
		Contact:    models.Contact{Name: "Ana", Phone: "3584000000"},
		TotalPrice: float64(passengers) * 9000,
	}
	require.NoError(t, db.CreateSharedBooking(context.Background(), b))
	return b
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "subite.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subite.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "08:00", 4)
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, &logger, WithBusyTimeout(1000))
	require.NoError(t, err)
	defer db.Close()

	counts, err := db.CountBookings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Schedules)
}

func TestNewDB_Error(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewDB(t.TempDir(), &logger)
	assert.Error(t, err)
}

func TestDB_Ready(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ready(context.Background()))
}

func TestDB_ForeignKeysEnforced(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.ExecContext(context.Background(), `INSERT INTO shared_bookings
		(reference, schedule_id, passengers, name, phone, total_price, created_at)
		VALUES ('x', 999, 1, 'a', 'b', 1, ?)`, time.Now())
	assert.Error(t, err)
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()
	day := testDate(t, "2030-01-07")

	_, err = db.Price(ctx, models.PriceKm, 1)
	assert.Error(t, err)
	_, err = db.BookedSeats(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, db.CreateSharedBooking(ctx, &models.SharedBooking{}))
	_, err = db.ListBookings(ctx)
	assert.Error(t, err)
	_, err = db.EnsureDaySlots(ctx, models.RouteRCCBA, day, []models.TimeOfDay{0}, 4)
	assert.Error(t, err)
	assert.Error(t, db.CreateSyncTask(ctx, &models.SyncTask{}))
	assert.Error(t, db.Ready(ctx))
}
