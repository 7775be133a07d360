package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSharedBooking_RejectsOverCapacity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "08:00", 4)
	seedShared(t, db, id, 3)

	b := &models.SharedBooking{
		Reference:  uuid.NewString(),
		ScheduleID: id,
		Passengers: 2,
		Contact:    models.Contact{Name: "Luis", Phone: "351"},
	}
	err := db.CreateSharedBooking(ctx, b)
	require.Error(t, err)

	seats, ok := domain.AsInsufficientSeats(err)
	require.True(t, ok)
	assert.Equal(t, 2, seats.Requested)
	assert.Equal(t, 1, seats.Free)
	assert.Zero(t, b.ID)

	booked, err := db.BookedSeats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, booked)

	overview, err := db.ListBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, overview.Shared, 1)
}

func TestCreateSharedBooking_FillsExactly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := seedSlot(t, db, models.RouteCBARC, "2030-01-07", "10:00", 4)
	seedShared(t, db, id, 3)
	b := seedShared(t, db, id, 1)
	assert.NotZero(t, b.ID)
	assert.False(t, b.CreatedAt.IsZero())

	load, err := db.GetScheduleLoad(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, load.Booked)
	assert.Equal(t, 0, load.Free())
}

func TestCreateSharedBooking_UnknownSchedule(t *testing.T) {
	db := setupTestDB(t)
	err := db.CreateSharedBooking(context.Background(), &models.SharedBooking{
		Reference:  uuid.NewString(),
		ScheduleID: 42,
		Passengers: 1,
	})
	assert.True(t, domain.IsNotFound(err))
}

func TestBookedSeats_EmptySchedule(t *testing.T) {
	db := setupTestDB(t)
	id := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "06:00", 4)

	booked, err := db.BookedSeats(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, booked)
}

func TestConcurrentSharedBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	id := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "12:00", 4)
	seedShared(t, db, id, 2)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			results <- db.CreateSharedBooking(ctx, &models.SharedBooking{
				Reference:  uuid.NewString(),
				ScheduleID: id,
				Passengers: 1,
				Contact:    models.Contact{Name: "Concurrent", Phone: "1"},
			})
		}()
	}
	wg.Wait()
	close(results)

	success, rejected := 0, 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		_, ok := domain.AsInsufficientSeats(err)
		assert.True(t, ok, "unexpected error: %v", err)
		rejected++
	}
	assert.Equal(t, 2, success)
	assert.Equal(t, numGoroutines-2, rejected)

	booked, err := db.BookedSeats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, booked)
}

func TestMoveSharedBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	from := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "08:00", 4)
	to := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "08:30", 3)
	b := seedShared(t, db, from, 2)

	require.NoError(t, db.MoveSharedBooking(ctx, b.ID, to))
	booked, err := db.BookedSeats(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, 2, booked)

	// Moving onto the slot it already occupies is a no-op.
	require.NoError(t, db.MoveSharedBooking(ctx, b.ID, to))

	other := seedShared(t, db, from, 2)
	err = db.MoveSharedBooking(ctx, other.ID, to)
	seats, ok := domain.AsInsufficientSeats(err)
	require.True(t, ok)
	assert.Equal(t, 1, seats.Free)

	assert.True(t, domain.IsNotFound(db.MoveSharedBooking(ctx, 999, to)))
	assert.True(t, domain.IsNotFound(db.MoveSharedBooking(ctx, other.ID, 999)))
}

func TestCreateOtherKindsAndList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	day := testDate(t, "2030-02-01")
	contact := models.Contact{Name: "Eva", Phone: "358", Email: "eva@example.com"}

	parcel := &models.ParcelBooking{Reference: uuid.NewString(), Route: models.RouteCBARC, Date: day, Parcels: 2, Contact: contact, TotalPrice: 9000}
	require.NoError(t, db.CreateParcelBooking(ctx, parcel))

	airport := &models.AirportExclusive{Reference: uuid.NewString(), Date: day, Time: models.MustTimeOfDay("05:30"), Contact: contact, PickupAddress: "Sobremonte 100", TotalPrice: 60000}
	require.NoError(t, db.CreateAirportBooking(ctx, airport))

	exclusive := &models.CityExclusive{Reference: uuid.NewString(), Route: models.RouteRCCBA, Date: day, Time: models.MustTimeOfDay("09:15"), Contact: contact, PickupAddress: "Colón 50", TotalPrice: 45000}
	require.NoError(t, db.CreateCityExclusive(ctx, exclusive))

	anywhere := &models.AnywhereBooking{Reference: uuid.NewString(), Date: day, Time: models.MustTimeOfDay("14:00"), Origin: "Río Cuarto", Destination: "Villa María", KmEstimate: 140, Contact: contact, TotalPrice: 70000}
	require.NoError(t, db.CreateAnywhereBooking(ctx, anywhere))

	overview, err := db.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, overview.Parcels, 1)
	require.Len(t, overview.Airport, 1)
	require.Len(t, overview.Exclusive, 1)
	require.Len(t, overview.Anywhere, 1)
	assert.Equal(t, day, overview.Parcels[0].Date)
	assert.Equal(t, "05:30", overview.Airport[0].Time.String())
	assert.Equal(t, models.RouteRCCBA, overview.Exclusive[0].Route)
	assert.Equal(t, 140.0, overview.Anywhere[0].KmEstimate)
	assert.Equal(t, "eva@example.com", overview.Anywhere[0].Email)

	between, err := db.ListBookingsBetween(ctx, testDate(t, "2030-03-01"), testDate(t, "2030-03-31"))
	require.NoError(t, err)
	assert.Empty(t, between.Summaries())

	counts, err := db.CountBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DashboardCounts{Parcels: 1, Airport: 1, Exclusive: 1, Anywhere: 1}, counts)

	summary, err := db.GetBookingSummary(ctx, models.KindExclusive, exclusive.ID)
	require.NoError(t, err)
	assert.Equal(t, exclusive.Reference, summary.Reference)
	assert.Equal(t, "09:15", summary.Time)
}

func TestListBookings_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	id := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "08:00", 4)
	first := seedShared(t, db, id, 1)
	second := seedShared(t, db, id, 1)

	overview, err := db.ListBookings(context.Background())
	require.NoError(t, err)
	require.Len(t, overview.Shared, 2)
	assert.Equal(t, second.ID, overview.Shared[0].ID)
	assert.Equal(t, first.ID, overview.Shared[1].ID)
	require.NotNil(t, overview.Shared[0].Schedule)
	assert.Equal(t, "08:00", overview.Shared[0].Schedule.Time.String())
}

func TestDeleteBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	id := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "08:00", 4)
	b := seedShared(t, db, id, 2)

	removed, err := db.DeleteBooking(ctx, models.KindShared, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, removed.Reference)
	assert.Equal(t, models.RouteRCCBA, removed.Route)

	_, err = db.DeleteBooking(ctx, models.KindShared, b.ID)
	assert.True(t, domain.IsNotFound(err))

	_, err = db.DeleteBooking(ctx, models.BookingKind("bogus"), 1)
	assert.True(t, domain.IsValidation(err))
}

func TestDeleteBooking_RollsBackOnFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	logger := zerolog.Nop()
	db := &DB{DB: sqlDB, path: ":memory:", logger: &logger}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM parcel_bookings").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "reference", "route", "date", "parcels", "name", "phone", "email", "total_price", "created_at",
		}).AddRow(7, "ref", "RC-CBA", "2030-01-07", 1, "Ana", "1", "", 4500.0, time.Now()))
	mock.ExpectExec("DELETE FROM parcel_bookings").
		WithArgs(int64(7)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = db.DeleteBooking(context.Background(), models.KindParcel, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}
