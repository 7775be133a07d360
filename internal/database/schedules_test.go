package database

import (
	"context"
	"testing"

	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func times(raw ...string) []models.TimeOfDay {
	out := make([]models.TimeOfDay, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.MustTimeOfDay(r))
	}
	return out
}

func TestEnsureDaySlots_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	day := testDate(t, "2030-01-07")

	created, err := db.EnsureDaySlots(ctx, models.RouteRCCBA, day, times("06:00", "08:00", "10:00"), 4)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	first, err := db.ListDayLoads(ctx, models.RouteRCCBA, day)
	require.NoError(t, err)
	seedShared(t, db, first[1].ID, 2)

	created, err = db.EnsureDaySlots(ctx, models.RouteRCCBA, day, times("06:00", "08:00", "10:00"), 8)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	second, err := db.ListDayLoads(ctx, models.RouteRCCBA, day)
	require.NoError(t, err)
	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, 4, second[i].Capacity)
	}
	assert.Equal(t, 2, second[1].Booked)
}

func TestListDayLoads_OrderedAndScoped(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	day := testDate(t, "2030-01-07")

	_, err := db.EnsureDaySlots(ctx, models.RouteRCCBA, day, times("18:00", "06:00", "12:00"), 4)
	require.NoError(t, err)
	_, err = db.EnsureDaySlots(ctx, models.RouteCBARC, day, times("07:00"), 4)
	require.NoError(t, err)

	loads, err := db.ListDayLoads(ctx, models.RouteRCCBA, day)
	require.NoError(t, err)
	require.Len(t, loads, 3)
	assert.Equal(t, "06:00", loads[0].Time.String())
	assert.Equal(t, "12:00", loads[1].Time.String())
	assert.Equal(t, "18:00", loads[2].Time.String())
	assert.Equal(t, day, loads[0].Date)
}

func TestSaveSchedule(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	day := testDate(t, "2030-01-07")

	s := &models.TripSchedule{Route: models.RouteCBARC, Date: day, Time: models.MustTimeOfDay("09:00"), Capacity: 6}
	require.NoError(t, db.SaveSchedule(ctx, s))
	require.NotZero(t, s.ID)

	seedShared(t, db, s.ID, 3)

	lower := &models.TripSchedule{Route: models.RouteCBARC, Date: day, Time: models.MustTimeOfDay("09:00"), Capacity: 2}
	err := db.SaveSchedule(ctx, lower)
	assert.True(t, domain.IsConflict(err))

	same := &models.TripSchedule{Route: models.RouteCBARC, Date: day, Time: models.MustTimeOfDay("09:00"), Capacity: 3}
	require.NoError(t, db.SaveSchedule(ctx, same))
	assert.Equal(t, s.ID, same.ID)

	load, err := db.GetScheduleLoad(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, load.Capacity)

	loads, err := db.ListLoadsFrom(ctx, day)
	require.NoError(t, err)
	assert.Len(t, loads, 1)

	loads, err = db.ListLoadsFrom(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, loads)
}

func TestDeleteSchedule(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	empty := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "06:00", 4)
	_, err := db.DeleteSchedule(ctx, empty, false)
	require.NoError(t, err)

	busy := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "08:00", 4)
	b := seedShared(t, db, busy, 1)

	_, err = db.DeleteSchedule(ctx, busy, false)
	assert.True(t, domain.IsConflict(err))
	booked, err := db.BookedSeats(ctx, busy)
	require.NoError(t, err)
	assert.Equal(t, 1, booked)

	removed, err := db.DeleteSchedule(ctx, busy, true)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, b.ID, removed[0].ID)

	_, err = db.GetScheduleLoad(ctx, busy)
	assert.True(t, domain.IsNotFound(err))

	_, err = db.DeleteSchedule(ctx, busy, true)
	assert.True(t, domain.IsNotFound(err))
}

func TestDeleteSlotIfEmpty(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	busy := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "08:00", 4)
	seedShared(t, db, busy, 1)
	deleted, err := db.DeleteSlotIfEmpty(ctx, busy)
	require.NoError(t, err)
	assert.False(t, deleted)

	empty := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "09:00", 4)
	deleted, err = db.DeleteSlotIfEmpty(ctx, empty)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestEnsureSlotAndReviewFlag(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	day := testDate(t, "2030-01-07")

	load, err := db.EnsureSlot(ctx, models.RouteCBARC, day, models.MustTimeOfDay("08:30"), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, load.Capacity)

	again, err := db.EnsureSlot(ctx, models.RouteCBARC, day, models.MustTimeOfDay("08:30"), 9)
	require.NoError(t, err)
	assert.Equal(t, load.ID, again.ID)
	assert.Equal(t, 5, again.Capacity)

	require.NoError(t, db.MarkNeedsReview(ctx, load.ID))
	flagged, err := db.GetScheduleLoad(ctx, load.ID)
	require.NoError(t, err)
	assert.True(t, flagged.NeedsReview)

	between, err := db.ListLoadsBetween(ctx, day, day)
	require.NoError(t, err)
	assert.Len(t, between, 1)
}

func TestListSharedBookingsFrom(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	past := seedSlot(t, db, models.RouteRCCBA, "2029-12-31", "08:00", 4)
	in := seedSlot(t, db, models.RouteRCCBA, "2030-01-07", "08:00", 4)
	later := seedSlot(t, db, models.RouteRCCBA, "2030-09-07", "08:00", 4)
	seedShared(t, db, past, 1)
	a := seedShared(t, db, in, 1)
	b := seedShared(t, db, later, 1)
	c := seedShared(t, db, in, 2)

	list, err := db.ListSharedBookingsFrom(ctx, testDate(t, "2030-01-07"))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
	assert.Equal(t, c.ID, list[2].ID)

	orphans, err := db.ListOrphanSharedBookings(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}
