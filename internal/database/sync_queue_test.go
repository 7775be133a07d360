package database

import (
	"context"
	"testing"
	"time"

	"github.com/urielssan/subite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:   "upsert",
		BookingKey: "shared:100",
		Payload:    `{"test": true}`,
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.Equal(t, models.SyncStatusPending, task.Status)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "shared:100", tasks[0].BookingKey)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncStatusCompleted, "", nil))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	errMsg := "some error"
	require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{
		TaskType: "delete", BookingKey: "parcel:1", Payload: "{}", Status: models.SyncStatusFailed, LastError: &errMsg,
	}))
	counts, err := db.CountBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.FailedSyncTasks)

	retry := &models.SyncTask{TaskType: "upsert", BookingKey: "airport:2", Payload: "{}"}
	require.NoError(t, db.CreateSyncTask(ctx, retry))

	nextRetry := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, retry.ID, models.SyncStatusRetry, "temporary error", &nextRetry))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks, "retry scheduled in the future must not be due")

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, retry.ID, models.SyncStatusRetry, "temporary error", &past))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 2, tasks[0].RetryCount)
}
