package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/knockknock/internal/storage"
)

func TestSQLiteNotificationStore(t *testing.T) {
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := storage.NewSQLiteNotificationStore(db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	t.Run("log and list", func(t *testing.T) {
		entry := storage.NotificationLogEntry{
			InvocationID: "inv-1",
			FunctionName: "train",
			Event:        "start",
			Recipient:    "a@x.com",
			Provider:     "smtp",
			Subject:      "Training has started 🎬",
			Status:       storage.StatusSent,
			CreatedAt:    base,
		}
		require.NoError(t, store.LogNotification(ctx, entry))

		list, err := store.ListNotifications(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)

		got := list[0]
		assert.NotZero(t, got.ID)
		assert.Equal(t, entry.InvocationID, got.InvocationID)
		assert.Equal(t, entry.FunctionName, got.FunctionName)
		assert.Equal(t, entry.Event, got.Event)
		assert.Equal(t, entry.Recipient, got.Recipient)
		assert.Equal(t, entry.Subject, got.Subject)
		assert.Equal(t, entry.Status, got.Status)
		assert.Empty(t, got.ErrorMsg)
		assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("failed status", func(t *testing.T) {
		entry := storage.NotificationLogEntry{
			InvocationID: "inv-1",
			FunctionName: "train",
			Event:        "failure",
			Provider:     "smtp",
			Subject:      "Training has crashed ☠️",
			Status:       storage.StatusFailed,
			ErrorMsg:     "connection refused",
			CreatedAt:    base.Add(time.Minute),
		}
		require.NoError(t, store.LogNotification(ctx, entry))

		list, err := store.ListNotifications(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		// Latest entry is first.
		assert.Equal(t, storage.StatusFailed, list[0].Status)
		assert.Equal(t, "connection refused", list[0].ErrorMsg)
	})

	t.Run("limit", func(t *testing.T) {
		list, err := store.ListNotifications(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "failure", list[0].Event)
	})

	t.Run("default limit", func(t *testing.T) {
		list, err := store.ListNotifications(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}

func TestSQLiteNotificationStore_Empty(t *testing.T) {
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	list, err := storage.NewSQLiteNotificationStore(db).ListNotifications(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}
