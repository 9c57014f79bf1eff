package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/task-sync/internal/model"
	"github.com/BuzzLyutic/task-sync/internal/store"
	"github.com/BuzzLyutic/task-sync/tests"
)

func TestPostgresStore(t *testing.T) {
	pool, cleanup := tests.SetupTestDB(t)
	defer cleanup()

	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	task := model.Task{
		ID:          "local-123",
		Title:       "Test",
		Description: "desc",
		Priority:    model.PriorityHigh,
		Status:      model.StatusNotStarted,
		Tags:        []string{"a", "b"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	t.Run("insert and get", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, task))

		got, err := s.GetByID(ctx, "local-123")
		require.NoError(t, err)
		assert.Equal(t, "Test", got.Title)
		assert.Equal(t, model.PriorityHigh, got.Priority)
		assert.Equal(t, []string{"a", "b"}, got.Tags)
		assert.False(t, got.IsSynced)
	})

	t.Run("unsynced scan and flags", func(t *testing.T) {
		unsynced, err := s.GetUnsynced(ctx)
		require.NoError(t, err)
		require.Len(t, unsynced, 1)

		require.NoError(t, s.MarkSynced(ctx, "local-123"))
		unsynced, err = s.GetUnsynced(ctx)
		require.NoError(t, err)
		assert.Empty(t, unsynced)
	})

	t.Run("rename id", func(t *testing.T) {
		require.NoError(t, s.RenameID(ctx, "local-123", "srv-789"))

		_, err := s.GetByID(ctx, "local-123")
		assert.ErrorIs(t, err, store.ErrorNotFound)

		got, err := s.GetByID(ctx, "srv-789")
		require.NoError(t, err)
		assert.Equal(t, "Test", got.Title)
	})

	t.Run("rename onto existing id keeps one record", func(t *testing.T) {
		other := task
		other.ID = "local-456"
		other.Title = "Other"
		require.NoError(t, s.Insert(ctx, other))

		require.NoError(t, s.RenameID(ctx, "local-456", "srv-789"))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "srv-789", all[0].ID)
		assert.Equal(t, "Other", all[0].Title)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.DeleteByID(ctx, "srv-789"))
		assert.ErrorIs(t, s.DeleteByID(ctx, "srv-789"), store.ErrorNotFound)
	})
}
