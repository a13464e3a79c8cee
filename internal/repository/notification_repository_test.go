package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftdrop/delivery-gateway/internal/model"
)

func TestNotificationRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Notification{
		Title:   "Order Update",
		Message: "Your order has been picked up",
		Data:    map[string]any{"order_id": "123456"},
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "123456", created.Data["order_id"])
	assert.NotZero(t, created.CreatedAt)
}

func TestNotificationRepository_BulkCreateRecipients(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Notification{Title: "Promo", Message: "Free delivery today"})
	require.NoError(t, err)

	t.Run("one unread row per recipient", func(t *testing.T) {
		n, err := repo.BulkCreateRecipients(ctx, created.ID, []int64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		count, err := repo.CountRecipients(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		for _, id := range []int64{1, 2, 3} {
			unread, err := repo.UnreadCount(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, int64(1), unread)
		}
	})

	t.Run("empty recipient list is a no-op", func(t *testing.T) {
		n, err := repo.BulkCreateRecipients(ctx, created.ID, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestNotificationRepository_ListForUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db.DB)
	ctx := context.Background()

	first, err := repo.Create(ctx, &model.Notification{Title: "First", Message: "first message"})
	require.NoError(t, err)
	second, err := repo.Create(ctx, &model.Notification{Title: "Second", Message: "second message"})
	require.NoError(t, err)

	_, err = repo.BulkCreateRecipients(ctx, first.ID, []int64{1, 2})
	require.NoError(t, err)
	_, err = repo.BulkCreateRecipients(ctx, second.ID, []int64{1})
	require.NoError(t, err)

	t.Run("only the user's notifications, all unread", func(t *testing.T) {
		views, unread, err := repo.ListForUser(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread)
		require.Len(t, views, 1)
		assert.Equal(t, first.ID, views[0].ID)
		assert.Equal(t, "First", views[0].Title)
		assert.False(t, views[0].IsRead)
	})

	t.Run("read state tracked per user", func(t *testing.T) {
		require.NoError(t, repo.MarkRead(ctx, first.ID, 1))

		views, unread, err := repo.ListForUser(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread)
		require.Len(t, views, 2)

		byID := map[int64]bool{}
		for _, v := range views {
			byID[v.ID] = v.IsRead
		}
		assert.True(t, byID[first.ID])
		assert.False(t, byID[second.ID])

		// User 2's copy of the same notification stays unread.
		unread2, err := repo.UnreadCount(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread2)
	})

	t.Run("no notifications", func(t *testing.T) {
		views, unread, err := repo.ListForUser(ctx, 99)
		require.NoError(t, err)
		assert.Zero(t, unread)
		assert.Empty(t, views)
	})
}

func TestNotificationRepository_GetForUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Notification{
		Title:   "Order Update",
		Message: "Delivered",
		Data:    map[string]any{"order_id": "654321"},
	})
	require.NoError(t, err)
	_, err = repo.BulkCreateRecipients(ctx, created.ID, []int64{1})
	require.NoError(t, err)

	t.Run("recipient sees it", func(t *testing.T) {
		view, err := repo.GetForUser(ctx, created.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, created.ID, view.ID)
		assert.Equal(t, "654321", view.Data["order_id"])
		assert.False(t, view.IsRead)
	})

	t.Run("non-recipient gets not found", func(t *testing.T) {
		_, err := repo.GetForUser(ctx, created.ID, 2)
		assert.ErrorIs(t, err, ErrNotificationNotFound)
	})
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Notification{Title: "Promo", Message: "hi"})
	require.NoError(t, err)
	_, err = repo.BulkCreateRecipients(ctx, created.ID, []int64{1})
	require.NoError(t, err)

	t.Run("marks the row read", func(t *testing.T) {
		require.NoError(t, repo.MarkRead(ctx, created.ID, 1))

		unread, err := repo.UnreadCount(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, unread)
	})

	t.Run("already read is a success", func(t *testing.T) {
		assert.NoError(t, repo.MarkRead(ctx, created.ID, 1))
	})

	t.Run("absent ledger row is not found", func(t *testing.T) {
		err := repo.MarkRead(ctx, created.ID, 42)
		assert.ErrorIs(t, err, ErrNotificationNotFound)
	})
}

func TestNotificationRepository_MarkAllRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db.DB)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		created, err := repo.Create(ctx, &model.Notification{Title: title, Message: title})
		require.NoError(t, err)
		_, err = repo.BulkCreateRecipients(ctx, created.ID, []int64{1})
		require.NoError(t, err)
	}

	t.Run("marks everything", func(t *testing.T) {
		n, err := repo.MarkAllRead(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		unread, err := repo.UnreadCount(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, unread)
	})

	t.Run("idempotent", func(t *testing.T) {
		n, err := repo.MarkAllRead(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
