package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/swiftdrop/delivery-gateway/internal/apperr"
	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/internal/queue"
	"github.com/swiftdrop/delivery-gateway/internal/repository"
	"github.com/swiftdrop/delivery-gateway/pkg/redis"
)

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

func (m *MockNotificationRepository) BulkCreateRecipients(ctx context.Context, notificationID int64, recipientIDs []int64) (int, error) {
	args := m.Called(ctx, notificationID, recipientIDs)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationRepository) ListForUser(ctx context.Context, userID int64) ([]*model.NotificationView, int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.NotificationView), args.Get(1).(int64), args.Error(2)
}

func (m *MockNotificationRepository) GetForUser(ctx context.Context, notificationID, userID int64) (*model.NotificationView, error) {
	args := m.Called(ctx, notificationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NotificationView), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, notificationID, userID int64) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type MockRecipientDirectory struct {
	mock.Mock
}

func (m *MockRecipientDirectory) ListIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRecipientDirectory) ListExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func setupTestQueue(t *testing.T) (*miniredis.Miniredis, *queue.Queue) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// Unique connection name per test to dodge the adapter registry cache.
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	q, err := queue.New(adapter, queue.Config{
		Name:          "test:push",
		ConsumerGroup: "test-notifier",
		ConsumerName:  "test-consumer",
		PollInterval:  50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Stop(time.Second) })

	return mr, q
}

func TestNotificationService_Dispatch(t *testing.T) {
	t.Run("persists then enqueues one push per recipient", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		dir := new(MockRecipientDirectory)
		_, q := setupTestQueue(t)
		svc := NewNotificationService(repo, dir, q)

		dir.On("ListExistingIDs", mock.Anything, []int64{1, 2}).Return([]int64{1, 2}, nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(n *model.Notification) bool {
			return n.Title == "Promo" && n.Message == "Free delivery today"
		})).Return(&model.Notification{ID: 7, Title: "Promo", Message: "Free delivery today", CreatedAt: time.Now()}, nil)
		repo.On("BulkCreateRecipients", mock.Anything, int64(7), []int64{1, 2}).Return(2, nil)

		result, err := svc.Dispatch(context.Background(), model.DispatchRequest{
			Title:        "Promo",
			Message:      "Free delivery today",
			RecipientIDs: []int64{1, 2},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), result.Notification.ID)
		assert.Equal(t, 2, result.RecipientsCount)
		assert.Equal(t, 2, result.PushesEnqueued)

		length, err := q.Len()
		require.NoError(t, err)
		assert.Equal(t, int64(2), length)

		repo.AssertExpectations(t)
	})

	t.Run("send_to_all expands to the whole directory", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		dir := new(MockRecipientDirectory)
		_, q := setupTestQueue(t)
		svc := NewNotificationService(repo, dir, q)

		dir.On("ListIDs", mock.Anything).Return([]int64{1, 2, 3}, nil)
		repo.On("Create", mock.Anything, mock.Anything).
			Return(&model.Notification{ID: 8, Title: "Maintenance"}, nil)
		repo.On("BulkCreateRecipients", mock.Anything, int64(8), []int64{1, 2, 3}).Return(3, nil)

		result, err := svc.Dispatch(context.Background(), model.DispatchRequest{
			Title:     "Maintenance",
			Message:   "Service window tonight",
			SendToAll: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, result.RecipientsCount)

		dir.AssertNotCalled(t, "ListExistingIDs", mock.Anything, mock.Anything)
	})

	t.Run("duplicate recipient ids are collapsed", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		dir := new(MockRecipientDirectory)
		svc := NewNotificationService(repo, dir, nil)

		dir.On("ListExistingIDs", mock.Anything, []int64{1, 2}).Return([]int64{1, 2}, nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(&model.Notification{ID: 9}, nil)
		repo.On("BulkCreateRecipients", mock.Anything, int64(9), []int64{1, 2}).Return(2, nil)

		_, err := svc.Dispatch(context.Background(), model.DispatchRequest{
			Title:        "Promo",
			Message:      "hi",
			RecipientIDs: []int64{1, 2, 1, 2, 1},
		})
		require.NoError(t, err)
		dir.AssertExpectations(t)
	})

	t.Run("unknown recipients are dropped, none left means invalid", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		dir := new(MockRecipientDirectory)
		svc := NewNotificationService(repo, dir, nil)

		dir.On("ListExistingIDs", mock.Anything, []int64{42}).Return([]int64{}, nil)

		_, err := svc.Dispatch(context.Background(), model.DispatchRequest{
			Title:        "Promo",
			Message:      "hi",
			RecipientIDs: []int64{42},
		})
		assert.True(t, apperr.IsValidation(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("missing title is invalid", func(t *testing.T) {
		svc := NewNotificationService(new(MockNotificationRepository), new(MockRecipientDirectory), nil)

		_, err := svc.Dispatch(context.Background(), model.DispatchRequest{
			Message:      "hi",
			RecipientIDs: []int64{1},
		})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("no recipients and no send_to_all is invalid", func(t *testing.T) {
		svc := NewNotificationService(new(MockNotificationRepository), new(MockRecipientDirectory), nil)

		_, err := svc.Dispatch(context.Background(), model.DispatchRequest{Title: "x", Message: "y"})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("persistence failure fails the dispatch", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		dir := new(MockRecipientDirectory)
		svc := NewNotificationService(repo, dir, nil)

		dir.On("ListExistingIDs", mock.Anything, []int64{1}).Return([]int64{1}, nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		_, err := svc.Dispatch(context.Background(), model.DispatchRequest{
			Title:        "Promo",
			Message:      "hi",
			RecipientIDs: []int64{1},
		})
		assert.Error(t, err)
	})

	t.Run("enqueued job carries the notification payload", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		dir := new(MockRecipientDirectory)
		mr, q := setupTestQueue(t)
		svc := NewNotificationService(repo, dir, q)

		dir.On("ListExistingIDs", mock.Anything, []int64{1}).Return([]int64{1}, nil)
		repo.On("Create", mock.Anything, mock.Anything).
			Return(&model.Notification{ID: 7, Title: "Promo", Message: "hello", Data: map[string]any{"order_id": "123456"}}, nil)
		repo.On("BulkCreateRecipients", mock.Anything, int64(7), []int64{1}).Return(1, nil)

		_, err := svc.Dispatch(context.Background(), model.DispatchRequest{
			Title:        "Promo",
			Message:      "hello",
			RecipientIDs: []int64{1},
		})
		require.NoError(t, err)

		entries, err := mr.Stream("test:push")
		require.NoError(t, err)
		require.Len(t, entries, 1)

		// Stream entry values are a flat field/value slice
		var raw string
		for i := 0; i+1 < len(entries[0].Values); i += 2 {
			if entries[0].Values[i] == "data" {
				raw = entries[0].Values[i+1]
			}
		}
		require.NotEmpty(t, raw)

		var job model.PushJob
		require.NoError(t, json.Unmarshal([]byte(raw), &job))
		assert.Equal(t, int64(7), job.NotificationID)
		assert.Equal(t, int64(1), job.RecipientID)
		assert.Equal(t, "123456", job.Data["order_id"])
	})
}

func TestNotificationService_DispatchBestEffort(t *testing.T) {
	// Swallows the error: nothing to assert beyond "does not panic" and the
	// repo never being reached.
	repo := new(MockNotificationRepository)
	svc := NewNotificationService(repo, new(MockRecipientDirectory), nil)

	svc.DispatchBestEffort(context.Background(), model.DispatchRequest{})
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNotificationService_GetForUser(t *testing.T) {
	t.Run("fetch marks unread as read", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := NewNotificationService(repo, new(MockRecipientDirectory), nil)

		repo.On("GetForUser", mock.Anything, int64(7), int64(1)).
			Return(&model.NotificationView{ID: 7, IsRead: false}, nil)
		repo.On("MarkRead", mock.Anything, int64(7), int64(1)).Return(nil)

		view, err := svc.GetForUser(context.Background(), 7, 1)
		require.NoError(t, err)
		assert.True(t, view.IsRead)
		repo.AssertExpectations(t)
	})

	t.Run("already read is not re-marked", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := NewNotificationService(repo, new(MockRecipientDirectory), nil)

		repo.On("GetForUser", mock.Anything, int64(7), int64(1)).
			Return(&model.NotificationView{ID: 7, IsRead: true}, nil)

		_, err := svc.GetForUser(context.Background(), 7, 1)
		require.NoError(t, err)
		repo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("absent notification is not found", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := NewNotificationService(repo, new(MockRecipientDirectory), nil)

		repo.On("GetForUser", mock.Anything, int64(7), int64(2)).
			Return(nil, repository.ErrNotificationNotFound)

		_, err := svc.GetForUser(context.Background(), 7, 2)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestNotificationService_MarkRead(t *testing.T) {
	repo := new(MockNotificationRepository)
	svc := NewNotificationService(repo, new(MockRecipientDirectory), nil)

	repo.On("MarkRead", mock.Anything, int64(7), int64(1)).Return(repository.ErrNotificationNotFound)

	err := svc.MarkRead(context.Background(), 7, 1)
	assert.True(t, apperr.IsNotFound(err))
}
