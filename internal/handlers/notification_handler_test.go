package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/swiftdrop/delivery-gateway/internal/apperr"
	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/internal/services"
)

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Dispatch(ctx context.Context, p model.DispatchRequest) (*services.DispatchResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DispatchResult), args.Error(1)
}

func (m *MockNotificationService) ListForUser(ctx context.Context, userID int64) ([]*model.NotificationView, int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.NotificationView), args.Get(1).(int64), args.Error(2)
}

func (m *MockNotificationService) GetForUser(ctx context.Context, notificationID, userID int64) (*model.NotificationView, error) {
	args := m.Called(ctx, notificationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NotificationView), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, notificationID, userID int64) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func TestNotificationHandler_CreateNotification(t *testing.T) {
	t.Run("company dispatch", func(t *testing.T) {
		svc := new(MockNotificationService)
		handler := NewNotificationHandler(svc)

		bodyBytes, _ := json.Marshal(createNotificationRequest{
			Title:        "Promo",
			Message:      "Free delivery today",
			RecipientIDs: []int64{1, 2},
		})

		svc.On("Dispatch", mock.Anything, mock.MatchedBy(func(p model.DispatchRequest) bool {
			return p.Title == "Promo" && len(p.RecipientIDs) == 2 && !p.SendToAll
		})).Return(&services.DispatchResult{
			Notification:    &model.Notification{ID: 7, Title: "Promo"},
			RecipientsCount: 2,
			PushesEnqueued:  2,
		}, nil)

		ctx := asUser(setupTestContext("POST", "/notifications/create", bodyBytes), "5", "company")
		handler.CreateNotification(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response createNotificationResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "success", response.Status)
		assert.Equal(t, int64(7), response.NotificationID)
		assert.Equal(t, 2, response.RecipientsCount)

		svc.AssertExpectations(t)
	})

	t.Run("non-company is forbidden", func(t *testing.T) {
		svc := new(MockNotificationService)
		handler := NewNotificationHandler(svc)

		ctx := asUser(setupTestContext("POST", "/notifications/create", []byte(`{}`)), "1", "customer")
		handler.CreateNotification(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		svc := new(MockNotificationService)
		handler := NewNotificationHandler(svc)

		svc.On("Dispatch", mock.Anything, mock.Anything).
			Return(nil, apperr.New(apperr.KindValidation, "title is required"))

		ctx := asUser(setupTestContext("POST", "/notifications/create", []byte(`{}`)), "5", "company")
		handler.CreateNotification(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestNotificationHandler_ListNotifications(t *testing.T) {
	svc := new(MockNotificationService)
	handler := NewNotificationHandler(svc)

	svc.On("ListForUser", mock.Anything, int64(1)).
		Return([]*model.NotificationView{
			{ID: 2, Title: "second", IsRead: false},
			{ID: 1, Title: "first", IsRead: true},
		}, int64(1), nil)

	ctx := asUser(setupTestContext("GET", "/notifications/list", nil), "1", "customer")
	handler.ListNotifications(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response notificationListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, "success", response.Status)
	assert.Equal(t, int64(1), response.UnreadCount)
	assert.Len(t, response.Data, 2)
}

func TestNotificationHandler_GetNotification(t *testing.T) {
	t.Run("fetch marks read", func(t *testing.T) {
		svc := new(MockNotificationService)
		handler := NewNotificationHandler(svc)

		svc.On("GetForUser", mock.Anything, int64(7), int64(1)).
			Return(&model.NotificationView{ID: 7, Title: "Promo", IsRead: true}, nil)

		ctx := asUser(setupTestContext("GET", "/notifications/7", nil), "1", "customer")
		ctx.SetUserValue("id", "7")
		handler.GetNotification(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.NotificationView
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.True(t, response.IsRead)
	})

	t.Run("bad id", func(t *testing.T) {
		svc := new(MockNotificationService)
		handler := NewNotificationHandler(svc)

		ctx := asUser(setupTestContext("GET", "/notifications/abc", nil), "1", "customer")
		ctx.SetUserValue("id", "abc")
		handler.GetNotification(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("not a recipient maps to 404", func(t *testing.T) {
		svc := new(MockNotificationService)
		handler := NewNotificationHandler(svc)

		svc.On("GetForUser", mock.Anything, int64(7), int64(2)).
			Return(nil, apperr.New(apperr.KindNotFound, "notification 7 not found"))

		ctx := asUser(setupTestContext("GET", "/notifications/7", nil), "2", "driver")
		ctx.SetUserValue("id", "7")
		handler.GetNotification(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestNotificationHandler_MarkRead(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockNotificationService)
		handler := NewNotificationHandler(svc)

		svc.On("MarkRead", mock.Anything, int64(7), int64(1)).Return(nil)

		ctx := asUser(setupTestContext("POST", "/notifications/mark_read/7", nil), "1", "customer")
		ctx.SetUserValue("id", "7")
		handler.MarkRead(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("missing identity", func(t *testing.T) {
		svc := new(MockNotificationService)
		handler := NewNotificationHandler(svc)

		ctx := setupTestContext("POST", "/notifications/mark_read/7", nil)
		ctx.SetUserValue("id", "7")
		handler.MarkRead(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
	})
}

func TestNotificationHandler_MarkAllRead(t *testing.T) {
	svc := new(MockNotificationService)
	handler := NewNotificationHandler(svc)

	svc.On("MarkAllRead", mock.Anything, int64(1)).Return(int64(3), nil)

	ctx := asUser(setupTestContext("POST", "/notifications/mark_all_as_read", nil), "1", "customer")
	handler.MarkAllRead(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, "success", response["status"])
	assert.Equal(t, float64(3), response["marked"])
}
