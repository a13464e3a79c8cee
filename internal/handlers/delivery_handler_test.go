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
	xhttp "github.com/swiftdrop/delivery-gateway/pkg/http"
	"github.com/valyala/fasthttp"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Create(ctx context.Context, actor services.Actor, p model.OrderCreateRequest) (*model.Order, error) {
	args := m.Called(ctx, actor, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Confirm(ctx context.Context, actor services.Actor, orderID string) (*model.Order, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, actor services.Actor, orderID string) (*model.Order, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Accept(ctx context.Context, actor services.Actor, orderID string) (*model.Order, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, actor services.Actor, orderID string, target model.OrderStatus) (*model.Order, error) {
	args := m.Called(ctx, actor, orderID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) RateDriver(ctx context.Context, actor services.Actor, p model.RateDriverRequest) (*model.Rating, error) {
	args := m.Called(ctx, actor, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Rating), args.Error(1)
}

func (m *MockOrderService) Detail(ctx context.Context, actor services.Actor, orderID string) (*model.Order, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ListMine(ctx context.Context, actor services.Actor, f model.OrderFilter) ([]*model.Order, int64, error) {
	args := m.Called(ctx, actor, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderService) ListPending(ctx context.Context, actor services.Actor, f model.OrderFilter) ([]*model.Order, int64, error) {
	args := m.Called(ctx, actor, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderService) Dashboard(ctx context.Context, actor services.Actor) (*model.Dashboard, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dashboard), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func asUser(ctx *xhttp.RequestCtx, id string, role string) *xhttp.RequestCtx {
	ctx.Request.Header.Set(headerUserID, id)
	ctx.Request.Header.Set(headerUserRole, role)
	return ctx
}

func TestDeliveryHandler_CreateOrder(t *testing.T) {
	t.Run("successful order creation", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		bodyBytes, _ := json.Marshal(createOrderRequest{
			PickupLocation:   "GEC Circle",
			DeliveryLocation: "Agrabad",
			ProductWeight:    2,
		})

		expected := &model.Order{ID: "123456", CustomerID: 1, Status: model.OrderStatusPending, DeliveryFee: 70}

		svc.On("Create", mock.Anything, services.Actor{ID: 1, Role: model.RoleCustomer}, mock.MatchedBy(func(p model.OrderCreateRequest) bool {
			return p.PickupLocation == "GEC Circle" && p.ProductWeight == 2
		})).Return(expected, nil)

		ctx := asUser(setupTestContext("POST", "/delivery/create", bodyBytes), "1", "customer")
		handler.CreateOrder(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.Order
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "123456", response.ID)
		assert.Equal(t, float64(70), response.DeliveryFee)

		svc.AssertExpectations(t)
	})

	t.Run("missing identity headers", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		ctx := setupTestContext("POST", "/delivery/create", []byte(`{}`))
		handler.CreateOrder(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
	})

	t.Run("invalid role header", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		ctx := asUser(setupTestContext("POST", "/delivery/create", []byte(`{}`)), "1", "superuser")
		handler.CreateOrder(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		ctx := asUser(setupTestContext("POST", "/delivery/create", []byte("not json")), "1", "customer")
		handler.CreateOrder(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		svc.On("Create", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, apperr.New(apperr.KindValidation, "pickup_location is required"))

		ctx := asUser(setupTestContext("POST", "/delivery/create", []byte(`{}`)), "1", "customer")
		handler.CreateOrder(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())

		var response map[string]string
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "pickup_location is required", response["error"])
	})
}

func TestDeliveryHandler_Transitions(t *testing.T) {
	withID := func(ctx *xhttp.RequestCtx) *xhttp.RequestCtx {
		ctx.SetUserValue("id", "123456")
		return ctx
	}

	t.Run("accept conflict maps to 409", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		svc.On("Accept", mock.Anything, services.Actor{ID: 2, Role: model.RoleDriver}, "123456").
			Return(nil, apperr.New(apperr.KindConflict, "order #123456 already has a driver"))

		ctx := withID(asUser(setupTestContext("POST", "/delivery/accept/123456", nil), "2", "driver"))
		handler.AcceptOrder(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("cancel forbidden maps to 403", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		svc.On("Cancel", mock.Anything, mock.Anything, "123456").
			Return(nil, apperr.New(apperr.KindForbidden, "only the ordering customer can cancel"))

		ctx := withID(asUser(setupTestContext("POST", "/delivery/cancel/123456", nil), "7", "customer"))
		handler.CancelOrder(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})

	t.Run("confirm not found maps to 404", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		svc.On("Confirm", mock.Anything, mock.Anything, "123456").
			Return(nil, apperr.New(apperr.KindNotFound, "order #123456 not found"))

		ctx := withID(asUser(setupTestContext("POST", "/delivery/confirm/123456", nil), "1", "customer"))
		handler.ConfirmOrder(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("confirm returns the updated order", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		svc.On("Confirm", mock.Anything, services.Actor{ID: 1, Role: model.RoleCustomer}, "123456").
			Return(&model.Order{ID: "123456", Status: model.OrderStatusConfirmed}, nil)

		ctx := withID(asUser(setupTestContext("POST", "/delivery/confirm/123456", nil), "1", "customer"))
		handler.ConfirmOrder(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.Order
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, model.OrderStatusConfirmed, response.Status)
	})
}

func TestDeliveryHandler_UpdateOrderStatus(t *testing.T) {
	t.Run("driver reports picked_up", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		bodyBytes, _ := json.Marshal(updateStatusRequest{Status: "picked_up"})

		svc.On("UpdateStatus", mock.Anything, services.Actor{ID: 2, Role: model.RoleDriver}, "123456", model.OrderStatusPickedUp).
			Return(&model.Order{ID: "123456", Status: model.OrderStatusPickedUp}, nil)

		ctx := asUser(setupTestContext("POST", "/delivery/update/123456", bodyBytes), "2", "driver")
		ctx.SetUserValue("id", "123456")
		handler.UpdateOrderStatus(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("invalid target status maps to 400", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		bodyBytes, _ := json.Marshal(updateStatusRequest{Status: "teleported"})

		svc.On("UpdateStatus", mock.Anything, mock.Anything, "123456", model.OrderStatus("teleported")).
			Return(nil, apperr.New(apperr.KindValidation, `status "teleported" is not a valid driver status`))

		ctx := asUser(setupTestContext("POST", "/delivery/update/123456", bodyBytes), "2", "driver")
		ctx.SetUserValue("id", "123456")
		handler.UpdateOrderStatus(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestDeliveryHandler_RateDriver(t *testing.T) {
	t.Run("successful rating", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		bodyBytes, _ := json.Marshal(rateDriverRequest{Rating: 4.5, Comment: "great"})

		svc.On("RateDriver", mock.Anything, services.Actor{ID: 1, Role: model.RoleCustomer}, mock.MatchedBy(func(p model.RateDriverRequest) bool {
			return p.OrderID == "123456" && p.Rating == 4.5 && p.Comment == "great"
		})).Return(&model.Rating{ID: 9, OrderID: "123456", Rating: 4.5}, nil)

		ctx := asUser(setupTestContext("POST", "/delivery/rate/123456", bodyBytes), "1", "customer")
		ctx.SetUserValue("id", "123456")
		handler.RateDriver(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("already rated maps to 409", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		bodyBytes, _ := json.Marshal(rateDriverRequest{Rating: 5})

		svc.On("RateDriver", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, apperr.New(apperr.KindConflict, "order #123456 is already rated"))

		ctx := asUser(setupTestContext("POST", "/delivery/rate/123456", bodyBytes), "1", "customer")
		ctx.SetUserValue("id", "123456")
		handler.RateDriver(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}

func TestDeliveryHandler_Listings(t *testing.T) {
	t.Run("customer listing", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		svc.On("ListMine", mock.Anything, services.Actor{ID: 1, Role: model.RoleCustomer}, mock.AnythingOfType("model.OrderFilter")).
			Return([]*model.Order{{ID: "123456"}}, int64(1), nil)

		ctx := asUser(setupTestContext("GET", "/delivery/customer", nil), "1", "customer")
		handler.ListCustomerOrders(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response orderListResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(1), response.Total)
	})

	t.Run("driver cannot use the customer listing", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		ctx := asUser(setupTestContext("GET", "/delivery/customer", nil), "2", "driver")
		handler.ListCustomerOrders(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})

	t.Run("pending listing parses pagination", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := NewDeliveryHandler(svc)

		svc.On("ListPending", mock.Anything, mock.Anything, mock.MatchedBy(func(f model.OrderFilter) bool {
			return f.Limit == 5 && f.Offset == 10
		})).Return([]*model.Order{}, int64(0), nil)

		ctx := asUser(setupTestContext("GET", "/delivery/pending_order?limit=5&offset=10", nil), "2", "driver")
		handler.ListPendingOrders(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestDeliveryHandler_Dashboard(t *testing.T) {
	svc := new(MockOrderService)
	handler := NewDeliveryHandler(svc)

	svc.On("Dashboard", mock.Anything, services.Actor{ID: 2, Role: model.RoleDriver}).
		Return(&model.Dashboard{
			Role:   model.RoleDriver,
			Driver: &model.DriverDashboard{DeliveredOrders: 3, TotalEarnings: 120.5},
		}, nil)

	ctx := asUser(setupTestContext("GET", "/dashboard", nil), "2", "driver")
	handler.Dashboard(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response model.Dashboard
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	require.NotNil(t, response.Driver)
	assert.Equal(t, int64(3), response.Driver.DeliveredOrders)
	assert.Equal(t, 120.5, response.Driver.TotalEarnings)
}
