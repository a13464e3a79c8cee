package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/internal/services"
	xhttp "github.com/swiftdrop/delivery-gateway/pkg/http"
)

type OrderService interface {
	Create(ctx context.Context, actor services.Actor, p model.OrderCreateRequest) (*model.Order, error)
	Confirm(ctx context.Context, actor services.Actor, orderID string) (*model.Order, error)
	Cancel(ctx context.Context, actor services.Actor, orderID string) (*model.Order, error)
	Accept(ctx context.Context, actor services.Actor, orderID string) (*model.Order, error)
	UpdateStatus(ctx context.Context, actor services.Actor, orderID string, target model.OrderStatus) (*model.Order, error)
	RateDriver(ctx context.Context, actor services.Actor, p model.RateDriverRequest) (*model.Rating, error)
	Detail(ctx context.Context, actor services.Actor, orderID string) (*model.Order, error)
	ListMine(ctx context.Context, actor services.Actor, f model.OrderFilter) ([]*model.Order, int64, error)
	ListPending(ctx context.Context, actor services.Actor, f model.OrderFilter) ([]*model.Order, int64, error)
	Dashboard(ctx context.Context, actor services.Actor) (*model.Dashboard, error)
}

type DeliveryHandler struct {
	svc OrderService
}

func RegisterDeliveryRoutes(e *router.Group, h *DeliveryHandler) {
	e.POST("/delivery/create", h.CreateOrder)
	e.POST("/delivery/confirm/{id}", h.ConfirmOrder)
	e.POST("/delivery/cancel/{id}", h.CancelOrder)
	e.POST("/delivery/accept/{id}", h.AcceptOrder)
	e.POST("/delivery/update/{id}", h.UpdateOrderStatus)
	e.POST("/delivery/rate/{id}", h.RateDriver)
	e.GET("/delivery/customer", h.ListCustomerOrders)
	e.GET("/delivery/driver", h.ListDriverOrders)
	e.GET("/delivery/pending_order", h.ListPendingOrders)
	e.GET("/delivery/{id}", h.OrderDetail)
	e.GET("/dashboard", h.Dashboard)
}

func NewDeliveryHandler(orderService OrderService) *DeliveryHandler {
	return &DeliveryHandler{
		svc: orderService,
	}
}

type createOrderRequest struct {
	OrderRef         string   `json:"order_ref"`
	CompanyName      string   `json:"company_name"`
	Description      string   `json:"description"`
	ProductWeight    float64  `json:"product_weight"`
	ProductAmount    float64  `json:"product_amount"`
	PickupLocation   string   `json:"pickup_location"`
	PickupLat        *float64 `json:"pickup_lat"`
	PickupLng        *float64 `json:"pickup_lng"`
	DeliveryLocation string   `json:"delivery_location"`
	DeliveryLat      *float64 `json:"delivery_lat"`
	DeliveryLng      *float64 `json:"delivery_lng"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type rateDriverRequest struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
}

type orderListResponse struct {
	Items []*model.Order `json:"items"`
	Total int64          `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *DeliveryHandler) CreateOrder(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.OrderCreateRequest{
		OrderRef:         req.OrderRef,
		CompanyName:      req.CompanyName,
		Description:      req.Description,
		ProductWeight:    req.ProductWeight,
		ProductAmount:    req.ProductAmount,
		PickupLocation:   req.PickupLocation,
		PickupLat:        req.PickupLat,
		PickupLng:        req.PickupLng,
		DeliveryLocation: req.DeliveryLocation,
		DeliveryLat:      req.DeliveryLat,
		DeliveryLng:      req.DeliveryLng,
	}

	o, err := h.svc.Create(ctx, actor, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, o)
}

func (h *DeliveryHandler) ConfirmOrder(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Confirm)
}

func (h *DeliveryHandler) CancelOrder(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Cancel)
}

func (h *DeliveryHandler) AcceptOrder(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Accept)
}

// transition is the shared shape of the confirm/cancel/accept endpoints:
// path id in, updated order out.
func (h *DeliveryHandler) transition(ctx *xhttp.RequestCtx, op func(context.Context, services.Actor, string) (*model.Order, error)) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	o, err := op(ctx, actor, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, o)
}

func (h *DeliveryHandler) UpdateOrderStatus(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	o, err := h.svc.UpdateStatus(ctx, actor, pathParam(ctx, "id"), model.OrderStatus(req.Status))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, o)
}

func (h *DeliveryHandler) RateDriver(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req rateDriverRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	rating, err := h.svc.RateDriver(ctx, actor, model.RateDriverRequest{
		OrderID: pathParam(ctx, "id"),
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, rating)
}

func (h *DeliveryHandler) OrderDetail(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	o, err := h.svc.Detail(ctx, actor, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, o)
}

func (h *DeliveryHandler) ListCustomerOrders(ctx *xhttp.RequestCtx) {
	h.listMine(ctx, model.RoleCustomer)
}

func (h *DeliveryHandler) ListDriverOrders(ctx *xhttp.RequestCtx) {
	h.listMine(ctx, model.RoleDriver)
}

func (h *DeliveryHandler) listMine(ctx *xhttp.RequestCtx, want model.Role) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	if actor.Role != want && actor.Role != model.RoleCompany {
		writeError(ctx, 403, "wrong role for this listing")
		return
	}

	items, total, err := h.svc.ListMine(ctx, actor, orderFilterFromQuery(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, orderListResponse{Items: items, Total: total})
}

func (h *DeliveryHandler) ListPendingOrders(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	items, total, err := h.svc.ListPending(ctx, actor, orderFilterFromQuery(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, orderListResponse{Items: items, Total: total})
}

func (h *DeliveryHandler) Dashboard(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	d, err := h.svc.Dashboard(ctx, actor)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, d)
}

func orderFilterFromQuery(ctx *xhttp.RequestCtx) model.OrderFilter {
	var f model.OrderFilter
	if v := query(ctx, "status"); v != "" {
		status := model.OrderStatus(v)
		f.Status = &status
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	return f
}
