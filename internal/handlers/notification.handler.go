package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/internal/services"
	xhttp "github.com/swiftdrop/delivery-gateway/pkg/http"
)

type NotificationService interface {
	Dispatch(ctx context.Context, p model.DispatchRequest) (*services.DispatchResult, error)
	ListForUser(ctx context.Context, userID int64) ([]*model.NotificationView, int64, error)
	GetForUser(ctx context.Context, notificationID, userID int64) (*model.NotificationView, error)
	MarkRead(ctx context.Context, notificationID, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

type NotificationHandler struct {
	svc NotificationService
}

func RegisterNotificationRoutes(e *router.Group, h *NotificationHandler) {
	e.POST("/notifications/create", h.CreateNotification)
	e.GET("/notifications/list", h.ListNotifications)
	e.POST("/notifications/mark_read/{id}", h.MarkRead)
	e.POST("/notifications/mark_all_as_read", h.MarkAllRead)
	e.GET("/notifications/{id}", h.GetNotification)
}

func NewNotificationHandler(notificationService NotificationService) *NotificationHandler {
	return &NotificationHandler{
		svc: notificationService,
	}
}

type createNotificationRequest struct {
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Data         map[string]any `json:"data"`
	RecipientIDs []int64        `json:"recipient_ids"`
	SendToAll    bool           `json:"send_to_all"`
}

type createNotificationResponse struct {
	Status          string `json:"status"`
	NotificationID  int64  `json:"notification_id"`
	RecipientsCount int    `json:"recipients_count"`
	PushesEnqueued  int    `json:"pushes_enqueued"`
}

type notificationListResponse struct {
	Status      string                    `json:"status"`
	UnreadCount int64                     `json:"unread_count"`
	Data        []*model.NotificationView `json:"data"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *NotificationHandler) CreateNotification(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	// Direct dispatch is an operator surface, not something customers or
	// drivers can reach.
	if actor.Role != model.RoleCompany {
		writeError(ctx, 403, "only the company can send notifications")
		return
	}

	var req createNotificationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	result, err := h.svc.Dispatch(ctx, model.DispatchRequest{
		Title:        req.Title,
		Message:      req.Message,
		Data:         req.Data,
		RecipientIDs: req.RecipientIDs,
		SendToAll:    req.SendToAll,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	writeJSON(ctx, 201, createNotificationResponse{
		Status:          "success",
		NotificationID:  result.Notification.ID,
		RecipientsCount: result.RecipientsCount,
		PushesEnqueued:  result.PushesEnqueued,
	})
}

func (h *NotificationHandler) ListNotifications(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	items, unread, err := h.svc.ListForUser(ctx, actor.ID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, notificationListResponse{
		Status:      "success",
		UnreadCount: unread,
		Data:        items,
	})
}

// GetNotification returns one notification and marks it read: opening a
// notification is what reading it means.
func (h *NotificationHandler) GetNotification(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	id, err := notificationID(ctx)
	if err != nil {
		writeError(ctx, 400, "invalid notification id")
		return
	}

	view, err := h.svc.GetForUser(ctx, id, actor.ID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, view)
}

func (h *NotificationHandler) MarkRead(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	id, err := notificationID(ctx)
	if err != nil {
		writeError(ctx, 400, "invalid notification id")
		return
	}

	if err := h.svc.MarkRead(ctx, id, actor.ID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "success"})
}

func (h *NotificationHandler) MarkAllRead(ctx *xhttp.RequestCtx) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	n, err := h.svc.MarkAllRead(ctx, actor.ID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]any{"status": "success", "marked": n})
}

func notificationID(ctx *xhttp.RequestCtx) (int64, error) {
	return strconv.ParseInt(pathParam(ctx, "id"), 10, 64)
}
