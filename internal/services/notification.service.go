package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/swiftdrop/delivery-gateway/internal/apperr"
	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/internal/queue"
	"github.com/swiftdrop/delivery-gateway/internal/repository"
	"github.com/swiftdrop/delivery-gateway/pkg/logger"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
	BulkCreateRecipients(ctx context.Context, notificationID int64, recipientIDs []int64) (int, error)
	ListForUser(ctx context.Context, userID int64) ([]*model.NotificationView, int64, error)
	GetForUser(ctx context.Context, notificationID, userID int64) (*model.NotificationView, error)
	MarkRead(ctx context.Context, notificationID, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RecipientDirectory resolves dispatch targets to existing user ids.
type RecipientDirectory interface {
	ListIDs(ctx context.Context) ([]int64, error)
	ListExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
}

// DispatchResult reports what a dispatch did: how many ledger rows were
// written and how many push jobs made it onto the queue.
type DispatchResult struct {
	Notification    *model.Notification
	RecipientsCount int
	PushesEnqueued  int
}

// NotificationService persists notifications and fans them out. Persistence
// is the source of truth and happens first, in one transaction; the
// real-time push rides a queue behind it and is best effort end to end.
type NotificationService struct {
	notificationRepo NotificationRepository
	recipients       RecipientDirectory
	pushQueue        *queue.Queue
}

func NewNotificationService(notificationRepo NotificationRepository, recipients RecipientDirectory, pushQueue *queue.Queue) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		recipients:       recipients,
		pushQueue:        pushQueue,
	}
}

// Dispatch validates, persists and enqueues one notification. The returned
// result distinguishes ledger rows (durable, transactional) from enqueued
// pushes (best effort): a dispatch with failed pushes is still a success.
func (s *NotificationService) Dispatch(ctx context.Context, p model.DispatchRequest) (*DispatchResult, error) {
	if err := p.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}

	recipientIDs, err := s.resolveRecipients(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(recipientIDs) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no valid recipients")
	}

	var created *model.Notification
	var recipientsCount int
	err = s.notificationRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err = s.notificationRepo.Create(ctx, &model.Notification{
			Title:   p.Title,
			Message: p.Message,
			Data:    p.Data,
		})
		if err != nil {
			return fmt.Errorf("create notification: %w", err)
		}

		recipientsCount, err = s.notificationRepo.BulkCreateRecipients(ctx, created.ID, recipientIDs)
		if err != nil {
			return fmt.Errorf("create recipients: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	enqueued := s.enqueuePushes(ctx, created, recipientIDs)

	return &DispatchResult{
		Notification:    created,
		RecipientsCount: recipientsCount,
		PushesEnqueued:  enqueued,
	}, nil
}

// DispatchBestEffort is Dispatch with the error swallowed. Order transitions
// call this so a notification problem can never fail the transition.
func (s *NotificationService) DispatchBestEffort(ctx context.Context, p model.DispatchRequest) {
	if _, err := s.Dispatch(ctx, p); err != nil {
		logger.Warn("best-effort notification dropped", "title", p.Title, "error", err)
	}
}

func (s *NotificationService) resolveRecipients(ctx context.Context, p model.DispatchRequest) ([]int64, error) {
	if p.SendToAll {
		ids, err := s.recipients.ListIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list recipients: %w", err)
		}
		return ids, nil
	}

	ids, err := s.recipients.ListExistingIDs(ctx, dedupeIDs(p.RecipientIDs))
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	return ids, nil
}

// enqueuePushes puts one push job per recipient on the queue. Failures are
// logged and counted out, never propagated: the durable rows already exist
// and the ledger is the contract.
func (s *NotificationService) enqueuePushes(ctx context.Context, n *model.Notification, recipientIDs []int64) int {
	if s.pushQueue == nil {
		return 0
	}

	enqueued := 0
	for _, recipientID := range recipientIDs {
		job := model.PushJob{
			NotificationID: n.ID,
			RecipientID:    recipientID,
			Title:          n.Title,
			Message:        n.Message,
			Data:           n.Data,
			CreatedAt:      n.CreatedAt,
		}
		if _, err := s.pushQueue.PublishJSON(ctx, job, nil); err != nil {
			logger.Warn("push enqueue failed", "notification_id", n.ID, "recipient_id", recipientID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ListForUser returns the caller's notifications newest-first plus the
// unread count.
func (s *NotificationService) ListForUser(ctx context.Context, userID int64) ([]*model.NotificationView, int64, error) {
	return s.notificationRepo.ListForUser(ctx, userID)
}

// GetForUser fetches one notification and marks it read as a side effect of
// viewing it.
func (s *NotificationService) GetForUser(ctx context.Context, notificationID, userID int64) (*model.NotificationView, error) {
	view, err := s.notificationRepo.GetForUser(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "notification %d not found", notificationID)
		}
		return nil, err
	}

	if !view.IsRead {
		if err := s.notificationRepo.MarkRead(ctx, notificationID, userID); err != nil {
			return nil, err
		}
		view.IsRead = true
	}

	return view, nil
}

// MarkRead marks one notification read for the caller. Idempotent.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID int64) error {
	err := s.notificationRepo.MarkRead(ctx, notificationID, userID)
	if errors.Is(err, repository.ErrNotificationNotFound) {
		return apperr.Newf(apperr.KindNotFound, "notification %d not found", notificationID)
	}
	return err
}

// MarkAllRead marks everything read for the caller and returns the number
// of rows flipped.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}
