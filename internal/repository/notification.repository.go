package repository

import (
	"context"
	"errors"
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/pkg/pg"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository is the durable notification store: one row per
// notification, one ledger row per (notification, recipient). The ledger's
// is_read flag is the authoritative read state.
type NotificationRepository struct {
	*pg.DB
}

func NewNotificationRepository(db *pg.DB) *NotificationRepository {
	return &NotificationRepository{
		db,
	}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	entity := toNotificationEntity(n)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toNotificationModel(entity), nil
}

// BulkCreateRecipients writes one unread ledger row per recipient.
func (r *NotificationRepository) BulkCreateRecipients(ctx context.Context, notificationID int64, recipientIDs []int64) (int, error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}

	now := time.Now()
	entities := make([]*NotificationRecipientEntity, len(recipientIDs))
	for i, id := range recipientIDs {
		entities[i] = &NotificationRecipientEntity{
			NotificationID: notificationID,
			RecipientID:    id,
			IsRead:         false,
			CreatedAt:      now,
		}
	}

	if err := r.Write(ctx).WithContext(ctx).Create(&entities).Error; err != nil {
		return 0, err
	}

	return len(entities), nil
}

// ListForUser returns the user's notifications newest-first, each with that
// user's read flag, plus the unread count.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64) ([]*model.NotificationView, int64, error) {
	var rows []*notificationViewRow

	err := r.Read(ctx).WithContext(ctx).
		Table("notification_recipients AS nr").
		Select("n.id AS id, n.title AS title, n.message AS message, n.data AS data, nr.is_read AS is_read, n.created_at AS created_at").
		Joins("JOIN notifications AS n ON n.id = nr.notification_id").
		Where("nr.recipient_id = ?", userID).
		Order("nr.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	unread, err := r.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*model.NotificationView, len(rows))
	for i, row := range rows {
		views[i] = toNotificationView(row)
	}
	return views, unread, nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&NotificationRecipientEntity{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetForUser fetches a single notification as seen by one recipient.
func (r *NotificationRepository) GetForUser(ctx context.Context, notificationID, userID int64) (*model.NotificationView, error) {
	var row notificationViewRow

	err := r.Read(ctx).WithContext(ctx).
		Table("notification_recipients AS nr").
		Select("n.id AS id, n.title AS title, n.message AS message, n.data AS data, nr.is_read AS is_read, n.created_at AS created_at").
		Joins("JOIN notifications AS n ON n.id = nr.notification_id").
		Where("nr.notification_id = ? AND nr.recipient_id = ?", notificationID, userID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, ErrNotificationNotFound
	}

	return toNotificationView(&row), nil
}

// MarkRead flips one ledger row to read. Marking an already-read row is a
// success, marking a row the user never had is not found.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&NotificationRecipientEntity{}).
		Where("notification_id = ? AND recipient_id = ?", notificationID, userID).
		Update("is_read", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish "no such ledger row" from "already read": gorm still
		// reports an affected row for a no-op update, so zero means absent.
		var count int64
		err := r.Read(ctx).WithContext(ctx).
			Model(&NotificationRecipientEntity{}).
			Where("notification_id = ? AND recipient_id = ?", notificationID, userID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotificationNotFound
		}
	}

	return nil
}

// MarkAllRead marks every unread row of the user as read. Idempotent: a
// second call affects zero rows and succeeds.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&NotificationRecipientEntity{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountRecipients returns the ledger row count for one notification.
func (r *NotificationRepository) CountRecipients(ctx context.Context, notificationID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&NotificationRecipientEntity{}).
		Where("notification_id = ?", notificationID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
