package repository

import (
	"encoding/json"
	"time"

	"github.com/swiftdrop/delivery-gateway/internal/model"
)

type NotificationEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Title     string    `db:"title"      gorm:"column:title;not null"`
	Message   string    `db:"message"    gorm:"column:message;not null"`
	Data      string    `db:"data"       gorm:"column:data"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (NotificationEntity) TableName() string {
	return "notifications"
}

type NotificationRecipientEntity struct {
	ID             int64     `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	NotificationID int64     `db:"notification_id" gorm:"column:notification_id;not null;uniqueIndex:idx_notification_recipient"`
	RecipientID    int64     `db:"recipient_id"    gorm:"column:recipient_id;not null;uniqueIndex:idx_notification_recipient;index:idx_recipient_read"`
	IsRead         bool      `db:"is_read"         gorm:"column:is_read;not null;default:false;index:idx_recipient_read"`
	CreatedAt      time.Time `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
}

func (NotificationRecipientEntity) TableName() string {
	return "notification_recipients"
}

func toNotificationEntity(n *model.Notification) *NotificationEntity {
	if n == nil {
		return nil
	}
	data := ""
	if n.Data != nil {
		if b, err := json.Marshal(n.Data); err == nil {
			data = string(b)
		}
	}
	return &NotificationEntity{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Data:      data,
		CreatedAt: n.CreatedAt,
	}
}

func toNotificationModel(e *NotificationEntity) *model.Notification {
	if e == nil {
		return nil
	}
	return &model.Notification{
		ID:        e.ID,
		Title:     e.Title,
		Message:   e.Message,
		Data:      decodeData(e.Data),
		CreatedAt: e.CreatedAt,
	}
}

func decodeData(raw string) map[string]any {
	data := map[string]any{}
	if raw == "" {
		return data
	}
	_ = json.Unmarshal([]byte(raw), &data)
	return data
}

// notificationViewRow is the join of one recipient ledger row with its
// notification, as selected by the list and detail queries.
type notificationViewRow struct {
	ID        int64     `gorm:"column:id"`
	Title     string    `gorm:"column:title"`
	Message   string    `gorm:"column:message"`
	Data      string    `gorm:"column:data"`
	IsRead    bool      `gorm:"column:is_read"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func toNotificationView(row *notificationViewRow) *model.NotificationView {
	if row == nil {
		return nil
	}
	return &model.NotificationView{
		ID:        row.ID,
		Title:     row.Title,
		Message:   row.Message,
		Data:      decodeData(row.Data),
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
	}
}
