package model

import (
	"errors"
	"time"
)

// Notification is the durable record shared by all of its recipients. The
// per-user read state lives on NotificationRecipient, never here.
type Notification struct {
	ID      int64          `json:"id"      gorm:"primaryKey;autoIncrement;column:id"`
	Title   string         `json:"title"   gorm:"column:title;not null"`
	Message string         `json:"message" gorm:"column:message;not null"`
	Data    map[string]any `json:"data"    gorm:"column:data;serializer:json"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

// NotificationRecipient is the (notification, recipient) read ledger row.
// It is the authoritative read state; the real-time push derived from it is
// a convenience signal only.
type NotificationRecipient struct {
	ID             int64 `json:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	NotificationID int64 `json:"notification_id" gorm:"column:notification_id;not null;uniqueIndex:idx_notification_recipient;index"`
	RecipientID    int64 `json:"recipient_id"    gorm:"column:recipient_id;not null;uniqueIndex:idx_notification_recipient;index:idx_recipient_read"`
	IsRead         bool  `json:"is_read"         gorm:"column:is_read;not null;default:false;index:idx_recipient_read"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (NotificationRecipient) TableName() string { return "notification_recipients" }

// NotificationView is a notification joined with one recipient's read flag,
// as returned by the list and detail endpoints.
type NotificationView struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
}

// DispatchRequest is the input to the notification dispatcher. Exactly one
// of RecipientIDs (non-empty) or SendToAll must be provided.
type DispatchRequest struct {
	Title        string
	Message      string
	Data         map[string]any
	RecipientIDs []int64
	SendToAll    bool
}

func (p DispatchRequest) Validate() error {
	if p.Title == "" {
		return errors.New("title is required")
	}
	if p.Message == "" {
		return errors.New("message is required")
	}
	if !p.SendToAll && len(p.RecipientIDs) == 0 {
		return errors.New("provide recipient_ids or set send_to_all")
	}
	return nil
}

// PushJob is the unit handed to the push queue: one durable notification,
// one recipient. The notifier resolves the recipient to a realtime group
// and publishes the envelope.
type PushJob struct {
	NotificationID int64          `json:"notification_id"`
	RecipientID    int64          `json:"recipient_id"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Data           map[string]any `json:"data"`
	CreatedAt      time.Time      `json:"created_at"`
}
