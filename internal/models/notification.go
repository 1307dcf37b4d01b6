package models

import "time"

// NotificationKind classifies the event that produced a notification.
type NotificationKind string

const (
	NotificationStatusChange NotificationKind = "STATUS_CHANGE"
	NotificationComment      NotificationKind = "COMMENT"
	NotificationReminder     NotificationKind = "REMINDER"
)

// Notification is a persisted in-app message for a user.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	RequestID *string          `db:"request_id" json:"request_id,omitempty"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Read      bool             `db:"read" json:"read"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter captures listing criteria for a user's notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
