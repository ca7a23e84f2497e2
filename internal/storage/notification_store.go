package storage

import (
	"context"
	"time"
)

// Dispatch kinds recorded in the delivery log.
const (
	KindImmediate = "immediate"
	KindDigest    = "digest"
	KindTest      = "test"
)

// NotificationLogEntry records a single notification delivery attempt on one
// channel.
type NotificationLogEntry struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	ChangeSetID string    `json:"change_set_id"`
	Kind        string    `json:"kind"` // immediate, digest, test
	Channel     string    `json:"channel"`
	Subject     string    `json:"subject"`
	ChangeCount int       `json:"change_count"`
	Status      string    `json:"status"` // sent, failed
	ErrorMsg    string    `json:"error_msg"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationStore defines the interface for persisting delivery logs.
type NotificationStore interface {
	// LogNotification records a notification delivery attempt.
	LogNotification(ctx context.Context, entry NotificationLogEntry) error
	// ListNotifications returns the most recent entries, up to limit.
	// An empty userID lists across all users.
	ListNotifications(ctx context.Context, userID string, limit int) ([]NotificationLogEntry, error)
}
