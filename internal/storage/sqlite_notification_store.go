package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteNotificationStore implements NotificationStore backed by SQLite.
type SQLiteNotificationStore struct {
	db *sql.DB
}

// NewSQLiteNotificationStore returns a new SQLiteNotificationStore.
func NewSQLiteNotificationStore(db *sql.DB) *SQLiteNotificationStore {
	return &SQLiteNotificationStore{db: db}
}

// LogNotification inserts a delivery record into the database.
func (s *SQLiteNotificationStore) LogNotification(ctx context.Context, entry NotificationLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_log
			(user_id, change_set_id, kind, channel, subject, change_count, status, error_msg, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.ChangeSetID, entry.Kind, entry.Channel,
		entry.Subject, entry.ChangeCount, entry.Status, entry.ErrorMsg, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification log: %w", err)
	}
	return nil
}

// ListNotifications returns the most recent entries ordered by created_at
// descending, optionally filtered to one user.
func (s *SQLiteNotificationStore) ListNotifications(ctx context.Context, userID string, limit int) ([]NotificationLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, change_set_id, kind, channel, subject, change_count, status, error_msg, created_at
		FROM notification_log`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notification log: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	var entries []NotificationLogEntry
	for rows.Next() {
		var e NotificationLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ChangeSetID, &e.Kind, &e.Channel,
			&e.Subject, &e.ChangeCount, &e.Status, &e.ErrorMsg, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification log rows: %w", err)
	}
	return entries, nil
}
