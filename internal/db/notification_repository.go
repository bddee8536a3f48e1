package db

import (
	"context"
	"fmt"
	"time"
)

// NotificationKindMessageNew is the kind written for every stored message.
const NotificationKindMessageNew = "message.new"

// NotificationRepository handles the pending-notification records written
// alongside every message insert. It satisfies backend.NotificationStore.
type NotificationRepository struct {
	db  *DB
	now func() time.Time
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db, now: time.Now}
}

// MarkNotificationsRead stamps every pending notification from senderID
// to recipientID as read. It mirrors the message read mark so badge
// counts derived from notifications settle with the thread.
func (r *NotificationRepository) MarkNotificationsRead(ctx context.Context, senderID, recipientID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = ?
		WHERE kind = ? AND sender_id = ? AND recipient_id = ? AND read_at IS NULL
	`, r.now().UTC().Format(timeLayout), NotificationKindMessageNew, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// PendingCount returns how many notifications for the recipient are still
// unread, optionally scoped to one sender (empty senderID means all).
func (r *NotificationRepository) PendingCount(ctx context.Context, recipientID, senderID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND read_at IS NULL`
	args := []any{recipientID}
	if senderID != "" {
		query += ` AND sender_id = ?`
		args = append(args, senderID)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}
