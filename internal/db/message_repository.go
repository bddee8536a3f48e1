package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/models"
)

// Message repository errors.
var (
	ErrMessageNotFound = errors.New("message not found")
)

// MessageRepository handles message persistence. It satisfies
// backend.MessageStore.
type MessageRepository struct {
	db     *DB
	now    func() time.Time
	newID  func() string
	notify func(backend.Notification)
}

// MessageOption configures a MessageRepository.
type MessageOption func(*MessageRepository)

// WithNotifier registers a hook invoked after every new durable message,
// with the payload a push transport would carry. Redelivered idempotent
// inserts do not notify again.
func WithNotifier(fn func(backend.Notification)) MessageOption {
	return func(r *MessageRepository) {
		r.notify = fn
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) MessageOption {
	return func(r *MessageRepository) {
		r.now = now
	}
}

// WithIDGenerator overrides durable ID assignment, for tests.
func WithIDGenerator(gen func() string) MessageOption {
	return func(r *MessageRepository) {
		r.newID = gen
	}
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *DB, opts ...MessageOption) *MessageRepository {
	r := &MessageRepository{
		db:    db,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert writes a message that has no durable ID yet, assigning its ID
// and delivery stamp. A retry carrying an already-stored ClientID returns
// the existing row unchanged, so the write is idempotent per send.
func (r *MessageRepository) Insert(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now().UTC()
	}
	if err := msg.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("invalid message: %w", err)
	}

	if msg.ClientID != "" {
		existing, err := r.getByClientID(ctx, msg.ClientID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrMessageNotFound) {
			return models.Message{}, err
		}
	}

	msg.ID = r.newID()
	delivered := r.now().UTC()
	msg.DeliveredAt = &delivered
	msg.State = models.MessageStateSent

	var mediaURL, mediaMIME string
	if msg.Media != nil {
		mediaURL = msg.Media.URL
		mediaMIME = msg.Media.MIME
	}

	err := r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (
				id, client_id, sender_id, recipient_id, body,
				media_url, media_mime, created_at, delivered_at, read_at
			) VALUES (?, NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, NULL)
		`,
			msg.ID,
			msg.ClientID,
			msg.SenderID,
			msg.RecipientID,
			msg.Body,
			mediaURL,
			mediaMIME,
			msg.CreatedAt.UTC().Format(timeLayout),
			delivered.Format(timeLayout),
		); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, kind, message_id, sender_id, recipient_id, created_at, read_at)
			VALUES (?, ?, ?, ?, ?, ?, NULL)
		`,
			r.newID(),
			NotificationKindMessageNew,
			msg.ID,
			msg.SenderID,
			msg.RecipientID,
			msg.CreatedAt.UTC().Format(timeLayout),
		)
		return err
	})
	if err != nil {
		// A concurrent retry of the same send can win the unique
		// client_id race; the stored row is the answer either way.
		if msg.ClientID != "" && isUniqueConstraintError(err) {
			return r.getByClientID(ctx, msg.ClientID)
		}
		return models.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}

	if r.notify != nil {
		r.notify(notificationFor(msg))
	}
	return msg, nil
}

// Query returns every message the viewer sent or received, newest first.
// Ties on the creation stamp break by ascending id so the order is
// deterministic.
func (r *MessageRepository) Query(ctx context.Context, viewerID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, sender_id, recipient_id, body,
		       media_url, media_mime, created_at, delivered_at, read_at
		FROM messages
		WHERE sender_id = ? OR recipient_id = ?
		ORDER BY created_at DESC, id ASC
	`, viewerID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// MarkRead stamps every currently unread message from senderID to
// recipientID as read. Already-read rows keep their original stamp.
func (r *MessageRepository) MarkRead(ctx context.Context, senderID, recipientID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read_at = ?
		WHERE sender_id = ? AND recipient_id = ? AND read_at IS NULL
	`, r.now().UTC().Format(timeLayout), senderID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		r.db.logger.Debug().
			Int64("messages", affected).
			Str("sender_id", senderID).
			Str("recipient_id", recipientID).
			Msg("marked read")
	}
	return nil
}

func (r *MessageRepository) getByClientID(ctx context.Context, clientID string) (models.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, sender_id, recipient_id, body,
		       media_url, media_mime, created_at, delivered_at, read_at
		FROM messages
		WHERE client_id = ?
	`, clientID)

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrMessageNotFound
		}
		return models.Message{}, err
	}
	return msg, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (models.Message, error) {
	var (
		msg         models.Message
		clientID    sql.NullString
		mediaURL    sql.NullString
		mediaMIME   sql.NullString
		createdAt   string
		deliveredAt sql.NullString
		readAt      sql.NullString
	)

	if err := row.Scan(
		&msg.ID,
		&clientID,
		&msg.SenderID,
		&msg.RecipientID,
		&msg.Body,
		&mediaURL,
		&mediaMIME,
		&createdAt,
		&deliveredAt,
		&readAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, err
		}
		return models.Message{}, fmt.Errorf("failed to scan message: %w", err)
	}

	msg.ClientID = clientID.String
	if mediaURL.Valid || mediaMIME.Valid {
		msg.Media = &models.MediaRef{
			URL:  mediaURL.String,
			MIME: mediaMIME.String,
			Kind: models.KindFromMIME(mediaMIME.String),
		}
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	msg.CreatedAt = parsed
	msg.DeliveredAt = parseNullableTime(deliveredAt)
	msg.ReadAt = parseNullableTime(readAt)
	msg.State = models.MessageStateSent
	return msg, nil
}

// notificationFor builds the push payload for a stored message.
func notificationFor(msg models.Message) backend.Notification {
	n := backend.Notification{
		MessageID:   msg.ID,
		ClientID:    msg.ClientID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Body:        msg.Body,
		CreatedAt:   msg.CreatedAt,
		DeliveredAt: msg.DeliveredAt,
	}
	if msg.Media != nil {
		n.MediaURL = msg.Media.URL
		n.MediaMIME = msg.Media.MIME
	}
	return n
}
