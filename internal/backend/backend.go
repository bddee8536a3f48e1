// Package backend declares the contracts the conversation engine consumes
// from the hosted platform. Implementations are pluggable: production
// wires the real platform SDK, while internal/db and internal/events ship
// local reference implementations for development and tests.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/placelet/convo/internal/models"
)

var (
	// ErrProfileNotFound is returned by ProfileDirectory.Lookup when no
	// record exists for the requested user.
	ErrProfileNotFound = errors.New("profile not found")
)

// MessageStore is the durable message platform.
type MessageStore interface {
	// Query returns every message visible to the viewer, ordered by
	// creation time descending.
	Query(ctx context.Context, viewerID string) ([]models.Message, error)

	// Insert writes a message that has no durable ID yet. The message
	// carries its ClientID so retries stay idempotent; the returned
	// record carries the assigned ID and delivery stamp.
	Insert(ctx context.Context, msg models.Message) (models.Message, error)

	// MarkRead stamps every currently unread message from senderID to
	// recipientID as read.
	MarkRead(ctx context.Context, senderID, recipientID string) error
}

// NotificationStore marks pending notification records as read. Platforms
// without a notification feed can skip implementing it.
type NotificationStore interface {
	MarkNotificationsRead(ctx context.Context, senderID, recipientID string) error
}

// PushChannel delivers new-message notifications. Delivery is
// at-least-once and unordered; handlers must tolerate duplicates and
// stale payloads.
type PushChannel interface {
	// Subscribe registers a handler for a topic and returns an
	// unsubscribe function. The handler may be invoked from any
	// goroutine.
	Subscribe(ctx context.Context, topic string, fn func(Notification)) (func(), error)
}

// ProfileRecord is the raw directory entry for a user. Display names are
// stored as parts; the profile resolver composes them.
type ProfileRecord struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ProfileDirectory looks up user display identities.
type ProfileDirectory interface {
	// Lookup returns the record for a user, or ErrProfileNotFound.
	Lookup(ctx context.Context, userID string) (ProfileRecord, error)
}

// MediaUpload is an attachment payload on its way to the media store.
type MediaUpload struct {
	// Name is the original filename, used to derive the stored name.
	Name string

	// MIME is the declared content type.
	MIME string

	// Data is the payload, possibly already compressed.
	Data []byte

	// Encoding names a transport encoding applied by the compressor
	// ("zstd"), or is empty for raw payloads.
	Encoding string
}

// MediaStore persists attachments and returns a reference for the
// message record.
type MediaStore interface {
	Upload(ctx context.Context, upload MediaUpload) (models.MediaRef, error)
}

// Notification is the push payload for a newly durable message. It
// carries a subset of Message fields; any field may be zero and the
// listener synthesizes defaults for the gaps.
type Notification struct {
	MessageID   string     `json:"messageId,omitempty"`
	ClientID    string     `json:"clientId,omitempty"`
	SenderID    string     `json:"senderId"`
	RecipientID string     `json:"recipientId"`
	Body        string     `json:"body,omitempty"`
	MediaURL    string     `json:"mediaUrl,omitempty"`
	MediaMIME   string     `json:"mediaMime,omitempty"`
	CreatedAt   time.Time  `json:"createdAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
}

// Message converts the payload into a message, filling omitted fields:
// a synthesized ID when the platform sent no identity at all and the
// given fallback creation time when the stamp is missing. A payload that
// carries only a ClientID keeps its ID empty so it reconciles against the
// provisional entry it confirms. The next reconciliation corrects
// anything the payload could not carry.
func (n Notification) Message(fallbackID string, fallbackCreatedAt time.Time) models.Message {
	msg := models.Message{
		ID:          n.MessageID,
		ClientID:    n.ClientID,
		SenderID:    n.SenderID,
		RecipientID: n.RecipientID,
		Body:        n.Body,
		CreatedAt:   n.CreatedAt,
		DeliveredAt: n.DeliveredAt,
		State:       models.MessageStateSent,
	}
	if msg.ID == "" && msg.ClientID == "" {
		msg.ID = fallbackID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = fallbackCreatedAt
	}
	if n.MediaURL != "" || n.MediaMIME != "" {
		msg.Media = &models.MediaRef{
			URL:  n.MediaURL,
			MIME: n.MediaMIME,
			Kind: models.KindFromMIME(n.MediaMIME),
		}
	}
	return msg
}

// Topic returns the per-viewer push topic name.
func Topic(viewerID string) string {
	return "messages." + viewerID
}
