// Package models defines the conversation domain types shared across convo.
package models

import (
	"strings"
	"time"
)

// MessageState tracks a message's position in the optimistic send
// lifecycle. Durable records loaded from the platform are always sent.
type MessageState string

const (
	// MessageStatePending marks a locally composed message whose durable
	// write has not completed yet.
	MessageStatePending MessageState = "pending"

	// MessageStateSent marks a message confirmed by the durable store.
	MessageStateSent MessageState = "sent"

	// MessageStateFailed marks a local message whose durable write or
	// media upload failed. Failed messages stay in the thread until the
	// user re-sends explicitly.
	MessageStateFailed MessageState = "failed"
)

// MediaKind classifies an attachment by its MIME type.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindFile  MediaKind = "file"
)

// KindFromMIME derives the media kind from a MIME type.
func KindFromMIME(mime string) MediaKind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaKindImage
	case strings.HasPrefix(mime, "video/"):
		return MediaKindVideo
	default:
		return MediaKindFile
	}
}

// MediaRef points at an uploaded attachment.
type MediaRef struct {
	URL  string    `json:"url"`
	MIME string    `json:"mime"`
	Kind MediaKind `json:"kind"`
}

// Message is a single two-party chat message. Once durable it is
// immutable; only the read/delivered stamps change afterwards.
type Message struct {
	// ID is the durable identity. Empty until the platform confirms the
	// write; a message with an empty ID is provisional (or failed).
	ID string `json:"id,omitempty"`

	// ClientID is the local correlation key. Set only on messages created
	// by the send pipeline; the durable confirmation carries it back so
	// the provisional entry can be replaced in place.
	ClientID string `json:"clientId,omitempty"`

	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`

	// Body may be empty when the message carries only media.
	Body string `json:"body"`

	Media *MediaRef `json:"mediaRef,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`

	// State is engine-local and never persisted by the platform.
	State MessageState `json:"-"`
}

// Provisional reports whether the message has not been confirmed durable.
func (m Message) Provisional() bool {
	return m.ID == ""
}

// CounterpartFor returns the other participant relative to the viewer.
func (m Message) CounterpartFor(viewerID string) string {
	if m.SenderID == viewerID {
		return m.RecipientID
	}
	return m.SenderID
}

// UnreadFor reports whether the message is addressed to the viewer and
// has not been read.
func (m Message) UnreadFor(viewerID string) bool {
	return m.RecipientID == viewerID && m.ReadAt == nil
}

// MergeKey identifies a message across the provisional/durable boundary:
// the durable ID when present, otherwise the client correlation key.
func (m Message) MergeKey() string {
	if m.ID != "" {
		return m.ID
	}
	return "client:" + m.ClientID
}

// Validate checks the message for structural problems.
func (m Message) Validate() error {
	errs := &ValidationErrors{}
	if m.SenderID == "" {
		errs.AddMessage("senderId", "sender is required")
	}
	if m.RecipientID == "" {
		errs.AddMessage("recipientId", "recipient is required")
	}
	if m.SenderID != "" && m.SenderID == m.RecipientID {
		errs.AddMessage("recipientId", "sender and recipient must differ")
	}
	if m.Body == "" && m.Media == nil {
		errs.AddMessage("body", "message needs text or media")
	}
	if m.CreatedAt.IsZero() {
		errs.AddMessage("createdAt", "creation time is required")
	}
	return errs.Err()
}
