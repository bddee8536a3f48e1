// Package aggregate folds a viewer's flat message collection into
// per-counterpart conversation summaries. The fold is pure: callers pass
// a snapshot of messages and a non-blocking profile callback, and get the
// derived inbox ordering back.
package aggregate

import (
	"sort"

	"github.com/placelet/convo/internal/models"
)

// ProfileFunc returns the cached display identity for a counterpart. It
// must not block; unresolved counterparts come back as placeholders.
type ProfileFunc func(counterpartID string) models.ProfileSummary

// Conversations builds one summary per distinct counterpart in msgs.
//
// Within a partition the latest message is the one with the greatest
// CreatedAt, ties broken by lexicographic ID comparison so the result is
// deterministic for any input order. The returned slice is sorted by
// LastMessageAt descending, ties by CounterpartID ascending.
func Conversations(viewerID string, msgs []models.Message, profiles ProfileFunc) []models.Conversation {
	type partition struct {
		latest models.Message
		unread int
	}

	parts := make(map[string]*partition)
	for _, msg := range msgs {
		counterpart := msg.CounterpartFor(viewerID)
		if counterpart == "" {
			continue
		}

		part, ok := parts[counterpart]
		if !ok {
			parts[counterpart] = &partition{latest: msg, unread: unreadDelta(msg, viewerID)}
			continue
		}
		if newer(msg, part.latest) {
			part.latest = msg
		}
		part.unread += unreadDelta(msg, viewerID)
	}

	convs := make([]models.Conversation, 0, len(parts))
	for counterpart, part := range parts {
		summary := profileFor(counterpart, profiles)
		convs = append(convs, models.Conversation{
			CounterpartID: counterpart,
			DisplayName:   summary.DisplayName,
			AvatarRef:     summary.AvatarRef,
			PreviewText:   Preview(part.latest, viewerID, summary.DisplayName),
			LastMessageAt: part.latest.CreatedAt,
			UnreadCount:   part.unread,
		})
	}

	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].LastMessageAt.Equal(convs[j].LastMessageAt) {
			return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
		}
		return convs[i].CounterpartID < convs[j].CounterpartID
	})
	return convs
}

// Preview derives the inbox preview line for a message. Media-only
// messages get a fixed phrase from the sender's perspective; everything
// else shows the raw body. senderName is the counterpart's display name
// and is only used for third-person phrasing.
func Preview(msg models.Message, viewerID, senderName string) string {
	if msg.Media == nil || msg.Body != "" {
		return msg.Body
	}

	var noun string
	switch msg.Media.Kind {
	case models.MediaKindImage:
		noun = "a photo"
	case models.MediaKindVideo:
		noun = "a video"
	default:
		noun = "an attachment"
	}

	if msg.SenderID == viewerID {
		return "You sent " + noun
	}
	if senderName == "" {
		senderName = models.PlaceholderDisplayName
	}
	return senderName + " sent " + noun
}

// newer reports whether a supersedes b as a partition's latest message.
func newer(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func unreadDelta(msg models.Message, viewerID string) int {
	if msg.UnreadFor(viewerID) {
		return 1
	}
	return 0
}

// profileFor returns the display identity for a counterpart. The support
// pseudo-identity is fixed and never looked up.
func profileFor(counterpartID string, profiles ProfileFunc) models.ProfileSummary {
	if counterpartID == models.SupportCounterpartID {
		return models.SupportProfile()
	}
	if profiles == nil {
		return models.PlaceholderProfile(counterpartID)
	}
	return profiles(counterpartID)
}
