package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/placelet/convo/internal/models"
)

const viewer = "guest-1"

func at(min int) time.Time {
	return time.Date(2026, 3, 1, 12, min, 0, 0, time.UTC)
}

func namedProfiles(names map[string]string) ProfileFunc {
	return func(id string) models.ProfileSummary {
		if name, ok := names[id]; ok {
			return models.ProfileSummary{CounterpartID: id, DisplayName: name}
		}
		return models.PlaceholderProfile(id)
	}
}

func TestConversationsPartitionsByCounterpart(t *testing.T) {
	read := at(1)
	msgs := []models.Message{
		{ID: "m1", SenderID: "host-1", RecipientID: viewer, Body: "welcome", CreatedAt: at(0), ReadAt: &read},
		{ID: "m2", SenderID: viewer, RecipientID: "host-1", Body: "thanks", CreatedAt: at(2)},
		{ID: "m3", SenderID: "host-2", RecipientID: viewer, Body: "still interested?", CreatedAt: at(5)},
	}

	convs := Conversations(viewer, msgs, namedProfiles(map[string]string{
		"host-1": "Maria",
		"host-2": "Jonas",
	}))

	require.Len(t, convs, 2)

	// Sorted by recency: host-2 (12:05) before host-1 (12:02).
	require.Equal(t, "host-2", convs[0].CounterpartID)
	require.Equal(t, "Jonas", convs[0].DisplayName)
	require.Equal(t, "still interested?", convs[0].PreviewText)
	require.Equal(t, 1, convs[0].UnreadCount)

	require.Equal(t, "host-1", convs[1].CounterpartID)
	require.Equal(t, "thanks", convs[1].PreviewText)
	require.Equal(t, at(2), convs[1].LastMessageAt)
	require.Equal(t, 0, convs[1].UnreadCount, "read and own messages do not count")
}

func TestConversationsLatestTieBreaksOnID(t *testing.T) {
	msgs := []models.Message{
		{ID: "m-b", SenderID: "host-1", RecipientID: viewer, Body: "second", CreatedAt: at(0)},
		{ID: "m-a", SenderID: "host-1", RecipientID: viewer, Body: "first", CreatedAt: at(0)},
	}

	convs := Conversations(viewer, msgs, nil)
	require.Len(t, convs, 1)
	require.Equal(t, "second", convs[0].PreviewText, "greater id wins equal timestamps")

	// Deterministic for the reversed input order too.
	reversed := Conversations(viewer, []models.Message{msgs[1], msgs[0]}, nil)
	require.Equal(t, convs[0].PreviewText, reversed[0].PreviewText)
}

func TestConversationsEqualRecencySortsByCounterpartID(t *testing.T) {
	msgs := []models.Message{
		{ID: "m1", SenderID: "host-b", RecipientID: viewer, Body: "x", CreatedAt: at(0)},
		{ID: "m2", SenderID: "host-a", RecipientID: viewer, Body: "y", CreatedAt: at(0)},
	}

	convs := Conversations(viewer, msgs, nil)
	require.Len(t, convs, 2)
	require.Equal(t, "host-a", convs[0].CounterpartID)
	require.Equal(t, "host-b", convs[1].CounterpartID)
}

func TestConversationsSupportIdentityIsHardcoded(t *testing.T) {
	looked := false
	profiles := func(id string) models.ProfileSummary {
		looked = true
		return models.PlaceholderProfile(id)
	}

	msgs := []models.Message{
		{ID: "m1", SenderID: models.SupportCounterpartID, RecipientID: viewer, Body: "hi there", CreatedAt: at(0)},
	}

	convs := Conversations(viewer, msgs, profiles)
	require.Len(t, convs, 1)
	require.Equal(t, models.SupportDisplayName, convs[0].DisplayName)
	require.Equal(t, models.SupportAvatarRef, convs[0].AvatarRef)
	require.False(t, looked, "support identity must not hit the directory")
}

func TestPreviewMediaAware(t *testing.T) {
	video := &models.MediaRef{URL: "file:///clip.mp4", MIME: "video/mp4", Kind: models.MediaKindVideo}
	image := &models.MediaRef{URL: "file:///pic.jpg", MIME: "image/jpeg", Kind: models.MediaKindImage}
	file := &models.MediaRef{URL: "file:///doc.pdf", MIME: "application/pdf", Kind: models.MediaKindFile}

	tests := []struct {
		name string
		msg  models.Message
		want string
	}{
		{
			name: "viewer sent video",
			msg:  models.Message{SenderID: viewer, RecipientID: "host-1", Media: video},
			want: "You sent a video",
		},
		{
			name: "counterpart sent video",
			msg:  models.Message{SenderID: "host-1", RecipientID: viewer, Media: video},
			want: "Maria sent a video",
		},
		{
			name: "counterpart sent photo",
			msg:  models.Message{SenderID: "host-1", RecipientID: viewer, Media: image},
			want: "Maria sent a photo",
		},
		{
			name: "counterpart sent file",
			msg:  models.Message{SenderID: "host-1", RecipientID: viewer, Media: file},
			want: "Maria sent an attachment",
		},
		{
			name: "media with body keeps body",
			msg:  models.Message{SenderID: "host-1", RecipientID: viewer, Body: "look at this", Media: image},
			want: "look at this",
		},
		{
			name: "plain text",
			msg:  models.Message{SenderID: "host-1", RecipientID: viewer, Body: "hello"},
			want: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Preview(tt.msg, viewer, "Maria"))
		})
	}
}

func TestConversationsEmptyInput(t *testing.T) {
	require.Empty(t, Conversations(viewer, nil, nil))
}
