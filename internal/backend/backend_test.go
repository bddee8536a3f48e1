package backend

import (
	"testing"
	"time"
)

func TestNotificationMessageFillsGaps(t *testing.T) {
	fallback := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	n := Notification{SenderID: "host-1", RecipientID: "guest-1", Body: "hello"}
	msg := n.Message("push-abc", fallback)

	if msg.ID != "push-abc" {
		t.Errorf("ID = %q, want synthesized push-abc", msg.ID)
	}
	if !msg.CreatedAt.Equal(fallback) {
		t.Errorf("CreatedAt = %v, want fallback %v", msg.CreatedAt, fallback)
	}
	if msg.ReadAt != nil {
		t.Error("pushed message should be unread")
	}
	if msg.Media != nil {
		t.Error("no media fields should produce no media ref")
	}
}

func TestNotificationMessageKeepsClientKeyWithoutSynthesizingID(t *testing.T) {
	n := Notification{ClientID: "c1", SenderID: "guest-1", RecipientID: "host-1", Body: "hi"}
	msg := n.Message("push-abc", time.Now())

	if msg.ID != "" {
		t.Errorf("ID = %q, want empty so the client key reconciles the provisional entry", msg.ID)
	}
	if msg.MergeKey() != "client:c1" {
		t.Errorf("MergeKey = %q, want client:c1", msg.MergeKey())
	}
}

func TestNotificationMessageKeepsPayloadFields(t *testing.T) {
	created := time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC)

	n := Notification{
		MessageID:   "m1",
		SenderID:    "host-1",
		RecipientID: "guest-1",
		MediaURL:    "file:///clip.mp4",
		MediaMIME:   "video/mp4",
		CreatedAt:   created,
	}
	msg := n.Message("push-unused", time.Now())

	if msg.ID != "m1" {
		t.Errorf("ID = %q, want m1", msg.ID)
	}
	if !msg.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want payload %v", msg.CreatedAt, created)
	}
	if msg.Media == nil || msg.Media.Kind != "video" {
		t.Fatalf("Media = %+v, want video kind", msg.Media)
	}
}

func TestTopic(t *testing.T) {
	if got := Topic("guest-1"); got != "messages.guest-1" {
		t.Errorf("Topic = %q", got)
	}
}
