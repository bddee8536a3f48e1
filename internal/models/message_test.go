package models

import (
	"testing"
	"time"
)

func TestKindFromMIME(t *testing.T) {
	tests := []struct {
		mime string
		want MediaKind
	}{
		{"image/jpeg", MediaKindImage},
		{"image/png", MediaKindImage},
		{"video/mp4", MediaKindVideo},
		{"application/pdf", MediaKindFile},
		{"", MediaKindFile},
	}

	for _, tt := range tests {
		if got := KindFromMIME(tt.mime); got != tt.want {
			t.Errorf("KindFromMIME(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestMessageCounterpartFor(t *testing.T) {
	msg := Message{SenderID: "host-1", RecipientID: "guest-1"}

	if got := msg.CounterpartFor("guest-1"); got != "host-1" {
		t.Errorf("counterpart for recipient = %q, want host-1", got)
	}
	if got := msg.CounterpartFor("host-1"); got != "guest-1" {
		t.Errorf("counterpart for sender = %q, want guest-1", got)
	}
}

func TestMessageUnreadFor(t *testing.T) {
	readAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		msg    Message
		viewer string
		want   bool
	}{
		{"unread addressed to viewer", Message{SenderID: "a", RecipientID: "b"}, "b", true},
		{"already read", Message{SenderID: "a", RecipientID: "b", ReadAt: &readAt}, "b", false},
		{"viewer is sender", Message{SenderID: "a", RecipientID: "b"}, "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.UnreadFor(tt.viewer); got != tt.want {
				t.Fatalf("UnreadFor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageMergeKey(t *testing.T) {
	durable := Message{ID: "m1", ClientID: "c1"}
	if got := durable.MergeKey(); got != "m1" {
		t.Errorf("durable merge key = %q, want m1", got)
	}

	provisional := Message{ClientID: "c1"}
	if got := provisional.MergeKey(); got != "client:c1" {
		t.Errorf("provisional merge key = %q, want client:c1", got)
	}
	if !provisional.Provisional() {
		t.Error("message without id should be provisional")
	}
}

func TestMessageValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{
			name:    "valid text message",
			msg:     Message{SenderID: "a", RecipientID: "b", Body: "hi", CreatedAt: now},
			wantErr: false,
		},
		{
			name: "valid media-only message",
			msg: Message{
				SenderID: "a", RecipientID: "b", CreatedAt: now,
				Media: &MediaRef{URL: "file:///p.jpg", MIME: "image/jpeg", Kind: MediaKindImage},
			},
			wantErr: false,
		},
		{
			name:    "missing body and media",
			msg:     Message{SenderID: "a", RecipientID: "b", CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "sender equals recipient",
			msg:     Message{SenderID: "a", RecipientID: "a", Body: "hi", CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "missing created at",
			msg:     Message{SenderID: "a", RecipientID: "b", Body: "hi"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
