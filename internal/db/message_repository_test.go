package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/models"
)

func TestMessageRepository_InsertAssignsIdentity(t *testing.T) {
	database := newTestDB(t)
	repo := NewMessageRepository(database)
	ctx := context.Background()

	stored, err := repo.Insert(ctx, models.Message{
		ClientID:    "client-1",
		SenderID:    "user-buyer-1",
		RecipientID: "user-seller-1",
		Body:        "is this still available?",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if stored.ID == "" {
		t.Fatal("expected durable ID to be assigned")
	}
	if stored.DeliveredAt == nil {
		t.Fatal("expected DeliveredAt to be stamped")
	}
	if stored.State != models.MessageStateSent {
		t.Fatalf("expected sent state, got %s", stored.State)
	}
	if stored.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped")
	}
}

func TestMessageRepository_InsertIdempotentOnClientID(t *testing.T) {
	database := newTestDB(t)

	var notified int
	repo := NewMessageRepository(database, WithNotifier(func(backend.Notification) {
		notified++
	}))
	ctx := context.Background()

	msg := models.Message{
		ClientID:    "client-retry",
		SenderID:    "user-buyer-1",
		RecipientID: "user-seller-1",
		Body:        "hello",
	}

	first, err := repo.Insert(ctx, msg)
	if err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}

	second, err := repo.Insert(ctx, msg)
	if err != nil {
		t.Fatalf("retry Insert failed: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("retry returned different row: %s vs %s", second.ID, first.ID)
	}

	all, err := repo.Query(ctx, "user-buyer-1")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(all))
	}

	if notified != 1 {
		t.Fatalf("expected 1 notification, got %d", notified)
	}
}

func TestMessageRepository_InsertWithoutClientID(t *testing.T) {
	database := newTestDB(t)
	repo := NewMessageRepository(database)
	ctx := context.Background()

	msg := models.Message{
		SenderID:    "user-seller-1",
		RecipientID: "user-buyer-1",
		Body:        "yes, still here",
	}

	if _, err := repo.Insert(ctx, msg); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	if _, err := repo.Insert(ctx, msg); err != nil {
		t.Fatalf("second Insert failed: %v", err)
	}

	all, err := repo.Query(ctx, "user-buyer-1")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows without client correlation, got %d", len(all))
	}
}

func TestMessageRepository_InsertRejectsInvalid(t *testing.T) {
	database := newTestDB(t)
	repo := NewMessageRepository(database)
	ctx := context.Background()

	_, err := repo.Insert(ctx, models.Message{
		SenderID:    "user-buyer-1",
		RecipientID: "",
		Body:        "nobody home",
	})
	if err == nil {
		t.Fatal("expected validation error for missing recipient")
	}
}

func TestMessageRepository_QueryFiltersByParticipant(t *testing.T) {
	database := newTestDB(t)
	repo := NewMessageRepository(database)
	ctx := context.Background()

	seed := []models.Message{
		{SenderID: "user-a", RecipientID: "user-b", Body: "a to b"},
		{SenderID: "user-b", RecipientID: "user-a", Body: "b to a"},
		{SenderID: "user-c", RecipientID: "user-d", Body: "unrelated"},
	}
	for _, msg := range seed {
		if _, err := repo.Insert(ctx, msg); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := repo.Query(ctx, "user-a")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages for user-a, got %d", len(got))
	}
	for _, msg := range got {
		if msg.SenderID != "user-a" && msg.RecipientID != "user-a" {
			t.Fatalf("query leaked foreign message: %+v", msg)
		}
	}
}

func TestMessageRepository_QueryOrdersNewestFirst(t *testing.T) {
	database := newTestDB(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMessageRepository(database)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		msg := models.Message{
			SenderID:    "user-a",
			RecipientID: "user-b",
			Body:        fmt.Sprintf("message %d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := repo.Insert(ctx, msg); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := repo.Query(ctx, "user-a")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].Body != "message 2" || got[2].Body != "message 0" {
		t.Fatalf("unexpected order: %q, %q, %q", got[0].Body, got[1].Body, got[2].Body)
	}
}

func TestMessageRepository_QueryBreaksTiesByID(t *testing.T) {
	database := newTestDB(t)

	counter := 0
	repo := NewMessageRepository(database,
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("%04d", counter)
		}),
	)
	ctx := context.Background()

	stamp := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		msg := models.Message{
			SenderID:    "user-a",
			RecipientID: "user-b",
			Body:        fmt.Sprintf("tied %d", i),
			CreatedAt:   stamp,
		}
		if _, err := repo.Insert(ctx, msg); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := repo.Query(ctx, "user-a")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].ID >= got[i].ID {
			t.Fatalf("tie order not ascending by id: %s then %s", got[i-1].ID, got[i].ID)
		}
	}
}

func TestMessageRepository_MediaRoundTrip(t *testing.T) {
	database := newTestDB(t)
	repo := NewMessageRepository(database)
	ctx := context.Background()

	msg := models.Message{
		SenderID:    "user-a",
		RecipientID: "user-b",
		Media: &models.MediaRef{
			URL:  "media://photos/abc.jpg",
			MIME: "image/jpeg",
			Kind: models.MediaKindImage,
		},
	}
	if _, err := repo.Insert(ctx, msg); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.Query(ctx, "user-b")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	media := got[0].Media
	if media == nil {
		t.Fatal("expected media to round-trip")
	}
	if media.URL != "media://photos/abc.jpg" || media.MIME != "image/jpeg" {
		t.Fatalf("unexpected media: %+v", media)
	}
	if media.Kind != models.MediaKindImage {
		t.Fatalf("expected image kind, got %s", media.Kind)
	}
}

func TestMessageRepository_MarkRead(t *testing.T) {
	database := newTestDB(t)
	repo := NewMessageRepository(database)
	ctx := context.Background()

	// Two inbound, one outbound.
	inbound := models.Message{SenderID: "user-seller-1", RecipientID: "user-buyer-1", Body: "in"}
	if _, err := repo.Insert(ctx, inbound); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := repo.Insert(ctx, inbound); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := repo.Insert(ctx, models.Message{SenderID: "user-buyer-1", RecipientID: "user-seller-1", Body: "out"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.MarkRead(ctx, "user-seller-1", "user-buyer-1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	got, err := repo.Query(ctx, "user-buyer-1")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for _, msg := range got {
		if msg.RecipientID == "user-buyer-1" && msg.ReadAt == nil {
			t.Fatalf("inbound message %s still unread", msg.ID)
		}
		if msg.SenderID == "user-buyer-1" && msg.ReadAt != nil {
			t.Fatalf("outbound message %s should not be marked", msg.ID)
		}
	}
}

func TestMessageRepository_MarkReadPreservesOriginalStamp(t *testing.T) {
	database := newTestDB(t)

	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMessageRepository(database, WithNow(func() time.Time { return current }))
	ctx := context.Background()

	if _, err := repo.Insert(ctx, models.Message{SenderID: "user-a", RecipientID: "user-b", Body: "hi"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.MarkRead(ctx, "user-a", "user-b"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	firstStamp := queryReadAt(t, repo, "user-b")

	// A later mark must not move the stamp of already-read rows.
	current = current.Add(time.Hour)
	if err := repo.MarkRead(ctx, "user-a", "user-b"); err != nil {
		t.Fatalf("second MarkRead failed: %v", err)
	}

	secondStamp := queryReadAt(t, repo, "user-b")
	if !secondStamp.Equal(firstStamp) {
		t.Fatalf("read stamp moved: %v -> %v", firstStamp, secondStamp)
	}
}

func TestMessageRepository_NotifierPayload(t *testing.T) {
	database := newTestDB(t)

	var got backend.Notification
	repo := NewMessageRepository(database, WithNotifier(func(n backend.Notification) {
		got = n
	}))
	ctx := context.Background()

	stored, err := repo.Insert(ctx, models.Message{
		ClientID:    "client-42",
		SenderID:    "user-a",
		RecipientID: "user-b",
		Body:        "ping",
		Media:       &models.MediaRef{URL: "media://x.jpg", MIME: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if got.MessageID != stored.ID {
		t.Fatalf("notification message id = %s, want %s", got.MessageID, stored.ID)
	}
	if got.ClientID != "client-42" {
		t.Fatalf("notification client id = %s, want client-42", got.ClientID)
	}
	if got.SenderID != "user-a" || got.RecipientID != "user-b" {
		t.Fatalf("unexpected participants: %s -> %s", got.SenderID, got.RecipientID)
	}
	if got.MediaURL != "media://x.jpg" || got.MediaMIME != "image/jpeg" {
		t.Fatalf("unexpected media: %s %s", got.MediaURL, got.MediaMIME)
	}
	if got.DeliveredAt == nil {
		t.Fatal("notification should carry the delivery stamp")
	}
}

func queryReadAt(t *testing.T, repo *MessageRepository, viewerID string) time.Time {
	t.Helper()
	got, err := repo.Query(context.Background(), viewerID)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) == 0 || got[0].ReadAt == nil {
		t.Fatalf("expected a read message for %s", viewerID)
	}
	return *got[0].ReadAt
}

func TestNotificationFor_NoMedia(t *testing.T) {
	n := notificationFor(models.Message{
		ID:          "m1",
		SenderID:    "user-a",
		RecipientID: "user-b",
		Body:        "plain",
	})
	if n.MediaURL != "" || n.MediaMIME != "" {
		t.Fatalf("expected empty media fields, got %s %s", n.MediaURL, n.MediaMIME)
	}
}
