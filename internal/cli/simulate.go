package cli

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/models"
)

// autoReplyDelay is long enough to watch the pending marker resolve
// before the counterpart answers.
const autoReplyDelay = 1200 * time.Millisecond

var cannedReplies = []string{
	"Yes, it's still available!",
	"I could do pickup tomorrow after 17:00.",
	"Sure, I'll send a few more photos tonight.",
	"Sounds good, see you then.",
	"Can you do 50 less? It has a small scratch.",
}

// autoReplyStore wraps the message platform for demo mode: every message
// the viewer sends earns a canned counterpart reply a moment later. The
// reply is written through the wrapped store, so its notifier publishes
// the push notification and the whole listener path runs in one process.
type autoReplyStore struct {
	inner    backend.MessageStore
	viewerID string
	delay    time.Duration
	logger   zerolog.Logger

	mu  sync.Mutex
	seq int
}

func newAutoReplyStore(inner backend.MessageStore, viewerID string) *autoReplyStore {
	return &autoReplyStore{
		inner:    inner,
		viewerID: viewerID,
		delay:    autoReplyDelay,
		logger:   logging.Component("simulate"),
	}
}

func (s *autoReplyStore) Query(ctx context.Context, viewerID string) ([]models.Message, error) {
	return s.inner.Query(ctx, viewerID)
}

func (s *autoReplyStore) MarkRead(ctx context.Context, senderID, recipientID string) error {
	return s.inner.MarkRead(ctx, senderID, recipientID)
}

// Insert passes the write through and, when it was the viewer sending,
// schedules the counterpart's reply. Replies go straight to the inner
// store so they never trigger further replies.
func (s *autoReplyStore) Insert(ctx context.Context, msg models.Message) (models.Message, error) {
	stored, err := s.inner.Insert(ctx, msg)
	if err != nil || stored.SenderID != s.viewerID {
		return stored, err
	}
	if stored.RecipientID == models.SupportCounterpartID {
		return stored, nil
	}

	reply := models.Message{
		SenderID:    stored.RecipientID,
		RecipientID: stored.SenderID,
		Body:        s.nextReply(),
	}
	time.AfterFunc(s.delay, func() {
		if _, err := s.inner.Insert(context.Background(), reply); err != nil {
			s.logger.Warn().Err(err).Str("counterpart_id", reply.SenderID).Msg("auto-reply failed")
		}
	})
	return stored, nil
}

func (s *autoReplyStore) nextReply() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	body := cannedReplies[s.seq%len(cannedReplies)]
	s.seq++
	return body
}
