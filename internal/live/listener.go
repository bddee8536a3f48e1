// Package live consumes push notifications of newly durable messages and
// merges them into the conversation state one at a time. Push delivery is
// at-least-once and unordered relative to polling, so everything here
// must hold under duplicates and stale payloads.
package live

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/models"
)

// Listener errors.
var (
	ErrListenerAlreadyRunning = errors.New("listener already running")
	ErrListenerNotRunning     = errors.New("listener not running")
)

// mergeStore is the slice of the conversation store the listener feeds.
type mergeStore interface {
	Merge([]models.Message)
	UpsertFromMessage(models.Message)
}

// Listener subscribes to the viewer's push topic and applies each
// notification as an incremental merge. After every notification it asks
// for a full reconciliation, which corrects any fields the payload could
// not carry faithfully, unread counts above all.
type Listener struct {
	viewerID  string
	store     mergeStore
	channel   backend.PushChannel
	reconcile func()
	logger    zerolog.Logger
	now       func() time.Time

	mu          sync.RWMutex
	running     bool
	unsubscribe func()
}

// Option configures a Listener.
type Option func(*Listener)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(l *Listener) {
		l.now = now
	}
}

// NewListener creates a push listener for one viewer. reconcile is invoked
// after every applied notification and may be nil.
func NewListener(viewerID string, store mergeStore, channel backend.PushChannel, reconcile func(), opts ...Option) *Listener {
	l := &Listener{
		viewerID:  viewerID,
		store:     store,
		channel:   channel,
		reconcile: reconcile,
		logger:    logging.Component("live-listener").With().Str("viewer_id", viewerID).Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start subscribes to the viewer's topic.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return ErrListenerAlreadyRunning
	}

	unsubscribe, err := l.channel.Subscribe(ctx, backend.Topic(l.viewerID), l.handle)
	if err != nil {
		return err
	}
	l.unsubscribe = unsubscribe
	l.running = true

	l.logger.Info().Str("topic", backend.Topic(l.viewerID)).Msg("push listener started")
	return nil
}

// Stop unsubscribes. Notifications already in flight may still be
// delivered by the channel; they remain safe to apply.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return ErrListenerNotRunning
	}

	l.unsubscribe()
	l.unsubscribe = nil
	l.running = false

	l.logger.Info().Msg("push listener stopped")
	return nil
}

// IsRunning returns true if the listener is subscribed.
func (l *Listener) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

// handle applies one notification. Duplicates and stale payloads fall out
// as no-ops in the store's merge rules.
func (l *Listener) handle(n backend.Notification) {
	if n.SenderID != l.viewerID && n.RecipientID != l.viewerID {
		l.logger.Debug().
			Str("sender_id", n.SenderID).
			Str("recipient_id", n.RecipientID).
			Msg("dropping notification for another viewer")
		return
	}

	msg := n.Message(syntheticID(n), l.now().UTC())
	l.store.Merge([]models.Message{msg})
	l.store.UpsertFromMessage(msg)

	l.logger.Debug().
		Str("merge_key", msg.MergeKey()).
		Str("sender_id", msg.SenderID).
		Str("body", logging.Snippet(msg.Body)).
		Msg("notification merged")

	if l.reconcile != nil {
		l.reconcile()
	}
}

// syntheticID derives a stable temporary identity for payloads that carry
// none. Hashing the payload makes redelivery of an identical notification
// land on the same key, so it merges as a duplicate instead of a second
// message.
func syntheticID(n backend.Notification) string {
	fields := []string{
		n.SenderID,
		n.RecipientID,
		n.Body,
		n.MediaURL,
		n.MediaMIME,
	}
	if !n.CreatedAt.IsZero() {
		fields = append(fields, n.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	sum := blake2b.Sum256([]byte(strings.Join(fields, "\x1f")))
	return "push-" + hex.EncodeToString(sum[:8])
}
