package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/live"
	"github.com/placelet/convo/internal/models"
	"github.com/placelet/convo/internal/outbox"
	"github.com/placelet/convo/internal/profile"
	"github.com/placelet/convo/internal/readstate"
	"github.com/placelet/convo/internal/state"
)

// Session is one mounted conversation view. Methods are safe for
// concurrent use; after Unmount every operation reports ErrSessionClosed.
type Session struct {
	viewerID  string
	cfg       Config
	store     *state.Store
	resolver  *profile.Resolver
	pipeline  *outbox.Pipeline
	reads     *readstate.Manager
	poller    *state.Poller
	listener  *live.Listener
	reconcile *reconciler
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
	feeds  []*eventFeed
}

// ViewerID returns the mounted viewer.
func (s *Session) ViewerID() string {
	return s.viewerID
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Conversations returns the inbox snapshot, most recent activity first.
func (s *Session) Conversations() ([]models.Conversation, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.store.Conversations(), nil
}

// Thread returns the ordered message list for one counterpart.
func (s *Session) Thread(counterpartID string) ([]models.Message, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.store.Thread(counterpartID), nil
}

// UnreadTotal returns the sum of unread counters across conversations.
func (s *Session) UnreadTotal() (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	return s.store.UnreadTotal(), nil
}

// Send runs one optimistic send to completion. The provisional message is
// in the thread before any network work; on failure it stays there marked
// failed, alongside the returned error.
func (s *Session) Send(ctx context.Context, req outbox.Request) (models.Message, error) {
	if s.isClosed() {
		return models.Message{}, ErrSessionClosed
	}
	return s.pipeline.Send(ctx, req)
}

// MarkRead zeroes the counterpart's unread counter immediately and issues
// the durable read mark in the background.
func (s *Session) MarkRead(ctx context.Context, counterpartID string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.reads.MarkRead(ctx, counterpartID)
	return nil
}

// Resolve returns the counterpart's display identity, resolving against
// the directory on a cache miss.
func (s *Session) Resolve(ctx context.Context, counterpartID string) (models.ProfileSummary, error) {
	if s.isClosed() {
		return models.ProfileSummary{}, ErrSessionClosed
	}
	if s.resolver == nil {
		return models.PlaceholderProfile(counterpartID), nil
	}
	return s.resolver.Resolve(ctx, counterpartID)
}

// Wake requests an immediate reconciliation cycle. The UI calls it when
// the view becomes visible, regains focus, or connectivity returns.
func (s *Session) Wake(reason state.WakeReason) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.poller.Wake(reason)
}

// Watch registers a synchronous store change handler and returns its
// cancel function. Handlers run on the mutating goroutine and must not
// block; consumers that poll should use Events instead.
func (s *Session) Watch(fn func(state.Event)) (func(), error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.store.Watch(fn), nil
}

// Events returns a buffered change feed and its stop function. The
// channel closes when the subscriber stops it or the session unmounts.
func (s *Session) Events() (<-chan state.Event, func(), error) {
	feed := newEventFeed(s.cfg.WatchBuffer)
	feed.cancel = s.store.Watch(feed.push)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		feed.stop()
		return nil, nil, ErrSessionClosed
	}
	s.feeds = append(s.feeds, feed)
	s.mu.Unlock()

	return feed.ch, feed.stop, nil
}

// Unmount tears the session down: the poller stops, the push subscription
// ends, pending push-reconcile timers die, and event feeds close.
// In-flight sends and read marks are not cancelled; their late store
// writes land behind the closed session as harmless no-ops.
func (s *Session) Unmount() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.closed = true
	feeds := s.feeds
	s.feeds = nil
	s.mu.Unlock()

	s.reconcile.stop()
	if err := s.listener.Stop(); err != nil && !errors.Is(err, live.ErrListenerNotRunning) {
		s.logger.Warn().Err(err).Msg("listener stop failed")
	}
	if err := s.poller.Stop(); err != nil && !errors.Is(err, state.ErrPollerNotRunning) {
		s.logger.Warn().Err(err).Msg("poller stop failed")
	}
	for _, feed := range feeds {
		feed.stop()
	}

	s.logger.Info().Msg("session unmounted")
	return nil
}

// eventFeed bridges synchronous store events into a buffered channel for
// consumers that poll, like a TUI program loop.
type eventFeed struct {
	ch     chan state.Event
	cancel func()

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func newEventFeed(buffer int) *eventFeed {
	if buffer <= 0 {
		buffer = DefaultWatchBuffer
	}
	return &eventFeed{ch: make(chan state.Event, buffer)}
}

// push forwards an event without blocking. Events beyond the buffer drop;
// the consumer repaints from a snapshot on every event anyway.
func (f *eventFeed) push(ev state.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- ev:
	default:
	}
}

func (f *eventFeed) stop() {
	f.once.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
		f.mu.Lock()
		f.closed = true
		close(f.ch)
		f.mu.Unlock()
	})
}

// reconciler schedules the short-delayed full reconciliation that follows
// every push merge. Pushes landing inside the window coalesce into a
// single wake.
type reconciler struct {
	delay  time.Duration
	poller *state.Poller

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func newReconciler(delay time.Duration, poller *state.Poller) *reconciler {
	return &reconciler{delay: delay, poller: poller}
}

func (r *reconciler) trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.delay <= 0 {
		_ = r.poller.Wake(state.WakePush)
		return
	}
	if r.timer == nil {
		r.timer = time.AfterFunc(r.delay, r.fire)
		return
	}
	r.timer.Reset(r.delay)
}

func (r *reconciler) fire() {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	_ = r.poller.Wake(state.WakePush)
}

func (r *reconciler) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
}
