// Package engine composes the per-view conversation machinery. One Mount
// call builds the store, profile resolver, send pipeline, read-state
// manager, push listener, and reconciliation poller for a viewer; Unmount
// tears the view down again. Everything in between happens through the
// returned Session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/live"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/media"
	"github.com/placelet/convo/internal/outbox"
	"github.com/placelet/convo/internal/profile"
	"github.com/placelet/convo/internal/readstate"
	"github.com/placelet/convo/internal/state"
)

// ErrSessionClosed is returned by every session operation after Unmount.
var ErrSessionClosed = errors.New("session closed")

// Defaults for Config fields.
const (
	DefaultPollInterval       = 5 * time.Second
	DefaultPushReconcileDelay = 500 * time.Millisecond
	DefaultSendTimeout        = 10 * time.Second
	DefaultWatchBuffer        = 256
)

// Config tunes the per-session machinery.
type Config struct {
	// PollInterval is how often the poller reconciles while a view is
	// mounted.
	PollInterval time.Duration

	// PushReconcileDelay is the pause between a push merge and the full
	// reconciliation that corrects it. Pushes landing inside the window
	// coalesce into one cycle.
	PushReconcileDelay time.Duration

	// SendTimeout bounds the upload plus durable write of one send.
	SendTimeout time.Duration

	// WatchBuffer is the capacity of the channel handed to Events
	// subscribers. A full buffer drops the event; the next
	// reconciliation repaints the view anyway.
	WatchBuffer int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		PollInterval:       DefaultPollInterval,
		PushReconcileDelay: DefaultPushReconcileDelay,
		SendTimeout:        DefaultSendTimeout,
		WatchBuffer:        DefaultWatchBuffer,
	}
}

// Validate checks the tuning for nonsensical values.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.PushReconcileDelay < 0 {
		return fmt.Errorf("push reconcile delay cannot be negative")
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("send timeout must be positive")
	}
	if c.WatchBuffer <= 0 {
		return fmt.Errorf("watch buffer must be positive")
	}
	return nil
}

// Backend bundles the platform contracts one engine serves. Messages and
// Push are required; Profiles, Media, and Notifications may be nil, in
// which case counterparts render as placeholders, sends cannot carry
// attachments, and notification read marks are skipped.
type Backend struct {
	Messages      backend.MessageStore
	Push          backend.PushChannel
	Profiles      backend.ProfileDirectory
	Media         backend.MediaStore
	Notifications backend.NotificationStore
}

func (b Backend) validate() error {
	if b.Messages == nil {
		return fmt.Errorf("backend: message store is required")
	}
	if b.Push == nil {
		return fmt.Errorf("backend: push channel is required")
	}
	return nil
}

// Compressor shrinks attachment payloads before upload.
type Compressor interface {
	Compress(backend.MediaUpload) backend.MediaUpload
}

// Engine mounts conversation sessions over one platform backend. It is
// safe for concurrent use; every Mount builds an independent world.
type Engine struct {
	cfg     Config
	backend Backend
	shrink  Compressor
	logger  zerolog.Logger

	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides correlation key generation, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// WithCompressor replaces the default media compressor.
func WithCompressor(c Compressor) Option {
	return func(e *Engine) {
		e.shrink = c
	}
}

// New creates an Engine over a validated config and backend bundle.
func New(cfg Config, b Backend, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		backend: b,
		shrink:  media.NewCompressor(),
		logger:  logging.Component("engine"),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Mount builds and starts the conversation world for one viewer. The
// listener subscribes before the poller's first hydration cycle, so a
// push racing the initial fetch merges instead of vanishing.
func (e *Engine) Mount(ctx context.Context, viewerID string) (*Session, error) {
	if viewerID == "" {
		return nil, fmt.Errorf("viewer id is required")
	}

	store := state.NewStore(viewerID)

	var resolver *profile.Resolver
	if e.backend.Profiles != nil {
		resolver = profile.NewResolver(profile.NewCache(), e.backend.Profiles, store)
	}

	pipeline := outbox.NewPipeline(viewerID, store, e.backend.Messages, e.backend.Media, e.shrink,
		outbox.WithSendTimeout(e.cfg.SendTimeout),
		outbox.WithNow(e.now),
		outbox.WithIDGenerator(e.newID),
	)

	reads := readstate.NewManager(viewerID, store, e.backend.Messages, e.backend.Notifications)

	pollerConfig := state.PollerConfig{Interval: e.cfg.PollInterval}
	var poller *state.Poller
	if resolver != nil {
		poller = state.NewPoller(pollerConfig, store, e.backend.Messages, resolver)
	} else {
		poller = state.NewPoller(pollerConfig, store, e.backend.Messages, nil)
	}

	reconcile := newReconciler(e.cfg.PushReconcileDelay, poller)
	listener := live.NewListener(viewerID, store, e.backend.Push, reconcile.trigger, live.WithNow(e.now))

	sess := &Session{
		viewerID:  viewerID,
		cfg:       e.cfg,
		store:     store,
		resolver:  resolver,
		pipeline:  pipeline,
		reads:     reads,
		poller:    poller,
		listener:  listener,
		reconcile: reconcile,
		logger:    e.logger.With().Str("viewer_id", viewerID).Logger(),
	}

	if err := listener.Start(ctx); err != nil {
		reconcile.stop()
		return nil, fmt.Errorf("failed to start push listener: %w", err)
	}
	if err := poller.Start(ctx); err != nil {
		_ = listener.Stop()
		reconcile.stop()
		return nil, fmt.Errorf("failed to start poller: %w", err)
	}

	sess.logger.Info().Msg("session mounted")
	return sess, nil
}
