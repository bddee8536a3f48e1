package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/aggregate"
	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/models"
)

// Poller errors.
var (
	ErrPollerAlreadyRunning = errors.New("poller already running")
	ErrPollerNotRunning     = errors.New("poller not running")
)

// WakeReason identifies what triggered a reconciliation cycle.
type WakeReason string

const (
	WakeInitial  WakeReason = "initial"
	WakeInterval WakeReason = "interval"
	WakeVisible  WakeReason = "visible"
	WakeFocus    WakeReason = "focus"
	WakeOnline   WakeReason = "online"
	WakePush     WakeReason = "push"
	WakeManual   WakeReason = "manual"
)

// PollerConfig contains configuration for the reconciliation poller.
type PollerConfig struct {
	// Interval is how often to reconcile while a view is mounted.
	// Default: 5s
	Interval time.Duration
}

// DefaultPollerConfig returns sensible defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{Interval: 5 * time.Second}
}

// profileResolver is the slice of the profile resolver the poller needs.
type profileResolver interface {
	Cached(counterpartID string) bool
	Resolve(ctx context.Context, counterpartID string) (models.ProfileSummary, error)
	Summary(counterpartID string) models.ProfileSummary
}

// Poller periodically re-fetches the viewer's full message collection and
// reconciles the store with it. It also wakes for visibility, focus, and
// connectivity triggers, and for the short-delayed correction after a
// push. Failures on this path are background noise: logged at debug and
// retried on the next trigger, never surfaced.
type Poller struct {
	config   PollerConfig
	store    *Store
	messages backend.MessageStore
	profiles profileResolver
	logger   zerolog.Logger

	mu         sync.RWMutex
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	wake       chan WakeReason
	lastPollAt time.Time
}

// NewPoller creates a reconciliation Poller. profiles may be nil, in
// which case counterparts render as placeholders.
func NewPoller(config PollerConfig, store *Store, messages backend.MessageStore, profiles profileResolver) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollerConfig().Interval
	}

	return &Poller{
		config:   config,
		store:    store,
		messages: messages,
		profiles: profiles,
		logger:   logging.Component("state-poller"),
		wake:     make(chan WakeReason, 1),
	}
}

// Start begins the reconciliation loop with an immediate first cycle.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPollerAlreadyRunning
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.logger.Info().
		Dur("interval", p.config.Interval).
		Str("viewer_id", p.store.ViewerID()).
		Msg("reconciliation poller starting")

	p.wg.Add(1)
	go p.runLoop()

	return nil
}

// Stop halts the reconciliation loop and waits for it to exit.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}

	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info().Msg("reconciliation poller stopped")
	return nil
}

// IsRunning returns true if the poller is running.
func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Wake requests an immediate off-interval reconciliation. Wakes coalesce:
// while one is pending, further wakes are dropped.
func (p *Poller) Wake(reason WakeReason) error {
	p.mu.RLock()
	running := p.running
	p.mu.RUnlock()

	if !running {
		return ErrPollerNotRunning
	}

	select {
	case p.wake <- reason:
	default:
	}
	return nil
}

// LastPollAt returns when the last successful reconciliation finished.
func (p *Poller) LastPollAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPollAt
}

// runLoop is the main reconciliation loop.
func (p *Poller) runLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.pollOnce(WakeInitial)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(WakeInterval)
		case reason := <-p.wake:
			p.pollOnce(reason)
		}
	}
}

// pollOnce performs one reconciliation cycle: fetch everything, resolve
// unknown counterparts, aggregate, and replace the conversation set only
// if its content changed.
func (p *Poller) pollOnce(reason WakeReason) {
	ctx := p.ctx

	msgs, err := p.messages.Query(ctx, p.store.ViewerID())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Debug().Err(err).Str("reason", string(reason)).Msg("reconciliation fetch failed")
		return
	}

	p.resolveNewCounterparts(ctx, msgs)

	var profiles aggregate.ProfileFunc
	if p.profiles != nil {
		profiles = p.profiles.Summary
	}
	convs := aggregate.Conversations(p.store.ViewerID(), msgs, profiles)
	changed := p.store.ReplaceIfChanged(convs)
	p.store.Merge(msgs)

	p.mu.Lock()
	p.lastPollAt = time.Now()
	p.mu.Unlock()

	p.logger.Debug().
		Str("reason", string(reason)).
		Int("messages", len(msgs)).
		Bool("changed", changed).
		Msg("reconciled")
}

// resolveNewCounterparts warms the profile cache for counterparts seen in
// the fetched messages. Lookup failures are swallowed; the affected
// conversations keep their placeholder identity.
func (p *Poller) resolveNewCounterparts(ctx context.Context, msgs []models.Message) {
	if p.profiles == nil {
		return
	}

	seen := make(map[string]struct{})
	for _, msg := range msgs {
		counterpart := msg.CounterpartFor(p.store.ViewerID())
		if counterpart == "" || counterpart == models.SupportCounterpartID {
			continue
		}
		if _, dup := seen[counterpart]; dup {
			continue
		}
		seen[counterpart] = struct{}{}

		if p.profiles.Cached(counterpart) {
			continue
		}
		if _, err := p.profiles.Resolve(ctx, counterpart); err != nil {
			p.logger.Debug().Err(err).Str("counterpart_id", counterpart).Msg("profile resolution failed")
		}
	}
}
