// Package readstate clears unread counters. The local counter zeroes
// synchronously so the UI settles at once; the durable update runs in the
// background and its failure is only logged, because the next full
// reconciliation converges the stored truth either way.
package readstate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/backend"
	"github.com/placelet/convo/internal/logging"
)

// DefaultMarkTimeout bounds the background durable update of one mark.
const DefaultMarkTimeout = 10 * time.Second

// unreadStore is the slice of the conversation store the manager drives.
type unreadStore interface {
	ZeroUnread(counterpartID string) bool
}

// Manager marks conversations read for one viewer.
type Manager struct {
	viewerID      string
	store         unreadStore
	messages      backend.MessageStore
	notifications backend.NotificationStore
	logger        zerolog.Logger
	timeout       time.Duration

	wg sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithMarkTimeout bounds the background durable update. Zero keeps the
// default.
func WithMarkTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewManager creates a read-state manager. notifications may be nil when
// the platform has no notification feed.
func NewManager(viewerID string, store unreadStore, messages backend.MessageStore, notifications backend.NotificationStore, opts ...Option) *Manager {
	m := &Manager{
		viewerID:      viewerID,
		store:         store,
		messages:      messages,
		notifications: notifications,
		logger:        logging.Component("readstate").With().Str("viewer_id", viewerID).Logger(),
		timeout:       DefaultMarkTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MarkRead zeroes the conversation's unread counter and issues the
// durable update in the background, scoped to messages from the
// counterpart to the viewer that are still unread. The durable update
// always runs, even when the local counter was already zero: the local
// view may lag the stored truth.
func (m *Manager) MarkRead(ctx context.Context, counterpartID string) {
	if counterpartID == "" {
		return
	}

	m.store.ZeroUnread(counterpartID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		// The durable write outlives the caller; unmounting a view must
		// not cancel it.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()

		if err := m.messages.MarkRead(dctx, counterpartID, m.viewerID); err != nil {
			m.logger.Warn().Err(err).
				Str("counterpart_id", counterpartID).
				Msg("durable read mark failed, reconciliation will converge")
		}
		if m.notifications == nil {
			return
		}
		if err := m.notifications.MarkNotificationsRead(dctx, counterpartID, m.viewerID); err != nil {
			m.logger.Warn().Err(err).
				Str("counterpart_id", counterpartID).
				Msg("notification read mark failed")
		}
	}()
}

// Wait blocks until every background durable update has settled.
func (m *Manager) Wait() {
	m.wg.Wait()
}
