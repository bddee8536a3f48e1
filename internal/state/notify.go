package state

import "sync"

// EventKind classifies a store change notification.
type EventKind string

const (
	// EventConversations signals that the conversation set changed.
	EventConversations EventKind = "conversations"

	// EventThread signals that one counterpart's message list changed.
	EventThread EventKind = "thread"

	// EventProfile signals that a conversation's display identity was
	// corrected in place.
	EventProfile EventKind = "profile"
)

// Event describes one store change. CounterpartID is empty for whole-set
// replacements.
type Event struct {
	Kind          EventKind
	CounterpartID string
}

// Watch registers a change handler and returns an idempotent cancel
// function. Handlers run synchronously on the mutating goroutine, outside
// any store lock; they may read store snapshots but should hand heavy
// work off.
func (s *Store) Watch(fn func(Event)) (cancel func()) {
	s.wmu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.wmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.wmu.Lock()
			delete(s.watchers, id)
			s.wmu.Unlock()
		})
	}
}

// emit fans an event out to watchers. Handlers are collected under the
// read lock and invoked outside it so a handler may register, cancel, or
// read snapshots without deadlocking.
func (s *Store) emit(ev Event) {
	s.wmu.RLock()
	fns := make([]func(Event), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.wmu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
