// Package state holds the canonical conversation state for one viewer and
// the reconciliation poller that keeps it converged with the platform.
//
// The Store is the single owner of the Conversation and Message
// collections. Every other component proposes merges through its
// operations; nothing mutates the collections directly. The merge logic
// itself lives in pure functions of (current, incoming) so the arbitrary
// interleaving of the send pipeline, push listener, and poller cannot
// produce different converged results.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/placelet/convo/internal/aggregate"
	"github.com/placelet/convo/internal/logging"
	"github.com/placelet/convo/internal/models"
)

// Store is the authoritative in-memory conversation state for a viewer.
type Store struct {
	viewerID string
	logger   zerolog.Logger

	mu            sync.RWMutex
	conversations []models.Conversation
	threads       map[string][]models.Message

	// counted remembers which merge keys already contributed their unread
	// decision, so at-least-once redelivery cannot double-increment.
	counted map[string]struct{}

	wmu      sync.RWMutex
	watchers map[int]func(Event)
	nextID   int
}

// NewStore creates an empty store scoped to a viewer.
func NewStore(viewerID string) *Store {
	return &Store{
		viewerID: viewerID,
		logger:   logging.Component("state-store"),
		threads:  make(map[string][]models.Message),
		counted:  make(map[string]struct{}),
		watchers: make(map[int]func(Event)),
	}
}

// ViewerID returns the viewer this store belongs to.
func (s *Store) ViewerID() string {
	return s.viewerID
}

// Conversations returns a snapshot of the conversation summaries, sorted
// by recency.
func (s *Store) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Conversation(nil), s.conversations...)
}

// Thread returns a snapshot of the message list for a counterpart, in
// (CreatedAt, ID) ascending order with provisional entries at their
// insertion position.
func (s *Store) Thread(counterpartID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.threads[counterpartID]...)
}

// UnreadTotal returns the sum of unread counters across conversations.
func (s *Store) UnreadTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount
	}
	return total
}

// Merge applies durable messages to the thread lists. It is idempotent:
// re-applying a message never changes state twice. A message carrying a
// known ClientID replaces the matching provisional entry in place; a
// known ID updates in place; anything else inserts in order. Merge never
// removes entries, so a full fetch landing while a send is still pending
// cannot drop the provisional message.
func (s *Store) Merge(incoming []models.Message) {
	if len(incoming) == 0 {
		return
	}

	touched := make(map[string]struct{})
	s.mu.Lock()
	for _, msg := range incoming {
		counterpart := msg.CounterpartFor(s.viewerID)
		if counterpart == "" {
			continue
		}
		next, changed := mergeThread(s.threads[counterpart], msg)
		if changed {
			s.threads[counterpart] = next
			touched[counterpart] = struct{}{}
		}
	}
	s.mu.Unlock()

	for counterpart := range touched {
		s.emit(Event{Kind: EventThread, CounterpartID: counterpart})
	}
}

// ReplaceIfChanged swaps the conversation set for a freshly aggregated
// one. When the content signatures match the store is left untouched,
// object references included, so watchers see no churn. Reports whether
// a swap happened.
func (s *Store) ReplaceIfChanged(full []models.Conversation) bool {
	s.mu.Lock()
	if Signature(full) == Signature(s.conversations) {
		s.mu.Unlock()
		return false
	}
	s.conversations = append([]models.Conversation(nil), full...)
	s.mu.Unlock()

	s.logger.Debug().Int("conversations", len(full)).Msg("conversation set replaced")
	s.emit(Event{Kind: EventConversations})
	return true
}

// UpsertFromMessage is the low-latency incremental path for a single
// message: it locates or creates the counterpart's conversation, and only
// overwrites the preview and timestamp when the message is not older than
// the conversation's current timestamp. The unread counter increments
// only for an unread message addressed to the viewer that has not been
// counted before.
func (s *Store) UpsertFromMessage(msg models.Message) {
	counterpart := msg.CounterpartFor(s.viewerID)
	if counterpart == "" {
		return
	}

	s.mu.Lock()
	countUnread := false
	if msg.RecipientID == s.viewerID {
		key := msg.MergeKey()
		if _, seen := s.counted[key]; !seen {
			s.counted[key] = struct{}{}
			countUnread = msg.ReadAt == nil
		}
	}
	next, changed := upsertConversation(s.conversations, msg, s.viewerID, counterpart, countUnread)
	if changed {
		s.conversations = next
	}
	s.mu.Unlock()

	if changed {
		s.emit(Event{Kind: EventConversations, CounterpartID: counterpart})
	}
}

// AppendProvisional places a locally composed message at the tail of the
// active thread, ahead of any durable confirmation.
func (s *Store) AppendProvisional(msg models.Message) {
	counterpart := msg.CounterpartFor(s.viewerID)
	if counterpart == "" || msg.ClientID == "" {
		return
	}

	s.mu.Lock()
	cur := s.threads[counterpart]
	next := make([]models.Message, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, msg)
	s.threads[counterpart] = next
	s.mu.Unlock()

	s.emit(Event{Kind: EventThread, CounterpartID: counterpart})
}

// ResolveProvisional atomically replaces the provisional entry whose
// ClientID matches with the durable record, preserving its position in
// the thread. Reports whether an entry was found.
func (s *Store) ResolveProvisional(clientID string, durable models.Message) bool {
	if clientID == "" {
		return false
	}
	counterpart := durable.CounterpartFor(s.viewerID)

	s.mu.Lock()
	cur := s.threads[counterpart]
	idx := indexByClientID(cur, clientID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	if messageEqual(cur[idx], durable) {
		s.mu.Unlock()
		return true
	}
	next := append([]models.Message(nil), cur...)
	next[idx] = durable
	s.threads[counterpart] = next
	s.mu.Unlock()

	s.emit(Event{Kind: EventThread, CounterpartID: counterpart})
	return true
}

// FailProvisional marks the provisional entry with the given ClientID as
// failed. The entry stays in the thread; re-sending is an explicit user
// action.
func (s *Store) FailProvisional(counterpartID, clientID string) bool {
	if clientID == "" {
		return false
	}

	s.mu.Lock()
	cur := s.threads[counterpartID]
	idx := indexByClientID(cur, clientID)
	if idx < 0 || cur[idx].State == models.MessageStateFailed {
		s.mu.Unlock()
		return false
	}
	next := append([]models.Message(nil), cur...)
	next[idx].State = models.MessageStateFailed
	s.threads[counterpartID] = next
	s.mu.Unlock()

	s.emit(Event{Kind: EventThread, CounterpartID: counterpartID})
	return true
}

// ZeroUnread optimistically clears a conversation's unread counter.
// Reports whether the counter changed.
func (s *Store) ZeroUnread(counterpartID string) bool {
	s.mu.Lock()
	idx := indexByCounterpart(s.conversations, counterpartID)
	if idx < 0 || s.conversations[idx].UnreadCount == 0 {
		s.mu.Unlock()
		return false
	}
	next := append([]models.Conversation(nil), s.conversations...)
	next[idx].UnreadCount = 0
	s.conversations = next
	s.mu.Unlock()

	s.emit(Event{Kind: EventConversations, CounterpartID: counterpartID})
	return true
}

// ApplyProfile corrects the display identity of an already-rendered
// conversation in place, typically after a placeholder resolves.
func (s *Store) ApplyProfile(p models.ProfileSummary) {
	s.mu.Lock()
	idx := indexByCounterpart(s.conversations, p.CounterpartID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	conv := s.conversations[idx]
	if conv.DisplayName == p.DisplayName && conv.AvatarRef == p.AvatarRef {
		s.mu.Unlock()
		return
	}
	next := append([]models.Conversation(nil), s.conversations...)
	next[idx].DisplayName = p.DisplayName
	next[idx].AvatarRef = p.AvatarRef
	s.conversations = next
	s.mu.Unlock()

	s.emit(Event{Kind: EventProfile, CounterpartID: p.CounterpartID})
}

// mergeThread merges one message into a thread list without mutating the
// input. Reports whether the result differs.
func mergeThread(cur []models.Message, msg models.Message) ([]models.Message, bool) {
	if msg.ClientID != "" {
		if idx := indexByClientID(cur, msg.ClientID); idx >= 0 {
			return replaceAt(cur, idx, combine(cur[idx], msg))
		}
	}
	if msg.ID != "" {
		if idx := indexByID(cur, msg.ID); idx >= 0 {
			return replaceAt(cur, idx, combine(cur[idx], msg))
		}
	}

	at := len(cur)
	for i := range cur {
		if threadBefore(msg, cur[i]) {
			at = i
			break
		}
	}
	next := make([]models.Message, 0, len(cur)+1)
	next = append(next, cur[:at]...)
	next = append(next, msg)
	next = append(next, cur[at:]...)
	return next, true
}

// upsertConversation folds one message into the conversation set without
// mutating the input. Reports whether the result differs.
func upsertConversation(cur []models.Conversation, msg models.Message, viewerID, counterpart string, countUnread bool) ([]models.Conversation, bool) {
	idx := indexByCounterpart(cur, counterpart)
	if idx < 0 {
		profile := models.PlaceholderProfile(counterpart)
		if counterpart == models.SupportCounterpartID {
			profile = models.SupportProfile()
		}
		conv := models.Conversation{
			CounterpartID: counterpart,
			DisplayName:   profile.DisplayName,
			AvatarRef:     profile.AvatarRef,
			PreviewText:   aggregate.Preview(msg, viewerID, profile.DisplayName),
			LastMessageAt: msg.CreatedAt,
		}
		if countUnread {
			conv.UnreadCount = 1
		}
		next := append([]models.Conversation(nil), cur...)
		next = append(next, conv)
		sortConversations(next)
		return next, true
	}

	conv := cur[idx]
	changed := false
	if !msg.CreatedAt.Before(conv.LastMessageAt) {
		preview := aggregate.Preview(msg, viewerID, conv.DisplayName)
		if conv.PreviewText != preview {
			conv.PreviewText = preview
			changed = true
		}
		if !conv.LastMessageAt.Equal(msg.CreatedAt) {
			conv.LastMessageAt = msg.CreatedAt
			changed = true
		}
	}
	if countUnread {
		conv.UnreadCount++
		changed = true
	}
	if !changed {
		return cur, false
	}

	next := append([]models.Conversation(nil), cur...)
	next[idx] = conv
	sortConversations(next)
	return next, true
}

func sortConversations(convs []models.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].LastMessageAt.Equal(convs[j].LastMessageAt) {
			return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
		}
		return convs[i].CounterpartID < convs[j].CounterpartID
	})
}

// threadBefore orders thread entries by (CreatedAt, ID) ascending.
func threadBefore(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func replaceAt(cur []models.Message, idx int, msg models.Message) ([]models.Message, bool) {
	if messageEqual(cur[idx], msg) {
		return cur, false
	}
	next := append([]models.Message(nil), cur...)
	next[idx] = msg
	return next, true
}

// combine layers an incoming record over the entry it matched. Push
// payloads carry only a subset of fields, so gaps keep the existing
// values: identity never blanks out and read/delivered stamps never
// regress from a stale redelivery.
func combine(cur, incoming models.Message) models.Message {
	next := incoming
	if next.ID == "" {
		next.ID = cur.ID
	}
	if next.ClientID == "" {
		next.ClientID = cur.ClientID
	}
	if next.Body == "" {
		next.Body = cur.Body
	}
	if next.Media == nil {
		next.Media = cur.Media
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = cur.CreatedAt
	}
	if next.DeliveredAt == nil {
		next.DeliveredAt = cur.DeliveredAt
	}
	if next.ReadAt == nil {
		next.ReadAt = cur.ReadAt
	}
	if next.State == "" {
		next.State = cur.State
	}
	return next
}

func indexByClientID(msgs []models.Message, clientID string) int {
	for i := range msgs {
		if msgs[i].ClientID == clientID {
			return i
		}
	}
	return -1
}

func indexByID(msgs []models.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func indexByCounterpart(convs []models.Conversation, counterpartID string) int {
	for i := range convs {
		if convs[i].CounterpartID == counterpartID {
			return i
		}
	}
	return -1
}

func messageEqual(a, b models.Message) bool {
	return a.ID == b.ID &&
		a.ClientID == b.ClientID &&
		a.SenderID == b.SenderID &&
		a.RecipientID == b.RecipientID &&
		a.Body == b.Body &&
		a.State == b.State &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		timePtrEqual(a.DeliveredAt, b.DeliveredAt) &&
		timePtrEqual(a.ReadAt, b.ReadAt) &&
		mediaEqual(a.Media, b.Media)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func mediaEqual(a, b *models.MediaRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
