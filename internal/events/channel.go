// Package events provides the in-process push channel used by local
// development and tests. It delivers new-message notifications on
// per-viewer topics and satisfies the backend.PushChannel contract.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/placelet/convo/internal/backend"
)

// Errors for channel operations.
var (
	ErrNilHandler           = errors.New("handler cannot be nil")
	ErrEmptyTopic           = errors.New("topic is required")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Handler is invoked for every notification published on a subscribed
// topic.
type Handler func(backend.Notification)

// Channel is an in-process topic publisher. Real deployments replace it
// with the hosted platform's push transport; the contract is the same:
// at-least-once, unordered delivery.
type Channel struct {
	mu     sync.RWMutex
	topics map[string]map[string]Handler
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{topics: make(map[string]map[string]Handler)}
}

// Publish delivers a notification to every subscriber of the topic.
// Handlers are collected under the read lock and invoked outside it so a
// handler that publishes or unsubscribes cannot deadlock.
func (c *Channel) Publish(topic string, n backend.Notification) {
	c.mu.RLock()
	var handlers []Handler
	for _, h := range c.topics[topic] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(n)
	}
}

// PublishAsync delivers the notification with each handler on its own
// goroutine.
func (c *Channel) PublishAsync(topic string, n backend.Notification) {
	c.mu.RLock()
	for _, h := range c.topics[topic] {
		go h(n)
	}
	c.mu.RUnlock()
}

// Subscribe registers a handler for a topic and returns an idempotent
// unsubscribe function. Implements backend.PushChannel; the context is
// accepted for contract parity and unused by the in-process transport.
func (c *Channel) Subscribe(_ context.Context, topic string, fn func(backend.Notification)) (func(), error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if fn == nil {
		return nil, ErrNilHandler
	}

	id := uuid.New().String()

	c.mu.Lock()
	subs, ok := c.topics[topic]
	if !ok {
		subs = make(map[string]Handler)
		c.topics[topic] = subs
	}
	subs[id] = Handler(fn)
	c.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if subs, ok := c.topics[topic]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(c.topics, topic)
				}
			}
		})
	}
	return unsubscribe, nil
}

// SubscriberCount returns the number of active subscribers on a topic.
func (c *Channel) SubscriberCount(topic string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.topics[topic])
}

// Close removes every subscription.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = make(map[string]map[string]Handler)
}
