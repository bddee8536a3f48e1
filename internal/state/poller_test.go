package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/placelet/convo/internal/models"
)

// fakeMessages is a backend.MessageStore stub with swappable results.
type fakeMessages struct {
	mu   sync.Mutex
	msgs []models.Message
	err  error
}

func (f *fakeMessages) set(msgs []models.Message, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = msgs
	f.err = err
}

func (f *fakeMessages) Query(_ context.Context, _ string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Message(nil), f.msgs...), nil
}

func (f *fakeMessages) Insert(_ context.Context, msg models.Message) (models.Message, error) {
	return msg, nil
}

func (f *fakeMessages) MarkRead(context.Context, string, string) error { return nil }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPollerStartStopSentinels(t *testing.T) {
	s := NewStore(viewer)
	p := NewPoller(PollerConfig{Interval: time.Hour}, s, &fakeMessages{}, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, ErrPollerAlreadyRunning) {
		t.Fatalf("second Start() error = %v, want ErrPollerAlreadyRunning", err)
	}
	if !p.IsRunning() {
		t.Fatal("poller should be running")
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := p.Stop(); !errors.Is(err, ErrPollerNotRunning) {
		t.Fatalf("second Stop() error = %v, want ErrPollerNotRunning", err)
	}
}

func TestPollerReconcilesOnStart(t *testing.T) {
	s := NewStore(viewer)
	fake := &fakeMessages{}
	fake.set([]models.Message{inbound("m1", 0, "hello")}, nil)

	p := NewPoller(PollerConfig{Interval: time.Hour}, s, fake, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return len(s.Conversations()) == 1
	})

	conv := s.Conversations()[0]
	if conv.PreviewText != "hello" || conv.UnreadCount != 1 {
		t.Fatalf("conversation = %+v", conv)
	}
	if len(s.Thread("host-1")) != 1 {
		t.Fatal("poll should merge messages into the thread")
	}
	if p.LastPollAt().IsZero() {
		t.Fatal("LastPollAt should be set after a successful cycle")
	}
}

func TestPollerWakeTriggersOffIntervalCycle(t *testing.T) {
	s := NewStore(viewer)
	fake := &fakeMessages{}

	p := NewPoller(PollerConfig{Interval: time.Hour}, s, fake, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return !p.LastPollAt().IsZero() })

	fake.set([]models.Message{inbound("m1", 0, "back online")}, nil)
	if err := p.Wake(WakeOnline); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(s.Conversations()) == 1
	})
}

func TestPollerSwallowsFetchErrors(t *testing.T) {
	s := NewStore(viewer)
	fake := &fakeMessages{}
	fake.set(nil, errors.New("network down"))

	p := NewPoller(PollerConfig{Interval: 10 * time.Millisecond}, s, fake, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	time.Sleep(50 * time.Millisecond)
	if len(s.Conversations()) != 0 {
		t.Fatal("failed polls must not modify the store")
	}

	// Recovery on the next natural trigger.
	fake.set([]models.Message{inbound("m1", 0, "recovered")}, nil)
	waitFor(t, 2*time.Second, func() bool {
		return len(s.Conversations()) == 1
	})
}

func TestPollerWakeWhenStopped(t *testing.T) {
	p := NewPoller(PollerConfig{}, NewStore(viewer), &fakeMessages{}, nil)
	if err := p.Wake(WakeManual); !errors.Is(err, ErrPollerNotRunning) {
		t.Fatalf("Wake() error = %v, want ErrPollerNotRunning", err)
	}
}

func TestPollerDefaultsInterval(t *testing.T) {
	p := NewPoller(PollerConfig{}, NewStore(viewer), &fakeMessages{}, nil)
	if p.config.Interval != DefaultPollerConfig().Interval {
		t.Fatalf("interval = %v, want default", p.config.Interval)
	}
}
