package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/agentdex/internal/domain"
	"github.com/kailas-cloud/agentdex/internal/domain/agent"
	"github.com/kailas-cloud/agentdex/internal/domain/search/filter"
	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
	"github.com/kailas-cloud/agentdex/internal/usecase/streaming"
)

// --- Mocks ---

type mockHandle struct {
	mu     sync.Mutex
	closed int
}

func (h *mockHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
}

func (h *mockHandle) closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type mockTransport struct {
	mu      sync.Mutex
	handles []*mockHandle
	cbs     []stream.Callbacks
}

func (m *mockTransport) Open(_ string, _ filter.Set, cb stream.Callbacks) (stream.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := &mockHandle{}
	m.handles = append(m.handles, h)
	m.cbs = append(m.cbs, cb)
	return h, nil
}

type mockListener struct {
	mu      sync.Mutex
	updates []streaming.Update
}

func (l *mockListener) OnUpdate(u streaming.Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestManager(cfg Config, listeners ...streaming.Listener) (*Manager, *mockTransport, *fakeClock) {
	tr := &mockTransport{}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := New(cfg, tr, nil, listeners...)
	m.now = clock.now
	return m, tr, clock
}

var defiParams = params.Params{Query: "defi agents", Filters: filter.Set{Chains: []int64{8453}}}

// --- Tests ---

func TestCreate(t *testing.T) {
	m, _, _ := newTestManager(Config{StreamingEnabled: true})

	s, err := m.Create(defiParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == "" {
		t.Error("expected session id")
	}
	if s.Controller.Phase() != stream.Idle {
		t.Errorf("expected idle, got %s", s.Controller.Phase())
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 session, got %d", m.Len())
	}

	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Errorf("Get returned %v, %v", got, err)
	}
}

func TestCreate_InvalidParams(t *testing.T) {
	m, _, _ := newTestManager(Config{})

	_, err := m.Create(params.Params{Query: "x", Filters: filter.Set{Mode: "XOR"}})
	if !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
	if m.Len() != 0 {
		t.Error("invalid session must not be registered")
	}
}

func TestCreate_Limit(t *testing.T) {
	m, _, _ := newTestManager(Config{MaxSessions: 2})

	for range 2 {
		if _, err := m.Create(defiParams); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	_, err := m.Create(defiParams)
	if !errors.Is(err, domain.ErrTooManySessions) {
		t.Errorf("expected ErrTooManySessions, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	m, _, _ := newTestManager(Config{})

	if _, err := m.Get("missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDelete_ClosesStream(t *testing.T) {
	m, tr, _ := newTestManager(Config{StreamingEnabled: true})
	s, _ := m.Create(defiParams)
	s.Controller.Start()

	if err := m.Delete(s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.handles[0].closes() != 1 {
		t.Error("expected handle closed")
	}
	if err := m.Delete(s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	s.Controller.Start()
	if len(tr.handles) != 1 {
		t.Error("deleted session must not open streams")
	}
}

func TestStreamingDisabled(t *testing.T) {
	m, tr, _ := newTestManager(Config{StreamingEnabled: false})
	s, _ := m.Create(defiParams)

	s.Controller.Start()

	if len(tr.handles) != 0 {
		t.Error("expected no stream when streaming is disabled")
	}
	if m.StreamingEnabled() {
		t.Error("expected StreamingEnabled false")
	}
}

func TestSweep_EvictsIdle(t *testing.T) {
	m, tr, clock := newTestManager(Config{IdleTTL: time.Minute, StreamingEnabled: true})
	stale, _ := m.Create(defiParams)
	stale.Controller.Start()

	clock.t = clock.t.Add(45 * time.Second)
	fresh, _ := m.Create(defiParams)

	clock.t = clock.t.Add(30 * time.Second)
	if _, err := m.Get(fresh.ID); err != nil {
		t.Fatal(err)
	}

	if n := m.Sweep(clock.t); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := m.Get(stale.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Error("stale session must be evicted")
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Error("fresh session must survive")
	}
	if tr.handles[0].closes() != 1 {
		t.Error("evicted session must close its stream")
	}
}

func TestSweep_NoTTL(t *testing.T) {
	m, _, clock := newTestManager(Config{})
	_, _ = m.Create(defiParams)

	if n := m.Sweep(clock.t.Add(24 * time.Hour)); n != 0 {
		t.Errorf("expected no eviction without ttl, got %d", n)
	}
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	m, _, _ := newTestManager(Config{IdleTTL: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.RunSweeper(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestCloseAll(t *testing.T) {
	m, tr, _ := newTestManager(Config{StreamingEnabled: true})
	for range 3 {
		s, _ := m.Create(defiParams)
		s.Controller.Start()
	}

	m.CloseAll()

	if m.Len() != 0 {
		t.Errorf("expected 0 sessions, got %d", m.Len())
	}
	for i, h := range tr.handles {
		if h.closes() != 1 {
			t.Errorf("handle %d closed %d times", i, h.closes())
		}
	}
}

func TestListenersReceiveUpdates(t *testing.T) {
	l := &mockListener{}
	m, tr, _ := newTestManager(Config{StreamingEnabled: true}, l)
	s, _ := m.Create(defiParams)
	s.Controller.Start()

	tr.cbs[0].OnResult(agent.Agent{ID: "8453:7"})

	if len(l.updates) != 1 || l.updates[0].Key != s.Controller.Key() {
		t.Errorf("unexpected updates: %+v", l.updates)
	}
}
