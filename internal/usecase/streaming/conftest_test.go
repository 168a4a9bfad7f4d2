package streaming

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/agentdex/internal/domain/agent"
	"github.com/kailas-cloud/agentdex/internal/domain/search/filter"
	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
)

// --- Transport fake ---

type fakeHandle struct {
	closes atomic.Int32
}

func (h *fakeHandle) Close() { h.closes.Add(1) }

type openCall struct {
	query   string
	filters filter.Set
	cb      stream.Callbacks
	handle  *fakeHandle
}

// fakeTransport records every Open; tests drive callbacks through the
// recorded call. openHook, if set, runs inside Open before it returns.
type fakeTransport struct {
	mu       sync.Mutex
	calls    []*openCall
	err      error
	openHook func(call *openCall)
}

func (f *fakeTransport) Open(query string, filters filter.Set, cb stream.Callbacks) (stream.Handle, error) {
	if f.err != nil {
		return nil, f.err
	}
	call := &openCall{query: query, filters: filters, cb: cb, handle: &fakeHandle{}}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.openHook != nil {
		f.openHook(call)
	}
	return call.handle, nil
}

func (f *fakeTransport) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) last(t *testing.T) *openCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("transport was never opened")
	}
	return f.calls[len(f.calls)-1]
}

// --- Listener / cache fakes ---

type recordingListener struct {
	updates []Update
}

func (l *recordingListener) OnUpdate(u Update) { l.updates = append(l.updates, u) }

type cacheWrite struct {
	key  string
	snap stream.CacheSnapshot
}

type fakeCache struct {
	writes []cacheWrite
	err    error
}

func (f *fakeCache) Write(_ context.Context, canonical string, snap stream.CacheSnapshot) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, cacheWrite{key: canonical, snap: snap})
	return nil
}

func (f *fakeCache) lastWrite(t *testing.T) cacheWrite {
	t.Helper()
	if len(f.writes) == 0 {
		t.Fatal("cache was never written")
	}
	return f.writes[len(f.writes)-1]
}

var errBoom = errors.New("boom")

// --- helpers ---

func rec(id string) agent.Agent {
	return agent.Agent{ID: id, Name: "agent " + id}
}

func ids(items []agent.Agent) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.ID
	}
	return out
}

func testParams(query string) params.Params {
	return params.Params{Query: query, Filters: filter.Set{Chains: []int64{8453}}}
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	return New(tr, testParams("defi agents"), opts...), tr
}
