package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/agentdex/internal/domain"
	"github.com/kailas-cloud/agentdex/internal/domain/agent"
	"github.com/kailas-cloud/agentdex/internal/domain/search/filter"
	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
	healthuc "github.com/kailas-cloud/agentdex/internal/usecase/health"
	"github.com/kailas-cloud/agentdex/internal/usecase/session"
)

// --- Mocks ---

type mockHandle struct{}

func (mockHandle) Close() {}

type mockTransport struct {
	mu   sync.Mutex
	cbs  []stream.Callbacks
	err  error
}

func (m *mockTransport) Open(_ string, _ filter.Set, cb stream.Callbacks) (stream.Handle, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cbs = append(m.cbs, cb)
	return mockHandle{}, nil
}

func (m *mockTransport) last(t *testing.T) stream.Callbacks {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cbs) == 0 {
		t.Fatal("transport never opened")
	}
	return m.cbs[len(m.cbs)-1]
}

type mockCache struct {
	readFn       func(ctx context.Context, canonical string) (stream.CacheSnapshot, error)
	invalidateFn func(ctx context.Context, canonical string) error
}

func (m *mockCache) Read(ctx context.Context, canonical string) (stream.CacheSnapshot, error) {
	return m.readFn(ctx, canonical)
}

func (m *mockCache) Invalidate(ctx context.Context, canonical string) error {
	return m.invalidateFn(ctx, canonical)
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type testEnv struct {
	handler   http.Handler
	transport *mockTransport
	cache     *mockCache
	sessions  *session.Manager
}

func newTestEnv(t *testing.T, cfg session.Config) *testEnv {
	t.Helper()
	tr := &mockTransport{}
	mgr := session.New(cfg, tr, nil)
	t.Cleanup(mgr.CloseAll)
	cache := &mockCache{
		readFn: func(context.Context, string) (stream.CacheSnapshot, error) {
			return stream.CacheSnapshot{}, domain.ErrNotFound
		},
		invalidateFn: func(context.Context, string) error { return nil },
	}
	srv := NewServer(mgr, cache, healthuc.New(&mockPinger{}, nil), zap.NewNop())
	return &testEnv{
		handler:   NewRouter(srv, nil, zap.NewNop()),
		transport: tr,
		cache:     cache,
		sessions:  mgr,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (e *testEnv) create(t *testing.T, query string) SessionResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/sessions", SessionRequest{
		Query:   query,
		Filters: filter.Set{Chains: []int64{8453}},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", rr.Code, rr.Body.String())
	}
	return decode[SessionResponse](t, rr)
}

// --- Tests ---

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t, session.Config{StreamingEnabled: true})

	resp := env.create(t, "defi agents")

	if resp.ID == "" {
		t.Error("expected id")
	}
	if resp.Phase != stream.Idle {
		t.Errorf("phase = %s", resp.Phase)
	}
	want := params.Params{Query: "defi agents", Filters: filter.Set{Chains: []int64{8453}}}.Canonical()
	if resp.Key != want {
		t.Errorf("key = %s, want %s", resp.Key, want)
	}
	if resp.Results == nil {
		t.Error("results must encode as an empty list")
	}
}

func TestCreateSession_BadBody(t *testing.T) {
	env := newTestEnv(t, session.Config{})

	rr := env.do(t, http.MethodPost, "/sessions", "{not json")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrorCodeBadRequest {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestCreateSession_InvalidFilters(t *testing.T) {
	env := newTestEnv(t, session.Config{})

	rr := env.do(t, http.MethodPost, "/sessions", `{"query":"x","filters":{"mode":"XOR"}}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d", rr.Code)
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Code != ErrorCodeValidationFailed || !strings.Contains(resp.Message, "XOR") {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateSession_Limit(t *testing.T) {
	env := newTestEnv(t, session.Config{MaxSessions: 1})
	env.create(t, "a")

	rr := env.do(t, http.MethodPost, "/sessions", SessionRequest{Query: "b"})

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("got %d", rr.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, session.Config{StreamingEnabled: true})
	id := env.create(t, "defi agents").ID

	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/start", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rr.Code, rr.Body.String())
	}
	if resp := decode[SessionResponse](t, rr); resp.Phase != stream.Connecting {
		t.Errorf("phase after start = %s", resp.Phase)
	}

	cb := env.transport.last(t)
	cb.OnMetadata(stream.Metadata{GeneratedQueryText: "defi", TotalExpected: 4})
	cb.OnResult(agent.Agent{ID: "8453:1", Name: "Alpha"})
	cb.OnResult(agent.Agent{ID: "8453:2", Name: "Beta"})

	rr = env.do(t, http.MethodGet, "/sessions/"+id, nil)
	resp := decode[SessionResponse](t, rr)
	if resp.Phase != stream.Streaming || resp.ResultCount != 2 {
		t.Errorf("phase=%s count=%d", resp.Phase, resp.ResultCount)
	}
	if resp.ExpectedTotal == nil || *resp.ExpectedTotal != 4 {
		t.Errorf("expectedTotal = %v", resp.ExpectedTotal)
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/stop", nil)
	resp = decode[SessionResponse](t, rr)
	if resp.Phase != stream.Idle || resp.ResultCount != 2 {
		t.Errorf("after stop: phase=%s count=%d", resp.Phase, resp.ResultCount)
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/clear", nil)
	resp = decode[SessionResponse](t, rr)
	if resp.ResultCount != 0 || resp.Metadata != nil {
		t.Errorf("after clear: %+v", resp)
	}

	rr = env.do(t, http.MethodDelete, "/sessions/"+id, nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete: %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/sessions/"+id, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete: %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrorCodeSessionNotFound {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestSetParams(t *testing.T) {
	env := newTestEnv(t, session.Config{StreamingEnabled: true})
	id := env.create(t, "defi agents").ID
	env.do(t, http.MethodPost, "/sessions/"+id+"/start", nil)
	env.transport.last(t).OnResult(agent.Agent{ID: "a"})

	same := SessionRequest{Query: "defi agents", Filters: filter.Set{Chains: []int64{8453}, Mode: filter.And}}
	rr := env.do(t, http.MethodPut, "/sessions/"+id+"/params", same)
	resp := decode[ParamsResponse](t, rr)
	if resp.Reset || resp.Session.ResultCount != 1 {
		t.Errorf("equivalent params: %+v", resp)
	}

	rr = env.do(t, http.MethodPut, "/sessions/"+id+"/params", SessionRequest{Query: "oracles"})
	resp = decode[ParamsResponse](t, rr)
	if !resp.Reset || resp.Session.ResultCount != 0 || resp.Session.Phase != stream.Idle {
		t.Errorf("changed params: %+v", resp)
	}
	if resp.Session.Query != "oracles" {
		t.Errorf("query = %q", resp.Session.Query)
	}
}

func TestSetParams_Invalid(t *testing.T) {
	env := newTestEnv(t, session.Config{})
	id := env.create(t, "q").ID

	rr := env.do(t, http.MethodPut, "/sessions/"+id+"/params", `{"query":"q","filters":{"minReputation":200}}`)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d", rr.Code)
	}
}

func TestStart_EmptyQuery(t *testing.T) {
	env := newTestEnv(t, session.Config{StreamingEnabled: true})
	id := env.create(t, "  ").ID

	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/start", nil)

	resp := decode[SessionResponse](t, rr)
	if resp.Phase != stream.Failed || resp.Error == nil || resp.Error.Code != stream.CodeEmptyQuery {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStart_StreamingDisabled(t *testing.T) {
	env := newTestEnv(t, session.Config{StreamingEnabled: false})
	id := env.create(t, "q").ID

	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/start", nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrorCodeStreamingDisabled {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestGetCachedSearch(t *testing.T) {
	env := newTestEnv(t, session.Config{})
	var gotKey string
	env.cache.readFn = func(_ context.Context, canonical string) (stream.CacheSnapshot, error) {
		gotKey = canonical
		return stream.NewCacheSnapshot([]agent.Agent{{ID: "a"}}, &stream.Metadata{TotalExpected: 3}), nil
	}

	rr := env.do(t, http.MethodGet, "/search/cached?q=defi+agents&chains=8453&mode=and", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	snap := decode[stream.CacheSnapshot](t, rr)
	if len(snap.Items) != 1 || snap.Total != 3 || snap.HasMore {
		t.Errorf("snap = %+v", snap)
	}
	want := params.Params{Query: "defi agents", Filters: filter.Set{Chains: []int64{8453}}}.Canonical()
	if gotKey != want {
		t.Errorf("key = %s, want %s", gotKey, want)
	}
}

func TestGetCachedSearch_Miss(t *testing.T) {
	env := newTestEnv(t, session.Config{})

	rr := env.do(t, http.MethodGet, "/search/cached?q=defi", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d", rr.Code)
	}
}

func TestGetCachedSearch_BadQuery(t *testing.T) {
	env := newTestEnv(t, session.Config{})

	for _, path := range []string{
		"/search/cached",
		"/search/cached?q=x&chains=base",
		"/search/cached?q=x&mcp=maybe",
		"/search/cached?q=x&minReputation=high",
		"/search/cached?q=x&mode=XOR",
	} {
		rr := env.do(t, http.MethodGet, path, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d", path, rr.Code)
		}
	}
}

func TestGetCachedSearch_StoreError(t *testing.T) {
	env := newTestEnv(t, session.Config{})
	env.cache.readFn = func(context.Context, string) (stream.CacheSnapshot, error) {
		return stream.CacheSnapshot{}, errors.New("connection reset")
	}

	rr := env.do(t, http.MethodGet, "/search/cached?q=x", nil)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Message != "internal error" {
		t.Errorf("internal details leaked: %q", resp.Message)
	}
}

func TestInvalidateCachedSearch(t *testing.T) {
	env := newTestEnv(t, session.Config{})
	var gotKey string
	env.cache.invalidateFn = func(_ context.Context, canonical string) error {
		gotKey = canonical
		return nil
	}

	rr := env.do(t, http.MethodDelete, "/search/cached?q=x&skills=b,a", nil)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d", rr.Code)
	}
	want := params.Params{Query: "x", Filters: filter.Set{Skills: []string{"a", "b"}}}.Canonical()
	if gotKey != want {
		t.Errorf("key = %s, want %s", gotKey, want)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, session.Config{})

	rr := env.do(t, http.MethodGet, "/health", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "ok" || resp.Checks["cache"] != "ok" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	srv := NewServer(session.New(session.Config{}, &mockTransport{}, nil), &mockCache{},
		healthuc.New(&mockPinger{err: errors.New("down")}, nil), nil)
	rr := httptest.NewRecorder()

	srv.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d", rr.Code)
	}
}

func TestRequestID_Header(t *testing.T) {
	env := newTestEnv(t, session.Config{})

	rr := env.do(t, http.MethodGet, "/health", nil)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, session.Config{})

	rr := env.do(t, http.MethodGet, "/collections", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrorCodeNotFound {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrorCodeInternalError {
		t.Errorf("code = %s", resp.Code)
	}
}
