// Package sse implements the search stream transport over server-sent events.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/agentdex/internal/domain/search/filter"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
)

// Default backend endpoints.
const (
	DefaultPath       = "/api/v1/search/stream"
	DefaultHealthPath = "/health"
)

const maxErrorBody = 512

var errConnectTimeout = errors.New("connect timeout")

// Config holds transport settings.
type Config struct {
	BaseURL        string
	Path           string
	HealthPath     string
	APIKey         string
	ConnectTimeout time.Duration
	MaxEventSize   int
}

// Transport opens search streams against the backend.
type Transport struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a transport. A nil client means http.DefaultClient.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Transport {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}
	if cfg.MaxEventSize <= 0 {
		cfg.MaxEventSize = defaultMaxEventSize
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{cfg: cfg, client: client, logger: logger}
}

// Open starts streaming results for query and filters. It returns as soon as
// the request is prepared; connecting and reading happen in the background.
// Callbacks run on the reader goroutine, one at a time. At most one of
// OnError and OnComplete is delivered, and nothing follows it.
func (t *Transport) Open(query string, filters filter.Set, cb stream.Callbacks) (stream.Handle, error) {
	u, err := t.streamURL(query, filters)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel(err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	h := &handle{cancel: cancel}
	go t.run(ctx, h, req, cb)
	return h, nil
}

// handle cancels the request. Close never waits for the reader goroutine.
type handle struct {
	once   sync.Once
	closed atomic.Bool
	cancel context.CancelCauseFunc
}

func (h *handle) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		h.cancel(context.Canceled)
	})
}

func (t *Transport) run(ctx context.Context, h *handle, req *http.Request, cb stream.Callbacks) {
	defer h.cancel(nil)
	cancel := h.cancel
	d := &dispatcher{closed: &h.closed, cb: cb}

	var timer *time.Timer
	if t.cfg.ConnectTimeout > 0 {
		timer = time.AfterFunc(t.cfg.ConnectTimeout, func() { cancel(errConnectTimeout) })
	}
	resp, err := t.client.Do(req)
	if timer != nil {
		timer.Stop()
	}
	if err != nil {
		if errors.Is(context.Cause(ctx), errConnectTimeout) {
			d.fail(stream.CodeNetwork, "connect timeout after "+t.cfg.ConnectTimeout.String())
			return
		}
		if !h.closed.Load() {
			t.logger.Warn("search stream request failed", zap.Error(err))
		}
		d.fail(stream.CodeNetwork, err.Error())
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if s := strings.TrimSpace(string(body)); s != "" {
			msg += ": " + s
		}
		d.fail(stream.CodeHTTP, msg)
		return
	}

	err = readEvents(resp.Body, t.cfg.MaxEventSize, d.handle)
	switch {
	case d.done:
	case err != nil && !h.closed.Load():
		t.logger.Warn("search stream read failed", zap.Error(err))
		d.fail(stream.CodeNetwork, err.Error())
	case err == nil:
		d.fail(stream.CodeClosed, "stream ended without a complete event")
	}
}

func (t *Transport) streamURL(query string, f filter.Set) (string, error) {
	base, err := url.Parse(strings.TrimRight(t.cfg.BaseURL, "/") + t.cfg.Path)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("stream url %q: missing scheme or host", base.String())
	}
	base.RawQuery = EncodeQuery(query, f).Encode()
	return base.String(), nil
}

// EncodeQuery renders query and filters as stream request parameters.
func EncodeQuery(query string, f filter.Set) url.Values {
	v := url.Values{}
	v.Set("q", query)
	if len(f.Chains) > 0 {
		parts := make([]string, len(f.Chains))
		for i, c := range f.Chains {
			parts[i] = strconv.FormatInt(c, 10)
		}
		v.Set("chains", strings.Join(parts, ","))
	}
	setBool(v, "mcp", f.MCP)
	setBool(v, "a2a", f.A2A)
	setBool(v, "x402", f.X402)
	setFloat(v, "minReputation", f.MinReputation)
	setFloat(v, "maxReputation", f.MaxReputation)
	if len(f.Skills) > 0 {
		v.Set("skills", strings.Join(f.Skills, ","))
	}
	if len(f.Domains) > 0 {
		v.Set("domains", strings.Join(f.Domains, ","))
	}
	if f.Mode != "" {
		v.Set("mode", string(f.Mode))
	}
	return v
}

func setBool(v url.Values, key string, b *bool) {
	if b != nil {
		v.Set(key, strconv.FormatBool(*b))
	}
}

func setFloat(v url.Values, key string, f *float64) {
	if f != nil {
		v.Set(key, strconv.FormatFloat(*f, 'f', -1, 64))
	}
}
