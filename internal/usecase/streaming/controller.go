package streaming

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/agentdex/internal/domain/agent"
	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
	"github.com/kailas-cloud/agentdex/internal/metrics"
)

// Option configures a Controller.
type Option func(*Controller)

// WithListener subscribes l to accumulation updates.
func WithListener(l Listener) Option {
	return func(c *Controller) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEnabled gates Start. A disabled controller never opens a transport.
func WithEnabled(enabled bool) Option {
	return func(c *Controller) { c.enabled = enabled }
}

// Controller drives one streaming search session at a time.
//
// All state changes happen under mu, in the order callers and the transport
// deliver them. Every release of the transport handle bumps generation, and
// each callback set carries the generation it was opened with, so events from
// a closed or superseded stream are dropped.
type Controller struct {
	transport Transport
	listeners []Listener
	logger    *zap.Logger

	mu         sync.Mutex
	enabled    bool
	closed     bool
	params     params.Params
	detector   paramDetector
	phase      stream.Phase
	acc        accumulator
	metadata   *stream.Metadata
	err        *stream.Error
	handle     stream.Handle
	generation uint64
	sessionKey string
}

// New creates a controller bound to p. It starts idle.
func New(t Transport, p params.Params, opts ...Option) *Controller {
	c := &Controller{
		transport: t,
		logger:    zap.NewNop(),
		enabled:   true,
		params:    p,
		detector:  newParamDetector(p),
		phase:     stream.Idle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start opens a fresh stream for the bound parameters, closing any open one
// and wiping accumulated state first. An empty query fails with EMPTY_QUERY
// without touching the transport. Start returns once the transport is opened;
// progress is observed through Snapshot and listeners.
func (c *Controller) Start() {
	c.mu.Lock()
	if !c.enabled || c.closed {
		c.mu.Unlock()
		return
	}
	c.endLocked("restarted")
	c.resetLocked()

	if !c.params.HasQuery() {
		c.failLocked(stream.Error{Code: stream.CodeEmptyQuery, Message: "search query is empty"})
		c.mu.Unlock()
		return
	}

	gen := c.generation
	p := c.params
	key := c.detector.key()
	c.sessionKey = key
	c.phase = stream.Connecting
	c.mu.Unlock()

	metrics.StreamsStartedTotal.Inc()
	c.logger.Debug("opening search stream", zap.String("key", key), zap.Uint64("generation", gen))

	h, err := c.transport.Open(p.Query, p.Filters, c.callbacks(gen))

	c.mu.Lock()
	defer c.mu.Unlock()

	// Stopped, restarted or finished while opening.
	if gen != c.generation {
		if h != nil {
			h.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("failed to open search stream", zap.Error(err))
		c.failLocked(stream.Error{Code: stream.CodeOpenFailed, Message: err.Error()})
		return
	}
	c.handle = h
}

// Stop closes the open stream, if any, and keeps accumulated results,
// metadata and error for inspection. An interrupted session becomes idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Clear closes the open stream, if any, and returns to idle with no results.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Close tears the controller down: the stream is stopped and Start becomes
// a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.closed = true
}

// SetParams binds new parameters. A semantically different set clears the
// session; an equivalent one is ignored. Reports whether the session was reset.
// It never starts a stream.
func (c *Controller) SetParams(p params.Params) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.detector.observe(p) {
		return false
	}
	c.clearLocked()
	c.params = p
	c.logger.Debug("search parameters changed", zap.String("key", c.detector.key()))
	return true
}

// SetEnabled gates future Start calls.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Params returns the bound parameters.
func (c *Controller) Params() params.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Key returns the canonical form of the bound parameters.
func (c *Controller) Key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detector.key()
}

// Snapshot returns the current state. The result slice is shared and
// read-only.
func (c *Controller) Snapshot() stream.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stream.Snapshot{
		Phase:    c.phase,
		Results:  c.acc.snapshot(),
		Metadata: copyMetadata(c.metadata),
		Err:      copyError(c.err),
	}
}

// Phase returns the lifecycle phase.
func (c *Controller) Phase() stream.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// IsStreaming reports whether results are arriving.
func (c *Controller) IsStreaming() bool {
	return c.Phase() == stream.Streaming
}

// ResultCount returns the number of accumulated results.
func (c *Controller) ResultCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acc.len()
}

// ExpectedTotal returns the engine's total estimate, if metadata arrived.
func (c *Controller) ExpectedTotal() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metadata == nil {
		return 0, false
	}
	return c.metadata.TotalExpected, true
}

func (c *Controller) callbacks(gen uint64) stream.Callbacks {
	return stream.Callbacks{
		OnResult:   func(a agent.Agent) { c.onResult(gen, a) },
		OnMetadata: func(m stream.Metadata) { c.onMetadata(gen, m) },
		OnError:    func(e stream.Error) { c.onError(gen, e) },
		OnComplete: func() { c.onComplete(gen) },
	}
}

func (c *Controller) onResult(gen uint64, a agent.Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(gen) {
		return
	}
	if !c.acc.insert(a) {
		metrics.StreamEventsTotal.WithLabelValues("duplicate").Inc()
		return
	}
	metrics.StreamEventsTotal.WithLabelValues("result").Inc()
	if c.phase == stream.Connecting {
		c.phase = stream.Streaming
	}
	c.notifyLocked(ReasonResult)
}

func (c *Controller) onMetadata(gen uint64, m stream.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(gen) {
		return
	}
	metrics.StreamEventsTotal.WithLabelValues("metadata").Inc()
	c.metadata = &m
}

func (c *Controller) onError(gen uint64, e stream.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(gen) {
		return
	}
	metrics.StreamEventsTotal.WithLabelValues("error").Inc()
	c.logger.Warn("search stream failed",
		zap.String("code", e.Code),
		zap.String("message", e.Message),
		zap.Int("results", c.acc.len()),
	)
	c.endLocked("error")
	c.failLocked(e)
}

func (c *Controller) onComplete(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(gen) {
		return
	}
	metrics.StreamEventsTotal.WithLabelValues("complete").Inc()
	c.endLocked("complete")
	c.phase = stream.Complete
	c.logger.Debug("search stream complete", zap.Int("results", c.acc.len()))
	c.notifyLocked(ReasonComplete)
}

// currentLocked reports whether gen belongs to the live stream.
func (c *Controller) currentLocked(gen uint64) bool {
	if gen == c.generation {
		return true
	}
	metrics.StreamDroppedCallbacksTotal.Inc()
	c.logger.Debug("dropping callback from superseded stream",
		zap.Uint64("generation", gen),
		zap.Uint64("current", c.generation),
	)
	return false
}

// endLocked invalidates outstanding callbacks and closes the handle.
// reason labels the metric when a live session is cut short or finishes.
func (c *Controller) endLocked(reason string) {
	if c.phase.IsActive() {
		metrics.StreamEndedTotal.WithLabelValues(reason).Inc()
	}
	c.generation++
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
}

func (c *Controller) stopLocked() {
	c.endLocked("stopped")
	if c.phase.IsActive() {
		c.phase = stream.Idle
	}
}

func (c *Controller) clearLocked() {
	c.endLocked("cleared")
	c.resetLocked()
	c.phase = stream.Idle
}

func (c *Controller) resetLocked() {
	c.acc.reset()
	c.metadata = nil
	c.err = nil
}

// failLocked moves to the error phase. Callers release the handle first.
func (c *Controller) failLocked(e stream.Error) {
	c.generation++
	c.phase = stream.Failed
	c.err = &e
}

func (c *Controller) notifyLocked(reason UpdateReason) {
	if len(c.listeners) == 0 {
		return
	}
	u := Update{
		Key:      c.sessionKey,
		Reason:   reason,
		Results:  c.acc.snapshot(),
		Metadata: copyMetadata(c.metadata),
	}
	for _, l := range c.listeners {
		l.OnUpdate(u)
	}
}

func copyMetadata(m *stream.Metadata) *stream.Metadata {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func copyError(e *stream.Error) *stream.Error {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
