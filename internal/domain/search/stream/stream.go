package stream

import (
	"github.com/kailas-cloud/agentdex/internal/domain/agent"
)

// Error codes raised locally by the controller and the SSE transport.
// Codes sent by the backend in an error event are passed through verbatim.
const (
	CodeEmptyQuery   = "EMPTY_QUERY"
	CodeOpenFailed   = "STREAM_OPEN_FAILED"
	CodeHTTP         = "HTTP_ERROR"
	CodeNetwork      = "NETWORK_ERROR"
	CodeInvalidEvent = "INVALID_EVENT"
	CodeClosed       = "STREAM_CLOSED"
	CodeServer       = "SERVER_ERROR"
)

// Metadata is the search engine's own view of the query.
type Metadata struct {
	GeneratedQueryText string `json:"generatedQueryText"`
	TotalExpected      int    `json:"totalExpected"`
}

// Error is a failure that terminated a stream session.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// Callbacks receive transport events. A transport invokes them from a single
// goroutine, in delivery order, and stop delivering once the handle is closed.
type Callbacks struct {
	OnResult   func(agent.Agent)
	OnMetadata func(Metadata)
	OnError    func(Error)
	OnComplete func()
}

// Handle is an open transport connection.
type Handle interface {
	// Close terminates the connection. Safe to call any number of times
	// and from any goroutine; it must not wait for pending callbacks.
	Close()
}

// Snapshot is a point-in-time read of a controller.
// Results is shared with the controller and must not be modified.
type Snapshot struct {
	Phase    Phase         `json:"phase"`
	Results  []agent.Agent `json:"results"`
	Metadata *Metadata     `json:"metadata"`
	Err      *Error        `json:"error"`
}

// IsStreaming reports whether results are currently arriving.
func (s Snapshot) IsStreaming() bool { return s.Phase == Streaming }

// ResultCount returns the number of accumulated results.
func (s Snapshot) ResultCount() int { return len(s.Results) }

// ExpectedTotal returns the engine's total estimate, if metadata arrived.
func (s Snapshot) ExpectedTotal() (int, bool) {
	if s.Metadata == nil {
		return 0, false
	}
	return s.Metadata.TotalExpected, true
}

// CacheSnapshot is the denormalized view of a session written to the shared
// cache. Streams are their own pagination, so HasMore is always false and
// NextCursor always nil.
type CacheSnapshot struct {
	Items      []agent.Agent `json:"items"`
	Total      int           `json:"total"`
	HasMore    bool          `json:"hasMore"`
	NextCursor *string       `json:"nextCursor,omitempty"`
}

// NewCacheSnapshot builds the cache view of the given results. Total prefers
// a nonzero engine estimate over the number of results received so far.
func NewCacheSnapshot(items []agent.Agent, meta *Metadata) CacheSnapshot {
	if items == nil {
		items = []agent.Agent{}
	}
	total := len(items)
	if meta != nil && meta.TotalExpected > 0 {
		total = meta.TotalExpected
	}
	return CacheSnapshot{Items: items, Total: total}
}
