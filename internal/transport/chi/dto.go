package chi

import (
	"time"

	"github.com/kailas-cloud/agentdex/internal/domain/agent"
	"github.com/kailas-cloud/agentdex/internal/domain/search/filter"
	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
	"github.com/kailas-cloud/agentdex/internal/usecase/session"
)

// ErrorCode is a machine-readable API error code.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeSessionNotFound   ErrorCode = "session_not_found"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeTooManySessions   ErrorCode = "too_many_sessions"
	ErrorCodeStreamingDisabled ErrorCode = "streaming_disabled"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SessionRequest creates a session or rebinds its parameters.
type SessionRequest struct {
	Query   string     `json:"query"`
	Filters filter.Set `json:"filters"`
}

func (r SessionRequest) params() params.Params {
	return params.Params{Query: r.Query, Filters: r.Filters}
}

// SessionResponse describes a session and its current snapshot.
type SessionResponse struct {
	ID            string           `json:"id"`
	Query         string           `json:"query"`
	Filters       filter.Set       `json:"filters"`
	Key           string           `json:"key"`
	Phase         stream.Phase     `json:"phase"`
	Results       []agent.Agent    `json:"results"`
	ResultCount   int              `json:"resultCount"`
	ExpectedTotal *int             `json:"expectedTotal,omitempty"`
	Metadata      *stream.Metadata `json:"metadata,omitempty"`
	Error         *stream.Error    `json:"error,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	LastSeen      time.Time        `json:"lastSeen"`
}

// ParamsResponse reports whether a parameter change reset the session.
type ParamsResponse struct {
	Reset   bool            `json:"reset"`
	Session SessionResponse `json:"session"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func sessionToResponse(s *session.Session) SessionResponse {
	c := s.Controller
	p := c.Params()
	snap := c.Snapshot()

	resp := SessionResponse{
		ID:          s.ID,
		Query:       p.Query,
		Filters:     p.Filters,
		Key:         c.Key(),
		Phase:       snap.Phase,
		Results:     snap.Results,
		ResultCount: snap.ResultCount(),
		Metadata:    snap.Metadata,
		Error:       snap.Err,
		CreatedAt:   s.CreatedAt,
		LastSeen:    s.LastSeen(),
	}
	if n, ok := snap.ExpectedTotal(); ok {
		resp.ExpectedTotal = &n
	}
	return resp
}
