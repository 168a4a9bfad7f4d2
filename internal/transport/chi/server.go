package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/agentdex/internal/domain"
	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
	logpkg "github.com/kailas-cloud/agentdex/internal/logger"
	healthuc "github.com/kailas-cloud/agentdex/internal/usecase/health"
	"github.com/kailas-cloud/agentdex/internal/usecase/session"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Sessions is the session pool the API drives.
type Sessions interface {
	Create(p params.Params) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Delete(id string) error
	StreamingEnabled() bool
}

// SearchCache reads and invalidates cached search snapshots.
type SearchCache interface {
	Read(ctx context.Context, canonical string) (stream.CacheSnapshot, error)
	Invalidate(ctx context.Context, canonical string) error
}

// Server serves the session and cached search API.
type Server struct {
	sessions      Sessions
	cache         SearchCache
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(sessions Sessions, cache SearchCache, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sessions: sessions,
		cache:    cache,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorCodeSessionNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrInvalidParams, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrTooManySessions, http.StatusTooManyRequests, ErrorCodeTooManySessions),
		sentinelHandler(domain.ErrStreamingDisabled, http.StatusConflict, ErrorCodeStreamingDisabled),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Put("/params", s.SetParams)
			r.Post("/start", s.StartSession)
			r.Post("/stop", s.StopSession)
			r.Post("/clear", s.ClearSession)
		})
	})

	r.Get("/search/cached", s.GetCachedSearch)
	r.Delete("/search/cached", s.InvalidateCachedSearch)
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sess, err := s.sessions.Create(req.params())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	s.log(r).Info("session created",
		zap.String("session", sess.ID),
		zap.String("key", sess.Controller.Key()),
	)
	writeJSON(w, http.StatusCreated, sessionToResponse(sess))
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetParams handles PUT /sessions/{id}/params.
func (s *Server) SetParams(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	p := req.params()
	if err := p.Validate(); err != nil {
		s.handleDomainError(w, r, fmt.Errorf("set params: %w: %w", domain.ErrInvalidParams, err))
		return
	}

	reset := sess.Controller.SetParams(p)
	writeJSON(w, http.StatusOK, ParamsResponse{Reset: reset, Session: sessionToResponse(sess)})
}

// StartSession handles POST /sessions/{id}/start.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !s.sessions.StreamingEnabled() {
		s.handleDomainError(w, r, fmt.Errorf("start session %q: %w", sess.ID, domain.ErrStreamingDisabled))
		return
	}
	sess.Controller.Start()
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// StopSession handles POST /sessions/{id}/stop.
func (s *Server) StopSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Controller.Stop()
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// ClearSession handles POST /sessions/{id}/clear.
func (s *Server) ClearSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Controller.Clear()
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// GetCachedSearch handles GET /search/cached.
func (s *Server) GetCachedSearch(w http.ResponseWriter, r *http.Request) {
	p, ok := s.cachedParams(w, r)
	if !ok {
		return
	}

	snap, err := s.cache.Read(r.Context(), p.Canonical())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// InvalidateCachedSearch handles DELETE /search/cached.
func (s *Server) InvalidateCachedSearch(w http.ResponseWriter, r *http.Request) {
	p, ok := s.cachedParams(w, r)
	if !ok {
		return
	}

	if err := s.cache.Invalidate(r.Context(), p.Canonical()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) log(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) cachedParams(w http.ResponseWriter, r *http.Request) (params.Params, bool) {
	p, err := paramsFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return params.Params{}, false
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return params.Params{}, false
	}
	if !p.HasQuery() {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "q is required")
		return params.Params{}, false
	}
	return p, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSessionNotFound,
		domain.ErrNotFound,
		domain.ErrTooManySessions,
		domain.ErrStreamingDisabled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	// Validation failures carry the offending field; safe to echo.
	if errors.Is(err, domain.ErrInvalidParams) {
		return err.Error()
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
