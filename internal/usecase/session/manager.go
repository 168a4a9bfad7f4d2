// Package session hosts streaming search controllers, one per client session.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/agentdex/internal/domain"
	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
	"github.com/kailas-cloud/agentdex/internal/metrics"
	"github.com/kailas-cloud/agentdex/internal/usecase/streaming"
)

// Config bounds the session pool.
type Config struct {
	MaxSessions      int
	IdleTTL          time.Duration
	StreamingEnabled bool
}

// Manager owns live sessions keyed by id.
type Manager struct {
	cfg       Config
	transport streaming.Transport
	listeners []streaming.Listener
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a Manager. Every controller it creates opens streams through
// transport and reports to listeners.
func New(cfg Config, transport streaming.Transport, logger *zap.Logger, listeners ...streaming.Listener) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		transport: transport,
		listeners: listeners,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// StreamingEnabled reports whether sessions may open streams.
func (m *Manager) StreamingEnabled() bool { return m.cfg.StreamingEnabled }

// Create validates p and registers a new idle session bound to it.
func (m *Manager) Create(p params.Params) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("create session: %w: %w", domain.ErrInvalidParams, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("create session: %w (limit %d)", domain.ErrTooManySessions, m.cfg.MaxSessions)
	}

	id := uuid.NewString()
	opts := []streaming.Option{
		streaming.WithEnabled(m.cfg.StreamingEnabled),
		streaming.WithLogger(m.logger.With(zap.String("session", id))),
	}
	for _, l := range m.listeners {
		opts = append(opts, streaming.WithListener(l))
	}

	now := m.now()
	s := &Session{
		ID:         id,
		Controller: streaming.New(m.transport, p, opts...),
		CreatedAt:  now,
		lastSeen:   now,
	}
	m.sessions[id] = s
	metrics.SessionsActive.Set(float64(len(m.sessions)))

	m.logger.Debug("session created", zap.String("session", id), zap.String("key", s.Controller.Key()))
	return s, nil
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("get session %q: %w", id, domain.ErrSessionNotFound)
	}
	s.touch(m.now())
	return s, nil
}

// Delete closes the session's controller and forgets it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		metrics.SessionsActive.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("delete session %q: %w", id, domain.ErrSessionNotFound)
	}
	s.Controller.Close()
	m.logger.Debug("session deleted", zap.String("session", id))
	return nil
}

// Sweep closes sessions idle for longer than the configured ttl at now.
// Returns the number of evicted sessions.
func (m *Manager) Sweep(now time.Time) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.cfg.IdleTTL {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range expired {
		s.Controller.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("evicted idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// RunSweeper sweeps every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// CloseAll closes and forgets every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	metrics.SessionsActive.Set(0)
	m.mu.Unlock()

	for _, s := range all {
		s.Controller.Close()
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
