package session

import (
	"sync"
	"time"

	"github.com/kailas-cloud/agentdex/internal/usecase/streaming"
)

// Session is one client's streaming search.
type Session struct {
	ID         string
	Controller *streaming.Controller
	CreatedAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen returns the time of the last access.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
}
