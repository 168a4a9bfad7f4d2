package streaming

import "github.com/kailas-cloud/agentdex/internal/domain/agent"

// accumulator is an append-only sequence of results, unique by ID, kept in
// arrival order.
//
// snapshot hands out items[:n:n]. Existing elements are never rewritten and
// reset drops the backing array instead of truncating it, so a snapshot stays
// valid after later inserts and resets.
type accumulator struct {
	items []agent.Agent
	seen  map[string]struct{}
}

// insert appends a if its ID is new. Reports whether it was appended.
func (a *accumulator) insert(r agent.Agent) bool {
	if _, dup := a.seen[r.ID]; dup {
		return false
	}
	if a.seen == nil {
		a.seen = make(map[string]struct{})
	}
	a.seen[r.ID] = struct{}{}
	a.items = append(a.items, r)
	return true
}

func (a *accumulator) reset() {
	a.items = nil
	a.seen = nil
}

func (a *accumulator) len() int { return len(a.items) }

func (a *accumulator) snapshot() []agent.Agent {
	n := len(a.items)
	if n == 0 {
		return []agent.Agent{}
	}
	return a.items[:n:n]
}
