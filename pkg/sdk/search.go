package agentdex

import (
	"context"
	"time"

	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
	"github.com/kailas-cloud/agentdex/internal/usecase/streaming"
)

const waitPollInterval = 20 * time.Millisecond

// Search is one streaming search. It is safe for concurrent use.
type Search struct {
	ctrl *streaming.Controller
	obs  *observer
}

// Start opens a fresh stream, dropping any results of a previous run.
// An empty query ends immediately with an EMPTY_QUERY error.
func (s *Search) Start() {
	start := time.Now()
	s.ctrl.Start()

	var err error
	if e := s.ctrl.Snapshot().Err; e != nil {
		err = e
	}
	s.obs.observe("search.start", start, err)
}

// Stop closes the stream and keeps the results received so far.
func (s *Search) Stop() {
	s.ctrl.Stop()
}

// Clear closes the stream and drops all results.
func (s *Search) Clear() {
	s.ctrl.Clear()
}

// Close stops the search for good. Start becomes a no-op.
func (s *Search) Close() {
	s.ctrl.Close()
}

// SetParams rebinds the search. A change in the canonical parameters stops
// the stream and drops results; it reports whether that happened.
func (s *Search) SetParams(query string, filters Filters) (bool, error) {
	p := params.Params{Query: query, Filters: filters}
	if err := p.Validate(); err != nil {
		return false, wrapInvalid(err)
	}
	return s.ctrl.SetParams(p), nil
}

// Snapshot returns the current phase, results, metadata and error.
func (s *Search) Snapshot() Snapshot {
	return s.ctrl.Snapshot()
}

// Key returns the canonical parameter encoding the cache is keyed by.
func (s *Search) Key() string {
	return s.ctrl.Key()
}

// Wait blocks until the stream is no longer active and returns the final
// snapshot. A search that ended with an error returns it as *StreamError.
func (s *Search) Wait(ctx context.Context) (_ Snapshot, err error) {
	start := time.Now()
	defer func() { s.obs.observe("search.wait", start, err) }()

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		snap := s.ctrl.Snapshot()
		if !snap.Phase.IsActive() {
			if snap.Err != nil {
				return snap, snap.Err
			}
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}
