package streaming

import (
	"context"

	"github.com/kailas-cloud/agentdex/internal/domain/agent"
	"github.com/kailas-cloud/agentdex/internal/domain/search/filter"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
)

// Transport opens server-pushed result streams.
// Open must return promptly; events are delivered later through cb.
type Transport interface {
	Open(query string, filters filter.Set, cb stream.Callbacks) (stream.Handle, error)
}

// CacheWriter performs blind overwrites of search snapshots.
type CacheWriter interface {
	Write(ctx context.Context, canonical string, snap stream.CacheSnapshot) error
}

// Listener observes accumulation progress. OnUpdate runs while the
// controller is locked, in event order, and must not call back into it.
type Listener interface {
	OnUpdate(u Update)
}

// UpdateReason tells a listener what produced an update.
type UpdateReason string

const (
	// ReasonResult follows a newly accepted result.
	ReasonResult UpdateReason = "result"
	// ReasonComplete follows the end of the stream.
	ReasonComplete UpdateReason = "complete"
)

// Update is the accumulated state after a result or completion.
// Key is the canonical form of the parameters the stream was started with.
type Update struct {
	Key      string
	Reason   UpdateReason
	Results  []agent.Agent
	Metadata *stream.Metadata
}
