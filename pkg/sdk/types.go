package agentdex

import (
	"github.com/kailas-cloud/agentdex/internal/domain/agent"
	"github.com/kailas-cloud/agentdex/internal/domain/search/filter"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
)

// Agent is one search result.
type Agent = agent.Agent

// Filters narrows a search. Nil and empty fields do not filter.
type Filters = filter.Set

// Mode combines filter groups.
type Mode = filter.Mode

// Filter combinator modes.
const (
	ModeAnd = filter.And
	ModeOr  = filter.Or
)

// Protocol is a capability advertised by an agent.
type Protocol = agent.Protocol

// Protocol constants.
const (
	ProtocolMCP  = agent.ProtocolMCP
	ProtocolA2A  = agent.ProtocolA2A
	ProtocolX402 = agent.ProtocolX402
)

// Phase is the lifecycle state of a search.
type Phase = stream.Phase

// Search phases.
const (
	PhaseIdle       = stream.Idle
	PhaseConnecting = stream.Connecting
	PhaseStreaming  = stream.Streaming
	PhaseComplete   = stream.Complete
	PhaseError      = stream.Failed
)

// Metadata is the engine's view of the query.
type Metadata = stream.Metadata

// StreamError is the failure that ended a search.
type StreamError = stream.Error

// Snapshot is a point-in-time read of a search.
type Snapshot = stream.Snapshot

// CachedResult is the last known result set stored for a query.
type CachedResult = stream.CacheSnapshot

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}
