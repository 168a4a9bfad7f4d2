package params

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/agentdex/internal/domain/search/filter"
)

// MaxQueryLength is the maximum allowed search query length.
const MaxQueryLength = 4096

// Params is the query and filter set a search session is bound to.
type Params struct {
	Query   string     `json:"query"`
	Filters filter.Set `json:"filters"`
}

// Validate checks query length and filters. An empty query is valid here:
// the controller reports it as EMPTY_QUERY when a stream is started.
func (p Params) Validate() error {
	if len(p.Query) > MaxQueryLength {
		return fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if err := p.Filters.Validate(); err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	return nil
}

// HasQuery reports whether the query has any non-whitespace text.
func (p Params) HasQuery() bool {
	return strings.TrimSpace(p.Query) != ""
}

// Canonical returns a deterministic, key-sorted encoding of p.
// Two parameter sets that filter the same way encode identically, so the
// result doubles as cache key material and as a change fingerprint.
func (p Params) Canonical() string {
	f := p.Filters.Normalized()

	m := map[string]any{"query": p.Query}
	if len(f.Chains) > 0 {
		m["chains"] = f.Chains
	}
	if f.MCP != nil {
		m["mcp"] = *f.MCP
	}
	if f.A2A != nil {
		m["a2a"] = *f.A2A
	}
	if f.X402 != nil {
		m["x402"] = *f.X402
	}
	if f.MinReputation != nil {
		m["minReputation"] = *f.MinReputation
	}
	if f.MaxReputation != nil {
		m["maxReputation"] = *f.MaxReputation
	}
	if len(f.Skills) > 0 {
		m["skills"] = f.Skills
	}
	if len(f.Domains) > 0 {
		m["domains"] = f.Domains
	}
	if f.Mode != "" {
		m["mode"] = string(f.Mode)
	}

	// encoding/json writes map keys in sorted order; the values are plain
	// strings, numbers, bools and slices of those, so Marshal cannot fail.
	data, _ := json.Marshal(m)
	return string(data)
}
