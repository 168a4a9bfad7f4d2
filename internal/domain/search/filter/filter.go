package filter

import (
	"fmt"
	"slices"
	"strings"
)

// MaxTagsPerGroup is the maximum number of skill or domain tags in one filter.
const MaxTagsPerGroup = 32

// Reputation bounds accepted by the backend.
const (
	MinReputation = 0
	MaxReputation = 100
)

// Mode combines the individual filter clauses.
type Mode string

const (
	// And requires every clause to match (default).
	And Mode = "AND"
	// Or requires at least one clause to match.
	Or Mode = "OR"
)

// IsValid reports whether m is a known mode. The empty mode means And.
func (m Mode) IsValid() bool {
	switch m {
	case "", And, Or:
		return true
	}
	return false
}

// Set is the flat filter set sent alongside a search query.
// Nil pointers and empty slices mean "not filtered".
type Set struct {
	Chains        []int64  `json:"chains,omitempty"`
	MCP           *bool    `json:"mcp,omitempty"`
	A2A           *bool    `json:"a2a,omitempty"`
	X402          *bool    `json:"x402,omitempty"`
	MinReputation *float64 `json:"minReputation,omitempty"`
	MaxReputation *float64 `json:"maxReputation,omitempty"`
	Skills        []string `json:"skills,omitempty"`
	Domains       []string `json:"domains,omitempty"`
	Mode          Mode     `json:"mode,omitempty"`
}

// Validate checks bounds, tag counts and the combinator mode.
func (s Set) Validate() error {
	if !s.Mode.IsValid() {
		return fmt.Errorf("invalid filter mode %q (want AND or OR)", s.Mode)
	}
	if err := validateReputation("minReputation", s.MinReputation); err != nil {
		return err
	}
	if err := validateReputation("maxReputation", s.MaxReputation); err != nil {
		return err
	}
	if s.MinReputation != nil && s.MaxReputation != nil && *s.MinReputation > *s.MaxReputation {
		return fmt.Errorf("minReputation %.2f exceeds maxReputation %.2f", *s.MinReputation, *s.MaxReputation)
	}
	if len(s.Skills) > MaxTagsPerGroup {
		return fmt.Errorf("too many skills (max %d)", MaxTagsPerGroup)
	}
	if len(s.Domains) > MaxTagsPerGroup {
		return fmt.Errorf("too many domains (max %d)", MaxTagsPerGroup)
	}
	for _, c := range s.Chains {
		if c <= 0 {
			return fmt.Errorf("invalid chain id %d", c)
		}
	}
	return nil
}

func validateReputation(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < MinReputation || *v > MaxReputation {
		return fmt.Errorf("%s must be between %d and %d", name, MinReputation, MaxReputation)
	}
	return nil
}

// IsEmpty reports whether the set filters nothing.
func (s Set) IsEmpty() bool {
	return len(s.Chains) == 0 && s.MCP == nil && s.A2A == nil && s.X402 == nil &&
		s.MinReputation == nil && s.MaxReputation == nil &&
		len(s.Skills) == 0 && len(s.Domains) == 0
}

// Normalized returns a copy with set-valued fields sorted and deduplicated,
// tags trimmed and the default mode folded to empty.
func (s Set) Normalized() Set {
	out := s
	if len(s.Chains) > 0 {
		out.Chains = slices.Compact(slices.Sorted(slices.Values(s.Chains)))
	}
	out.Skills = normalizeTags(s.Skills)
	out.Domains = normalizeTags(s.Domains)
	out.Mode = Mode(strings.ToUpper(string(s.Mode)))
	if out.Mode == And {
		out.Mode = ""
	}
	return out
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}
