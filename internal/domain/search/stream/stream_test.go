package stream

import (
	"encoding/json"
	"testing"

	"github.com/kailas-cloud/agentdex/internal/domain/agent"
)

func TestPhase(t *testing.T) {
	tests := []struct {
		phase            Phase
		active, terminal bool
	}{
		{Idle, false, false},
		{Connecting, true, false},
		{Streaming, true, false},
		{Complete, false, true},
		{Failed, false, true},
	}
	for _, tt := range tests {
		if got := tt.phase.IsActive(); got != tt.active {
			t.Errorf("%s.IsActive() = %v", tt.phase, got)
		}
		if got := tt.phase.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v", tt.phase, got)
		}
	}
}

func TestNewCacheSnapshot_Total(t *testing.T) {
	items := []agent.Agent{{ID: "a"}, {ID: "b"}}

	tests := []struct {
		name string
		meta *Metadata
		want int
	}{
		{"no metadata", nil, 2},
		{"zero estimate", &Metadata{TotalExpected: 0}, 2},
		{"engine estimate", &Metadata{TotalExpected: 10}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewCacheSnapshot(items, tt.meta)
			if snap.Total != tt.want {
				t.Errorf("Total = %d, want %d", snap.Total, tt.want)
			}
			if snap.HasMore || snap.NextCursor != nil {
				t.Error("streamed snapshots never paginate")
			}
		})
	}
}

func TestCacheSnapshot_JSON(t *testing.T) {
	data, err := json.Marshal(NewCacheSnapshot(nil, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"items":[],"total":0,"hasMore":false}` {
		t.Errorf("unexpected encoding %s", data)
	}
}

func TestSnapshot_Accessors(t *testing.T) {
	s := Snapshot{Phase: Streaming, Results: []agent.Agent{{ID: "a"}}}
	if !s.IsStreaming() || s.ResultCount() != 1 {
		t.Fatalf("unexpected accessors for %+v", s)
	}
	if _, ok := s.ExpectedTotal(); ok {
		t.Error("no metadata means no expected total")
	}
	s.Metadata = &Metadata{TotalExpected: 5}
	if n, ok := s.ExpectedTotal(); !ok || n != 5 {
		t.Errorf("ExpectedTotal() = %d, %v", n, ok)
	}
}

func TestError_Error(t *testing.T) {
	e := &Error{Code: CodeEmptyQuery, Message: "search query is empty"}
	if e.Error() != "EMPTY_QUERY: search query is empty" {
		t.Errorf("Error() = %q", e.Error())
	}
}
