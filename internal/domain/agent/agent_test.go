package agent

import (
	"encoding/json"
	"testing"
)

func TestSupports(t *testing.T) {
	a := Agent{ID: "8453:12", Protocols: []Protocol{ProtocolMCP, ProtocolX402}}

	if !a.Supports(ProtocolMCP) {
		t.Error("expected MCP support")
	}
	if a.Supports(ProtocolA2A) {
		t.Error("unexpected A2A support")
	}
}

func TestAgent_DecodeBackendPayload(t *testing.T) {
	raw := `{"id":"1:7","chainId":1,"name":"scout","protocols":["a2a"],"reputation":87.5,"active":true}`

	var a Agent
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.ID != "1:7" || a.ChainID != 1 || a.Name != "scout" {
		t.Fatalf("unexpected agent: %+v", a)
	}
	if a.Reputation == nil || *a.Reputation != 87.5 {
		t.Fatalf("expected reputation 87.5, got %v", a.Reputation)
	}
	if !a.Supports(ProtocolA2A) {
		t.Error("expected A2A support")
	}
}
