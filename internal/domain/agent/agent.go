package agent

// Protocol is an agent capability advertised in its registration.
type Protocol string

const (
	// ProtocolMCP is the Model Context Protocol endpoint.
	ProtocolMCP Protocol = "mcp"
	// ProtocolA2A is the agent-to-agent endpoint.
	ProtocolA2A Protocol = "a2a"
	// ProtocolX402 marks x402 payment support.
	ProtocolX402 Protocol = "x402"
)

// Agent is one on-chain agent record as returned by search.
// Only ID is interpreted by the streaming core; the rest is carried as-is.
type Agent struct {
	ID          string     `json:"id"`
	ChainID     int64      `json:"chainId"`
	TokenID     string     `json:"tokenId,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Image       string     `json:"image,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	Protocols   []Protocol `json:"protocols,omitempty"`
	Skills      []string   `json:"skills,omitempty"`
	Domains     []string   `json:"domains,omitempty"`
	Reputation  *float64   `json:"reputation,omitempty"`
	Score       float64    `json:"score,omitempty"`
	Active      bool       `json:"active"`
}

// Supports reports whether the agent advertises protocol p.
func (a *Agent) Supports(p Protocol) bool {
	for _, have := range a.Protocols {
		if have == p {
			return true
		}
	}
	return false
}
