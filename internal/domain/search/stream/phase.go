package stream

// Phase is the lifecycle state of a stream session.
type Phase string

const (
	// Idle means no session has been started, or it was cleared.
	Idle Phase = "idle"
	// Connecting means a transport was opened and no result has arrived yet.
	Connecting Phase = "connecting"
	// Streaming means at least one result has arrived on the open transport.
	Streaming Phase = "streaming"
	// Complete means the transport reported the end of the result set.
	Complete Phase = "complete"
	// Failed means the session ended with an error.
	Failed Phase = "error"
)

// IsActive reports whether a transport may be open in this phase.
func (p Phase) IsActive() bool {
	return p == Connecting || p == Streaming
}

// IsTerminal reports whether the phase ends a session.
func (p Phase) IsTerminal() bool {
	return p == Complete || p == Failed
}
