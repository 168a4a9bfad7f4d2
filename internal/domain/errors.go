package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotFound signals an unknown or evicted search session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidParams signals invalid search parameters.
	ErrInvalidParams = errors.New("invalid search parameters")
	// ErrTooManySessions signals that the session limit has been reached.
	ErrTooManySessions = errors.New("too many sessions")
	// ErrStreamingDisabled signals that live streaming is switched off.
	ErrStreamingDisabled = errors.New("streaming disabled")
)
