package health

import "context"

// CachePinger checks search cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks search backend availability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
