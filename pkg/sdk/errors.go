package agentdex

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/agentdex/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound      = domain.ErrNotFound
	ErrInvalidParams = domain.ErrInvalidParams
)

// ErrCacheNotConfigured is returned by cache operations on a client built
// without WithValkey or WithRedis.
var ErrCacheNotConfigured = errors.New("agentdex: cache not configured")

func wrapInvalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidParams, err)
}
