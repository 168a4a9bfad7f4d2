package streaming

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
	"github.com/kailas-cloud/agentdex/internal/metrics"
)

// CacheSync mirrors controller progress into the shared search cache so that
// readers of the last known result for a query see live results.
// It only writes; whatever else is stored under the key is overwritten.
type CacheSync struct {
	cache   CacheWriter
	timeout time.Duration
	logger  *zap.Logger
}

var _ Listener = (*CacheSync)(nil)

// NewCacheSync creates a synchronizer. timeout bounds each write (0 = none).
func NewCacheSync(cache CacheWriter, timeout time.Duration, logger *zap.Logger) *CacheSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheSync{cache: cache, timeout: timeout, logger: logger}
}

// OnUpdate writes the snapshot for u. Failures are logged, never propagated:
// the session outlives a cache outage.
func (s *CacheSync) OnUpdate(u Update) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snap := stream.NewCacheSnapshot(u.Results, u.Metadata)
	if err := s.cache.Write(ctx, u.Key, snap); err != nil {
		metrics.SearchCacheWritesTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Failed to write search snapshot",
			zap.String("reason", string(u.Reason)),
			zap.Int("items", len(snap.Items)),
			zap.Error(err),
		)
		return
	}
	metrics.SearchCacheWritesTotal.WithLabelValues("ok").Inc()
}
