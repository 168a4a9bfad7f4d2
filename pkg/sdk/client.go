package agentdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/agentdex/internal/db"
	dbRedis "github.com/kailas-cloud/agentdex/internal/db/redis"
	"github.com/kailas-cloud/agentdex/internal/domain"
	"github.com/kailas-cloud/agentdex/internal/domain/search/params"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
	"github.com/kailas-cloud/agentdex/internal/repository/searchcache"
	"github.com/kailas-cloud/agentdex/internal/transport/sse"
	healthuc "github.com/kailas-cloud/agentdex/internal/usecase/health"
	"github.com/kailas-cloud/agentdex/internal/usecase/streaming"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCacheTimeout     = 2 * time.Second
)

// Internal interfaces for substitution in tests.
type searchCache interface {
	streaming.CacheWriter
	Read(ctx context.Context, canonical string) (stream.CacheSnapshot, error)
	Invalidate(ctx context.Context, canonical string) error
}

// Client is the agentdex SDK entry point.
type Client struct {
	transport streaming.Transport
	store     db.Store
	cache     searchCache
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. When a cache is configured the provided context is
// used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.baseURL == "" {
		return nil, errors.New("agentdex: base URL required (use WithBaseURL)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if cfg.driver != "" {
		s, err := createStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("agentdex: cache not ready: %w", err)
		}
		store = s
	}

	return wireClient(cfg, store, obs), nil
}

func createStore(cfg *clientConfig) (*dbRedis.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			Standalone: cfg.standalone,
		})
		if err != nil {
			return nil, fmt.Errorf("agentdex: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("agentdex: unknown driver %q", cfg.driver)
	}
}

func wireClient(cfg *clientConfig, store db.Store, obs *observer) *Client {
	transport := sse.New(sse.Config{
		BaseURL:        cfg.baseURL,
		Path:           cfg.streamPath,
		APIKey:         cfg.apiKey,
		ConnectTimeout: cfg.connectTimeout,
	}, cfg.httpClient, zap.NewNop())

	c := &Client{transport: transport, store: store, obs: obs}
	if store != nil {
		c.cache = searchcache.New(store, cfg.cacheTTL)
		c.healthSvc = healthuc.New(store, transport)
	} else {
		c.healthSvc = healthuc.New(nil, transport)
	}
	return c
}

// Close releases all resources. Searches created by the client keep working
// but stop mirroring into the cache.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Search creates a search bound to query and filters. The search does not
// connect until Start is called.
func (c *Client) Search(query string, filters Filters) (*Search, error) {
	p := params.Params{Query: query, Filters: filters}
	if err := p.Validate(); err != nil {
		return nil, wrapInvalid(err)
	}

	var opts []streaming.Option
	if c.cache != nil {
		opts = append(opts, streaming.WithListener(streaming.NewCacheSync(c.cache, defaultCacheTimeout, nil)))
	}
	return &Search{
		ctrl: streaming.New(c.transport, p, opts...),
		obs:  c.obs,
	}, nil
}

// Cached returns the last result set any process mirrored for query and
// filters. Returns ErrNotFound when nothing is cached.
func (c *Client) Cached(ctx context.Context, query string, filters Filters) (_ CachedResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("cache.read", start, err) }()

	if c.cache == nil {
		return CachedResult{}, ErrCacheNotConfigured
	}
	p := params.Params{Query: query, Filters: filters}
	snap, err := c.cache.Read(ctx, p.Canonical())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return CachedResult{}, ErrNotFound
		}
		return CachedResult{}, fmt.Errorf("read cache: %w", err)
	}
	return snap, nil
}

// Invalidate drops the cached result set for query and filters.
func (c *Client) Invalidate(ctx context.Context, query string, filters Filters) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("cache.invalidate", start, err) }()

	if c.cache == nil {
		return ErrCacheNotConfigured
	}
	p := params.Params{Query: query, Filters: filters}
	if err = c.cache.Invalidate(ctx, p.Canonical()); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	return nil
}

// Ping checks cache connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.store == nil {
		return ErrCacheNotConfigured
	}
	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
