package searchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/agentdex/internal/db"
	"github.com/kailas-cloud/agentdex/internal/domain"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
)

var keyPrefix = domain.KeyPrefix + "search:"

// store is the consumer interface for the search cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Cache stores the last known result for a search, keyed by the canonical
// form of its parameters. Writes are blind overwrites: last writer wins.
type Cache struct {
	store store
	ttl   time.Duration
}

// New creates a search cache. ttl <= 0 stores entries without expiry.
func New(s store, ttl time.Duration) *Cache {
	return &Cache{store: s, ttl: ttl}
}

// Key returns the storage key for canonical search parameters.
func Key(canonical string) string {
	h := sha256.Sum256([]byte(canonical))
	return keyPrefix + hex.EncodeToString(h[:])
}

// Write stores snap under the key for canonical.
func (c *Cache) Write(ctx context.Context, canonical string, snap stream.CacheSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode search snapshot: %w", err)
	}

	key := Key(canonical)
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		return fmt.Errorf("write search snapshot: %w", err)
	}
	return nil
}

// Read returns the cached snapshot for canonical.
// Returns domain.ErrNotFound if nothing is cached.
func (c *Cache) Read(ctx context.Context, canonical string) (stream.CacheSnapshot, error) {
	data, err := c.store.Get(ctx, Key(canonical))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return stream.CacheSnapshot{}, domain.ErrNotFound
		}
		return stream.CacheSnapshot{}, fmt.Errorf("read search snapshot: %w", err)
	}

	var snap stream.CacheSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return stream.CacheSnapshot{}, fmt.Errorf("decode search snapshot: %w", err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot for canonical.
func (c *Cache) Invalidate(ctx context.Context, canonical string) error {
	if err := c.store.Del(ctx, Key(canonical)); err != nil {
		return fmt.Errorf("invalidate search snapshot: %w", err)
	}
	return nil
}
