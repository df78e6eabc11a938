// Package cache implements the fingerprint cache: a generic key→value store
// with per-entry expiry and single-flight loading.
//
// Entries are addressed by deterministic request fingerprints (see
// domain.Fingerprint) and are valid for [StoredAt, ExpiresAt): an entry read
// at exactly its expiry time is a miss and triggers a reload. Concurrent
// GetOrLoad calls for the same fingerprint share one loader invocation; a
// failed load is propagated to every caller that joined it and nothing is
// stored, so the next call retries (no negative caching).
//
// The single-flight guarantee is per-process. The SQLite store can be shared
// by multiple processes, but the table provides no loader election, so two
// processes racing on the same fingerprint may both call the loader; the
// last upsert wins. This is the documented relaxation for shared stores.
//
// A failing backing store never fails the caller: reads and writes degrade
// to direct uncached loads, on the grounds that staleness or repeated
// upstream calls are both preferable to unavailability.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
	"github.com/couchcryptid/disaster-signal-hub/internal/observability"
)

// Cache is a fingerprint-keyed TTL cache over a Store. V must be
// JSON-serializable; values round-trip through the store as JSON.
type Cache[V any] struct {
	store   Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	group   singleflight.Group
}

// New creates a Cache over the given store.
func New[V any](store Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Cache[V] {
	return &Cache[V]{
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// GetOrLoad returns the cached value for fingerprint, or invokes loader and
// stores its result for ttl. The boolean reports whether the value came from
// the cache. All concurrent callers for one fingerprint observe the result of
// exactly one loader invocation.
func (c *Cache[V]) GetOrLoad(ctx context.Context, fingerprint string, ttl time.Duration, loader func(context.Context) (V, error)) (V, bool, error) {
	if value, ok := c.lookup(ctx, fingerprint); ok {
		return value, true, nil
	}

	result, err, shared := c.group.Do(fingerprint, func() (any, error) {
		// A load that finished between our miss and this call already
		// stored a fresh entry; serve it instead of going upstream again.
		if value, ok := c.lookup(ctx, fingerprint); ok {
			return flightResult[V]{value: value, cached: true}, nil
		}

		value, err := loader(ctx)
		if err != nil {
			c.metrics.CacheLoads.WithLabelValues("error").Inc()
			return nil, err
		}
		c.metrics.CacheLoads.WithLabelValues("success").Inc()
		c.storeEntry(ctx, fingerprint, ttl, value)
		return flightResult[V]{value: value}, nil
	})
	if shared {
		c.metrics.CacheLoadsShared.Inc()
	}
	if err != nil {
		var zero V
		return zero, false, err
	}
	out := result.(flightResult[V])
	return out.value, out.cached, nil
}

// flightResult carries a loaded value together with whether it was served
// from the store, so the cached flag survives the single-flight boundary.
type flightResult[V any] struct {
	value  V
	cached bool
}

// Invalidate forces the next read for fingerprint to miss. An in-flight load
// still completes for its waiters, but later calls start a fresh one.
func (c *Cache[V]) Invalidate(ctx context.Context, fingerprint string) {
	c.group.Forget(fingerprint)
	if err := c.store.Delete(ctx, fingerprint); err != nil {
		c.degrade(&domain.CacheStoreError{Op: "delete", Err: err})
	}
}

// RunSweeper eagerly removes expired entries every interval until ctx is
// cancelled. Expired entries are otherwise removed lazily on read.
func (c *Cache[V]) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			removed, err := c.store.Sweep(ctx, c.clock.Now())
			if err != nil {
				c.degrade(&domain.CacheStoreError{Op: "sweep", Err: err})
				continue
			}
			if removed > 0 {
				c.metrics.CacheSweeps.Add(float64(removed))
				c.logger.Debug("cache sweep removed expired entries", "removed", removed)
			}
		}
	}
}

// Ready reports whether the backing store is reachable.
func (c *Cache[V]) Ready(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// lookup reads the store and applies the expiry rule. Store failures and
// undecodable values are treated as misses.
func (c *Cache[V]) lookup(ctx context.Context, fingerprint string) (V, bool) {
	var zero V

	entry, ok, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		c.degrade(&domain.CacheStoreError{Op: "get", Err: err})
		return zero, false
	}
	if !ok {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return zero, false
	}
	if !entry.ExpiresAt.After(c.clock.Now()) {
		c.metrics.CacheLookups.WithLabelValues("expired").Inc()
		if err := c.store.Delete(ctx, fingerprint); err != nil {
			c.degrade(&domain.CacheStoreError{Op: "delete", Err: err})
		}
		return zero, false
	}

	var value V
	if err := json.Unmarshal(entry.Value, &value); err != nil {
		c.logger.Warn("cache entry undecodable, discarding", "fingerprint", fingerprint, "error", err)
		if err := c.store.Delete(ctx, fingerprint); err != nil {
			c.degrade(&domain.CacheStoreError{Op: "delete", Err: err})
		}
		return zero, false
	}

	c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return value, true
}

func (c *Cache[V]) storeEntry(ctx context.Context, fingerprint string, ttl time.Duration, value V) {
	// ExpiresAt must be strictly after StoredAt; a non-positive TTL means
	// the caller wants the load but not the entry.
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value not serializable, serving uncached", "fingerprint", fingerprint, "error", err)
		return
	}

	now := c.clock.Now()
	entry := Entry{
		Key:       fingerprint,
		Value:     data,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := c.store.Put(ctx, entry); err != nil {
		c.degrade(&domain.CacheStoreError{Op: "put", Err: err})
	}
}

// degrade records a store failure without surfacing it to the caller.
func (c *Cache[V]) degrade(err *domain.CacheStoreError) {
	c.metrics.CacheStoreFailures.Inc()
	c.logger.Error("cache store degraded", "op", err.Op, "error", err.Err)
}
