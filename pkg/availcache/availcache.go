// Package availcache implements the TTL-bounded adapter availability
// cache (spec §4.3/§5): each adapter's last observed reachability is
// cached for a short window so repeated IsAvailable calls within a round
// don't re-probe the backend. The default backend is in-memory, modeled
// on the teacher pack's orchestration.SimpleCache; an optional
// Redis-backed Store lets the cache be shared across process instances,
// as itsneelabh-gomind does for its session and rate-limiter state.
package availcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nyxforge/concord/pkg/log"
)

// Store is the storage seam a Cache sits on top of.
type Store interface {
	Get(ctx context.Context, key string) (present bool, observedAt time.Time, ok bool)
	Set(ctx context.Context, key string, present bool, observedAt time.Time, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// Cache wraps a Store with the TTL-expiry semantics the adapter layer
// relies on: an entry older than ttl is treated as absent.
type Cache struct {
	store Store
	ttl   time.Duration
}

// New constructs a Cache with an in-memory Store and the given TTL
// (spec default: 30s).
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{store: NewMemoryStore(), ttl: ttl}
}

// NewWithStore constructs a Cache over a caller-supplied Store, e.g. a
// RedisStore for multi-instance deployments.
func NewWithStore(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{store: store, ttl: ttl}
}

// Get returns the cached value for key and whether it is still fresh.
func (c *Cache) Get(ctx context.Context, key string) (present bool, fresh bool) {
	present, observedAt, ok := c.store.Get(ctx, key)
	if !ok {
		return false, false
	}
	if time.Since(observedAt) >= c.ttl {
		return false, false
	}
	return present, true
}

// Put records a fresh observation for key.
func (c *Cache) Put(ctx context.Context, key string, present bool) {
	c.store.Set(ctx, key, present, time.Now(), c.ttl)
}

// Invalidate drops the cached entry for key, forcing the next check to
// re-probe the backend.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.store.Delete(ctx, key)
}

// Clear drops every cached entry.
func (c *Cache) Clear(ctx context.Context) {
	c.store.Clear(ctx)
}

// memoryEntry is an explicit value record, not a bare bool, so staleness
// can be judged without a second map lookup.
type memoryEntry struct {
	present    bool
	observedAt time.Time
}

// MemoryStore is the default, single-process Store backend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (bool, time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return false, time.Time{}, false
	}
	return e.present, e.observedAt, true
}

func (m *MemoryStore) Set(_ context.Context, key string, present bool, observedAt time.Time, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{present: present, observedAt: observedAt}
}

func (m *MemoryStore) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *MemoryStore) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
}

// redisRecord is the JSON payload stored under each Redis key.
type redisRecord struct {
	Present    bool      `json:"present"`
	ObservedAt time.Time `json:"observed_at"`
}

// RedisStore is a distributed Store backend for deployments running more
// than one orchestrator process against the same adapter fleet.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing Redis client. keyPrefix namespaces keys
// so the cache can share a Redis instance with other subsystems.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "concord:availcache:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (r *RedisStore) fullKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisStore) Get(ctx context.Context, key string) (bool, time.Time, bool) {
	raw, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).WithField("key", key).Warn("availability cache redis get failed")
		}
		return false, time.Time{}, false
	}
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.WithError(err).Warn("availability cache redis record corrupt")
		return false, time.Time{}, false
	}
	return rec.Present, rec.ObservedAt, true
}

func (r *RedisStore) Set(ctx context.Context, key string, present bool, observedAt time.Time, ttl time.Duration) {
	raw, err := json.Marshal(redisRecord{Present: present, ObservedAt: observedAt})
	if err != nil {
		log.WithError(err).Warn("availability cache redis marshal failed")
		return
	}
	// Double the TTL for the Redis expiry floor so clock skew between
	// instances never evicts an entry the Cache would still call fresh.
	if err := r.client.Set(ctx, r.fullKey(key), raw, ttl*2).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("availability cache redis set failed")
	}
}

func (r *RedisStore) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.fullKey(key)).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("availability cache redis delete failed")
	}
}

func (r *RedisStore) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.WithError(err).Warn("availability cache redis clear failed")
		}
	}
}

// CheckAll probes every name via check concurrently, consulting and
// updating the cache, with an aggregate deadline (spec §4.3
// checkAdaptersParallel). Entries already fresh in the cache are
// returned without re-probing.
func CheckAll(ctx context.Context, c *Cache, names []string, deadline time.Duration, check func(ctx context.Context, name string) bool) map[string]bool {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	results := make(map[string]bool, len(names))
	var toProbe []string
	for _, name := range names {
		if present, fresh := c.Get(ctx, name); fresh {
			results[name] = present
		} else {
			toProbe = append(toProbe, name)
		}
	}

	type probeResult struct {
		name    string
		present bool
	}
	out := make(chan probeResult, len(toProbe))
	for _, name := range toProbe {
		go func(name string) {
			present := check(ctx, name)
			c.Put(ctx, name, present)
			out <- probeResult{name: name, present: present}
		}(name)
	}

	for range toProbe {
		select {
		case r := <-out:
			results[r.name] = r.present
		case <-ctx.Done():
			return results
		}
	}
	return results
}
