// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockcache

import (
	"sync"

	"github.com/ava-labs/codecache/sdk/concurrent"
)

// Fetch loads a value from durable storage. [exists] is false when the value
// does not exist there; that outcome is never cached.
type Fetch[V any] func() (value V, exists bool, err error)

// ModuleCache holds modules that no transaction in the current block
// publishes. Entries go from absent to present exactly once and are never
// invalidated while the block executes.
type ModuleCache[K concurrent.Key, V any] struct {
	modules *concurrent.Map[K, V]
	metrics *Metrics

	// globalLock serialises [Lock] so that at most one caller ever holds
	// more than one shard lock.
	globalLock sync.Mutex
}

func NewModuleCache[K concurrent.Key, V any](shardCount int, metrics *Metrics) *ModuleCache[K, V] {
	return &ModuleCache[K, V]{
		modules: concurrent.NewMap[K, V](shardCount),
		metrics: metrics,
	}
}

// Contains reports whether [key] is cached.
func (c *ModuleCache[K, V]) Contains(key K) bool {
	return c.modules.Has(key)
}

// ContainsAnd reports whether [key] is cached and its value satisfies [p].
func (c *ModuleCache[K, V]) ContainsAnd(key K, p func(V) bool) bool {
	var ok bool
	c.modules.Read(key, func(s *concurrent.Shard[K, V]) {
		v, found := s.Get(key)
		ok = found && p(v)
	})
	return ok
}

// GetOrInsertWith returns the cached value for [key]. On a miss it calls
// [fetch] once, under the shard's write lock, and caches the result if the
// value exists. If another goroutine filled the entry first, that value is
// returned and [fetch] is not called.
func (c *ModuleCache[K, V]) GetOrInsertWith(key K, fetch Fetch[V]) (V, bool, error) {
	if v, ok := c.modules.Get(key); ok {
		c.metrics.moduleHit(true)
		return v, true, nil
	}
	c.metrics.moduleHit(false)

	var (
		value  V
		exists bool
		err    error
	)
	c.modules.Write(key, func(s *concurrent.Shard[K, V]) {
		value, exists, err = getOrInsertWith(s, key, fetch, c.metrics)
	})
	return value, exists, err
}

// FilterInto appends transform(key, value) to [collector] for every entry that
// satisfies [p]. Shards are scanned one at a time, so this is not a snapshot
// when writers are active. Meant for rare whole-cache scans, not lookups.
func FilterInto[K concurrent.Key, V, T any](
	c *ModuleCache[K, V],
	collector *[]T,
	p func(K, V) bool,
	transform func(K, V) T,
) {
	c.modules.Range(func(k K, v V) bool {
		if p(k, v) {
			*collector = append(*collector, transform(k, v))
		}
		return true
	})
}

// Len returns the number of cached modules.
func (c *ModuleCache[K, V]) Len() int { return c.modules.Len() }

// Lock takes every shard lock, in shard order, and returns a view over the
// whole cache. While the view is held no other goroutine can read or write the
// cache. Callers must call [LockedModuleCache.Unlock] exactly once, as soon as
// possible.
func (c *ModuleCache[K, V]) Lock() *LockedModuleCache[K, V] {
	c.globalLock.Lock()
	c.metrics.globalLock()
	return &LockedModuleCache[K, V]{
		cache:  c,
		shards: c.modules.LockAll(),
	}
}

// LockedModuleCache is an atomic view over a [ModuleCache]. It is not safe for
// concurrent use.
type LockedModuleCache[K concurrent.Key, V any] struct {
	cache    *ModuleCache[K, V]
	shards   []*concurrent.Shard[K, V]
	released bool
}

// Get returns the cached value for [key].
func (l *LockedModuleCache[K, V]) Get(key K) (V, bool) {
	l.mustHold()
	return l.cache.modules.ShardFor(key).Get(key)
}

// Insert stores [value] for [key] if nothing is cached yet and returns the
// value that ends up cached.
func (l *LockedModuleCache[K, V]) Insert(key K, value V) V {
	l.mustHold()
	s := l.cache.modules.ShardFor(key)
	if existing, ok := s.Get(key); ok {
		return existing
	}
	s.Put(key, value)
	return value
}

// GetOrInsertWith behaves like [ModuleCache.GetOrInsertWith] within the view.
func (l *LockedModuleCache[K, V]) GetOrInsertWith(key K, fetch Fetch[V]) (V, bool, error) {
	l.mustHold()
	return getOrInsertWith(l.cache.modules.ShardFor(key), key, fetch, l.cache.metrics)
}

// Len returns the number of cached modules.
func (l *LockedModuleCache[K, V]) Len() int {
	l.mustHold()
	total := 0
	for _, s := range l.shards {
		total += s.Len()
	}
	return total
}

// Unlock releases every shard. Calling it twice panics.
func (l *LockedModuleCache[K, V]) Unlock() {
	l.mustHold()
	l.released = true
	l.cache.modules.UnlockAll()
	l.cache.globalLock.Unlock()
}

func (l *LockedModuleCache[K, V]) mustHold() {
	if l.released {
		panic("blockcache: use of module cache view after Unlock")
	}
}

// getOrInsertWith expects [s] to be write-locked by the caller.
func getOrInsertWith[K concurrent.Key, V any](s *concurrent.Shard[K, V], key K, fetch Fetch[V], m *Metrics) (V, bool, error) {
	if v, ok := s.Get(key); ok {
		return v, true, nil
	}
	m.moduleFetch()
	v, exists, err := fetch()
	if err != nil || !exists {
		return v, false, err
	}
	s.Put(key, v)
	return v, true, nil
}
