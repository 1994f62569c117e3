// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package concurrent

import (
	"sync"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sys/cpu"
)

// DefaultShardCount is the number of shards used when a caller asks for zero.
const DefaultShardCount = 16

// Key is anything that can be placed in a sharded map. [Bytes] must be stable
// for the lifetime of the key since it selects the shard.
type Key interface {
	comparable
	Bytes() []byte
}

// Shard is one independently lockable partition of a [Map].
// Shards sit next to each other in a slice, so each one is padded out to its
// own cache line.
type Shard[K Key, V any] struct {
	_ cpu.CacheLinePad

	lock    sync.RWMutex
	entries map[K]V

	_ cpu.CacheLinePad
}

// Get must be called with the shard lock held (read or write).
func (s *Shard[K, V]) Get(key K) (V, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// Put must be called with the shard write lock held.
func (s *Shard[K, V]) Put(key K, value V) { s.entries[key] = value }

// Len must be called with the shard lock held (read or write).
func (s *Shard[K, V]) Len() int { return len(s.entries) }

// Map partitions keys over a fixed set of shards so that operations on
// unrelated keys don't contend on the same lock.
type Map[K Key, V any] struct {
	shards []Shard[K, V]
	mask   uint64
}

// NewMap returns an empty map with [shardCount] shards, rounded up to the next
// power of two.
func NewMap[K Key, V any](shardCount int) *Map[K, V] {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	n := 1
	for n < shardCount {
		n <<= 1
	}
	m := &Map[K, V]{
		shards: make([]Shard[K, V], n),
		mask:   uint64(n - 1),
	}
	for i := range m.shards {
		m.shards[i].entries = make(map[K]V)
	}
	return m
}

// ShardCount returns the number of shards backing the map.
func (m *Map[K, V]) ShardCount() int { return len(m.shards) }

// ShardFor returns the shard [key] belongs to.
func (m *Map[K, V]) ShardFor(key K) *Shard[K, V] {
	return &m.shards[murmur3.Sum64(key.Bytes())&m.mask]
}

// Get returns the value stored for [key] under the shard's read lock.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.ShardFor(key)
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.Get(key)
}

// Put stores [value] for [key], replacing any previous value.
func (m *Map[K, V]) Put(key K, value V) {
	s := m.ShardFor(key)
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Put(key, value)
}

// Has reports whether [key] has a value.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Read runs [f] with [key]'s shard read-locked.
func (m *Map[K, V]) Read(key K, f func(s *Shard[K, V])) {
	s := m.ShardFor(key)
	s.lock.RLock()
	defer s.lock.RUnlock()
	f(s)
}

// Write runs [f] with [key]'s shard write-locked.
func (m *Map[K, V]) Write(key K, f func(s *Shard[K, V])) {
	s := m.ShardFor(key)
	s.lock.Lock()
	defer s.lock.Unlock()
	f(s)
}

// Len returns the number of entries. Shards are counted one at a time, so the
// result is not a snapshot when writers are active.
func (m *Map[K, V]) Len() int {
	total := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.lock.RLock()
		total += len(s.entries)
		s.lock.RUnlock()
	}
	return total
}

// Range calls [f] for every entry, one shard at a time, holding that shard's
// read lock. [f] must not call back into the map. Iteration stops when [f]
// returns false.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.lock.RLock()
		for k, v := range s.entries {
			if !f(k, v) {
				s.lock.RUnlock()
				return
			}
		}
		s.lock.RUnlock()
	}
}

// LockAll write-locks every shard in index order and returns the shards. It is
// the only operation that holds more than one shard lock at once, and callers
// must serialise their calls to it. Release with [UnlockAll].
func (m *Map[K, V]) LockAll() []*Shard[K, V] {
	locked := make([]*Shard[K, V], len(m.shards))
	for i := range m.shards {
		m.shards[i].lock.Lock()
		locked[i] = &m.shards[i]
	}
	return locked
}

// UnlockAll releases locks taken by [LockAll], in reverse order.
func (m *Map[K, V]) UnlockAll() {
	for i := len(m.shards) - 1; i >= 0; i-- {
		m.shards[i].lock.Unlock()
	}
}
