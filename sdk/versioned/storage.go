// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package versioned

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/codecache/sdk/concurrent"
)

const versionsDegree = 8

var (
	errNoEntry = errors.New("no versioned entry for key")
	errNoSlot  = errors.New("no write recorded at index")
)

// Entry is a module as stored in versioned storage.
type Entry interface {
	// IsVerified reports whether the module passed full verification, as
	// opposed to only being deserialized.
	IsVerified() bool
}

// Fetch loads the pre-block value from durable storage. [exists] is false
// when storage has no such module.
type Fetch[V any] func() (value V, exists bool, err error)

// slot is one version of a key. A slot with exists == false at an in-block
// index is a pending write; at the base index it records that storage has no
// such module.
type slot[V Entry] struct {
	index  ShiftedTxnIndex
	value  V
	exists bool
}

func slotLess[V Entry](a, b slot[V]) bool { return a.index < b.index }

// versionedEntry holds every version of one key. Its lock gives per-key
// exclusivity for the first storage fetch.
type versionedEntry[V Entry] struct {
	lock     sync.RWMutex
	versions *btree.BTreeG[slot[V]]
}

func newVersionedEntry[V Entry]() *versionedEntry[V] {
	return &versionedEntry[V]{
		versions: btree.NewG[slot[V]](versionsDegree, slotLess[V]),
	}
}

// get returns the version with the greatest index strictly below the one
// transaction [reader] would write at. Must hold [e.lock].
func (e *versionedEntry[V]) get(reader TxnIndex) (Read[V], bool) {
	var (
		found slot[V]
		ok    bool
	)
	// Shift(reader)-1 is the greatest index strictly below Shift(reader).
	pivot := slot[V]{index: Shift(reader) - 1}
	e.versions.DescendLessOrEqual(pivot, func(s slot[V]) bool {
		found, ok = s, true
		return false
	})
	switch {
	case !ok:
		return Read[V]{}, false
	case !found.exists:
		return doesNotExist[V](), true
	default:
		return versionedRead(found.index, found.value), true
	}
}

// Storage is the multi-version store of module writes for one block. A
// transaction at index i only ever observes the write with the greatest index
// below i.
//
// Precondition violations (publishing or removing a write that was never
// recorded) indicate a scheduler bug and panic.
type Storage[K concurrent.Key, V Entry] struct {
	entries *concurrent.Map[K, *versionedEntry[V]]
}

func NewStorage[K concurrent.Key, V Entry](shardCount int) *Storage[K, V] {
	return &Storage[K, V]{
		entries: concurrent.NewMap[K, *versionedEntry[V]](shardCount),
	}
}

func (s *Storage[K, V]) entryOrCreate(key K) *versionedEntry[V] {
	if e, ok := s.entries.Get(key); ok {
		return e
	}
	var e *versionedEntry[V]
	s.entries.Write(key, func(sh *concurrent.Shard[K, *versionedEntry[V]]) {
		var ok bool
		if e, ok = sh.Get(key); !ok {
			e = newVersionedEntry[V]()
			sh.Put(key, e)
		}
	})
	return e
}

func (s *Storage[K, V]) mustEntry(key K, op string, idx TxnIndex) *versionedEntry[V] {
	e, ok := s.entries.Get(key)
	if !ok {
		violation(op, key, idx, errNoEntry)
	}
	return e
}

// Get returns what transaction [idx] sees for [key]. It never touches
// storage: if nothing is recorded below [idx], the module does not exist as
// far as this store knows. Use [GetOrElse] to fall back to storage.
func (s *Storage[K, V]) Get(key K, idx TxnIndex) Read[V] {
	e, ok := s.entries.Get(key)
	if !ok {
		return doesNotExist[V]()
	}
	e.lock.RLock()
	defer e.lock.RUnlock()

	if r, ok := e.get(idx); ok {
		return r
	}
	return doesNotExist[V]()
}

// GetOrElse is like [Get], but when no version below [idx] exists it calls
// [fetch] to load the base version and records it at [BaseIndex]. Concurrent
// first reads of the same key call [fetch] once; the others see its result.
// Fetch errors are returned and nothing is recorded.
func (s *Storage[K, V]) GetOrElse(key K, idx TxnIndex, fetch Fetch[V]) (Read[V], error) {
	e := s.entryOrCreate(key)

	e.lock.RLock()
	r, ok := e.get(idx)
	e.lock.RUnlock()
	if ok {
		return r, nil
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	if r, ok := e.get(idx); ok {
		return r, nil
	}

	v, exists, err := fetch()
	if err != nil {
		return Read[V]{}, err
	}
	e.versions.ReplaceOrInsert(slot[V]{index: BaseIndex, value: v, exists: exists})
	if !exists {
		return doesNotExist[V](), nil
	}
	return versionedRead(BaseIndex, v), nil
}

// WritePending records that transaction [idx] is publishing [key]. Until the
// write is published, transactions above [idx] see the module as missing
// rather than falling through to an older version.
func (s *Storage[K, V]) WritePending(key K, idx TxnIndex) {
	e := s.entryOrCreate(key)

	e.lock.Lock()
	defer e.lock.Unlock()

	e.versions.ReplaceOrInsert(slot[V]{index: Shift(idx)})
}

// WritePublished makes [value] the visible write of transaction [idx]. The
// write must have been recorded with [WritePending] first.
func (s *Storage[K, V]) WritePublished(key K, idx TxnIndex, value V) {
	e := s.mustEntry(key, "write published", idx)

	e.lock.Lock()
	defer e.lock.Unlock()

	if _, ok := e.versions.Get(slot[V]{index: Shift(idx)}); !ok {
		violation("write published", key, idx, errNoSlot)
	}
	e.versions.ReplaceOrInsert(slot[V]{index: Shift(idx), value: value, exists: true})
}

// WriteIfNotVerified replaces the write of committed transaction [idx] with
// [value] unless the stored module is already verified. A verified module is
// never swapped for another one.
func (s *Storage[K, V]) WriteIfNotVerified(key K, idx TxnIndex, value V) {
	e := s.mustEntry(key, "write if not verified", idx)

	e.lock.Lock()
	defer e.lock.Unlock()

	existing, ok := e.versions.Get(slot[V]{index: Shift(idx)})
	if !ok {
		violation("write if not verified", key, idx, errNoSlot)
	}
	if existing.exists && existing.value.IsVerified() {
		return
	}
	e.versions.ReplaceOrInsert(slot[V]{index: Shift(idx), value: value, exists: true})
}

// UpgradeIf replaces the published write of transaction [idx] with [value]
// if [unchanged] still holds for the stored value. It reports whether the
// write was replaced. Unlike [WriteIfNotVerified] it may run while the writer
// can still be aborted or re-executed: if the write was removed, is pending
// again, or was already verified, nothing changes.
func (s *Storage[K, V]) UpgradeIf(key K, idx TxnIndex, value V, unchanged func(current V) bool) bool {
	e, ok := s.entries.Get(key)
	if !ok {
		return false
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	existing, ok := e.versions.Get(slot[V]{index: Shift(idx)})
	if !ok || !existing.exists || existing.value.IsVerified() || !unchanged(existing.value) {
		return false
	}
	e.versions.ReplaceOrInsert(slot[V]{index: Shift(idx), value: value, exists: true})
	return true
}

// Remove deletes the write of transaction [idx], pending or published. Used
// when the transaction aborts or is re-executed.
func (s *Storage[K, V]) Remove(key K, idx TxnIndex) {
	e := s.mustEntry(key, "remove", idx)

	e.lock.Lock()
	defer e.lock.Unlock()

	if _, ok := e.versions.Delete(slot[V]{index: Shift(idx)}); !ok {
		violation("remove", key, idx, errNoSlot)
	}
}

// Contains reports whether any version of [key], including a pending write or
// a recorded base value, exists in this block.
func (s *Storage[K, V]) Contains(key K) bool {
	e, ok := s.entries.Get(key)
	if !ok {
		return false
	}
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.versions.Len() > 0
}

// Len returns the number of keys with a versioned entry.
func (s *Storage[K, V]) Len() int { return s.entries.Len() }

// ForEachLatestWrite calls [f] with the highest in-block write of every key.
// Keys whose only version is the base value are skipped; [exists] is false
// for a write that is still pending. It must not run concurrently with
// writers, and [f] must not call back into the storage.
func (s *Storage[K, V]) ForEachLatestWrite(f func(key K, idx TxnIndex, value V, exists bool)) {
	s.entries.Range(func(key K, e *versionedEntry[V]) bool {
		e.lock.RLock()
		latest, ok := e.versions.Max()
		e.lock.RUnlock()
		if !ok {
			return true
		}
		if idx, ok := latest.index.TxnIndex(); ok {
			f(key, idx, latest.value, latest.exists)
		}
		return true
	})
}

func violation[K concurrent.Key](op string, key K, idx TxnIndex, err error) {
	log.Crit("versioned storage precondition violated",
		"op", op,
		"key", fmt.Sprintf("%x", key.Bytes()),
		"txn", idx,
		"err", err,
	)
	panic(fmt.Errorf("versioned: %s of key %x at txn %d: %w", op, key.Bytes(), idx, err))
}
