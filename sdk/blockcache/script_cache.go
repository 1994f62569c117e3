// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockcache

import (
	"github.com/ava-labs/codecache/sdk/concurrent"
)

// ScriptCache holds the scripts seen during one block, keyed by content hash.
// Writers for the same hash always produce the same script, so the last
// [Insert] simply wins.
type ScriptCache[K concurrent.Key, V any] struct {
	scripts *concurrent.Map[K, V]
	metrics *Metrics
}

func NewScriptCache[K concurrent.Key, V any](shardCount int, metrics *Metrics) *ScriptCache[K, V] {
	return &ScriptCache[K, V]{
		scripts: concurrent.NewMap[K, V](shardCount),
		metrics: metrics,
	}
}

// Insert stores [script] under [key], overwriting what was there.
func (c *ScriptCache[K, V]) Insert(key K, script V) {
	c.scripts.Put(key, script)
}

// Get returns the script stored under [key].
func (c *ScriptCache[K, V]) Get(key K) (V, bool) {
	script, ok := c.scripts.Get(key)
	c.metrics.scriptHit(ok)
	return script, ok
}

// Count is for diagnostics only.
func (c *ScriptCache[K, V]) Count() int {
	return c.scripts.Len()
}
