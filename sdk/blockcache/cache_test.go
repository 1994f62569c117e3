// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/codecache/sdk/utils"
)

type key string

func (k key) Bytes() []byte { return []byte(k) }

type module struct {
	name     string
	verified bool
}

func found(m *module) Fetch[*module] {
	return func() (*module, bool, error) { return m, true, nil }
}

func TestScriptCache(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	metrics, err := NewMetrics("test", prometheus.NewRegistry())
	require.NoError(err)
	c := NewScriptCache[key, string](4, metrics)

	_, ok := c.Get("a")
	assert.False(ok)

	c.Insert("a", "deserialized")
	c.Insert("b", "deserialized")
	c.Insert("a", "verified")

	v, ok := c.Get("a")
	assert.True(ok)
	assert.Equal("verified", v)
	assert.Equal(2, c.Count())

	assert.Equal(1.0, testutil.ToFloat64(metrics.scriptHits))
	assert.Equal(1.0, testutil.ToFloat64(metrics.scriptMisses))
}

func TestGetOrInsertWithHitSkipsFetch(t *testing.T) {
	require := require.New(t)

	c := NewModuleCache[key, *module](4, nil)
	m := &module{name: "coin"}
	v, ok, err := c.GetOrInsertWith("coin", found(m))
	require.NoError(err)
	require.True(ok)
	require.Same(m, v)

	v, ok, err = c.GetOrInsertWith("coin", func() (*module, bool, error) {
		t.Fatal("fetch called on a cached key")
		return nil, false, nil
	})
	require.NoError(err)
	require.True(ok)
	require.Same(m, v)
	require.True(c.Contains("coin"))
}

func TestGetOrInsertWithDoesNotCacheMissing(t *testing.T) {
	require := require.New(t)

	c := NewModuleCache[key, *module](4, nil)
	calls := 0
	missing := func() (*module, bool, error) {
		calls++
		return nil, false, nil
	}

	for i := 0; i < 3; i++ {
		v, ok, err := c.GetOrInsertWith("ghost", missing)
		require.NoError(err)
		require.False(ok)
		require.Nil(v)
	}
	require.Equal(3, calls)
	require.False(c.Contains("ghost"))
	require.Zero(c.Len())
}

func TestGetOrInsertWithPropagatesFetchError(t *testing.T) {
	require := require.New(t)

	errStorage := errors.New("storage unavailable")
	c := NewModuleCache[key, *module](4, nil)
	_, ok, err := c.GetOrInsertWith("coin", func() (*module, bool, error) {
		return nil, false, errStorage
	})
	require.ErrorIs(err, errStorage)
	require.False(ok)
	require.False(c.Contains("coin"))

	m := &module{name: "coin"}
	v, ok, err := c.GetOrInsertWith("coin", found(m))
	require.NoError(err)
	require.True(ok)
	require.Same(m, v)
}

func TestGetOrInsertWithConcurrentFetchOnce(t *testing.T) {
	require := require.New(t)

	metrics, err := NewMetrics("", prometheus.NewRegistry())
	require.NoError(err)
	c := NewModuleCache[key, *module](2, metrics)

	const keys = 8
	var fetches [keys]atomic.Int64
	results := make([][keys]*module, 32)

	err = utils.RunConcurrently(context.Background(), len(results), func(_ context.Context, worker int) error {
		for i := 0; i < keys; i++ {
			i := i
			v, ok, err := c.GetOrInsertWith(key(fmt.Sprint(i)), func() (*module, bool, error) {
				fetches[i].Add(1)
				return &module{name: fmt.Sprint(i)}, true, nil
			})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("module %d missing", i)
			}
			results[worker][i] = v
		}
		return nil
	})
	require.NoError(err)

	for i := 0; i < keys; i++ {
		require.Equal(int64(1), fetches[i].Load(), "key %d", i)
		for w := range results {
			require.Same(results[0][i], results[w][i])
		}
	}
	require.Equal(float64(keys), testutil.ToFloat64(metrics.moduleFetches))
}

func TestContainsAnd(t *testing.T) {
	assert := assert.New(t)

	c := NewModuleCache[key, *module](4, nil)
	_, _, err := c.GetOrInsertWith("a", found(&module{name: "a", verified: true}))
	assert.NoError(err)
	_, _, err = c.GetOrInsertWith("b", found(&module{name: "b"}))
	assert.NoError(err)

	isVerified := func(m *module) bool { return m.verified }
	assert.True(c.ContainsAnd("a", isVerified))
	assert.False(c.ContainsAnd("b", isVerified))
	assert.False(c.ContainsAnd("c", isVerified))
}

func TestFilterInto(t *testing.T) {
	require := require.New(t)

	c := NewModuleCache[key, *module](4, nil)
	for _, name := range []string{"0x1::coin", "0x1::account", "0x2::dex"} {
		_, _, err := c.GetOrInsertWith(key(name), found(&module{name: name}))
		require.NoError(err)
	}

	var names []string
	FilterInto(c, &names,
		func(k key, _ *module) bool { return k[:3] == "0x1" },
		func(_ key, m *module) string { return m.name },
	)
	sort.Strings(names)
	require.Equal([]string{"0x1::account", "0x1::coin"}, names)
}

func TestLockedViewIsAtomic(t *testing.T) {
	require := require.New(t)

	c := NewModuleCache[key, *module](4, nil)
	_, _, err := c.GetOrInsertWith("old", found(&module{name: "old"}))
	require.NoError(err)

	view := c.Lock()

	type result struct {
		m   *module
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, _, err := c.GetOrInsertWith("new", func() (*module, bool, error) {
			return &module{name: "fetched-after-unlock"}, true, nil
		})
		done <- result{m, err}
	}()

	select {
	case <-done:
		require.FailNow("reader got through a held global lock")
	case <-time.After(50 * time.Millisecond):
	}

	inserted := view.Insert("new", &module{name: "inserted-under-lock"})
	require.Equal("inserted-under-lock", inserted.name)
	require.Equal(2, view.Len())
	existing := view.Insert("old", &module{name: "replacement"})
	require.Equal("old", existing.name)
	view.Unlock()

	res := <-done
	require.NoError(res.err)
	require.Equal("inserted-under-lock", res.m.name)
}

func TestLockedViewGetOrInsertWith(t *testing.T) {
	require := require.New(t)

	c := NewModuleCache[key, *module](4, nil)
	view := c.Lock()
	m, ok, err := view.GetOrInsertWith("a", found(&module{name: "a"}))
	require.NoError(err)
	require.True(ok)
	got, ok := view.Get("a")
	require.True(ok)
	require.Same(m, got)
	view.Unlock()

	require.True(c.Contains("a"))
	require.Panics(func() { view.Unlock() })
	require.Panics(func() { view.Get("a") })

	// The cache is usable and lockable again.
	c.Lock().Unlock()
}
