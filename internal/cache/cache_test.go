package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	c := New(1024)
	c.Insert(Key{FileNum: 1, Offset: 0}, "hello", 5)
	v, ok := c.Get(Key{FileNum: 1, Offset: 0})
	require.True(t, ok)
	require.Equal(t, "hello", v)

	_, ok = c.Get(Key{FileNum: 1, Offset: 1})
	require.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(20)
	c.Insert(Key{Offset: 1}, "a", 10)
	c.Insert(Key{Offset: 2}, "b", 10)
	// Touch 1 so 2 becomes the LRU entry.
	_, _ = c.Get(Key{Offset: 1})
	c.Insert(Key{Offset: 3}, "c", 10)

	_, ok := c.Get(Key{Offset: 2})
	require.False(t, ok, "least recently used entry should have been evicted")
	_, ok = c.Get(Key{Offset: 1})
	require.True(t, ok)
	_, ok = c.Get(Key{Offset: 3})
	require.True(t, ok)
}

func TestGetOrLoadDeduplicatesConcurrentMisses(t *testing.T) {
	c := New(1024)
	var loads atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(Key{Offset: 9}, func() (interface{}, int64, error) {
				loads.Add(1)
				return "loaded", 6, nil
			})
			require.NoError(t, err)
			require.Equal(t, "loaded", v)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), loads.Load())
	m := c.Metrics()
	require.Equal(t, 1, m.Entries)
}
