package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocReturnsStableDisjointSlices(t *testing.T) {
	a := New()
	x := a.AllocCopy([]byte("hello"))
	y := a.AllocCopy([]byte("world"))
	require.Equal(t, "hello", string(x))
	require.Equal(t, "world", string(y))
	require.EqualValues(t, 10, a.Size())
}

func TestAllocConcurrentIsSafe(t *testing.T) {
	a := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Alloc(16)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1600, a.Size())
}
