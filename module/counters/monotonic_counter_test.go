package counters

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonotonicCounter(t *testing.T) {
	counter := NewMonotonicCounter(3)

	require.True(t, counter.Set(4))
	require.False(t, counter.Set(4))
	require.False(t, counter.Set(2))
	require.Equal(t, uint64(4), counter.Value())

	require.Equal(t, uint64(5), counter.Increment())
	require.Equal(t, uint64(5), counter.Value())
}

func TestMonotonicCounter_Concurrent(t *testing.T) {
	counter := NewMonotonicCounter(0)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			counter.Set(v)
		}(uint64(i))
	}
	wg.Wait()

	require.Equal(t, uint64(100), counter.Value())
}
