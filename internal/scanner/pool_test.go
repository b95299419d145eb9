package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach_BoundsConcurrency(t *testing.T) {
	items := make([]int, 40)
	for i := range items {
		items[i] = i
	}

	var inFlight, peak int32
	var mu sync.Mutex
	seen := map[int]bool{}

	err := ForEach(context.Background(), 4, items, func(i int) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)

		mu.Lock()
		seen[i] = true
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Len(t, seen, 40)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestForEach_WidthOneIsSequential(t *testing.T) {
	var inFlight, peak int32
	err := ForEach(context.Background(), 1, []int{1, 2, 3}, func(int) {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, n)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	})

	require.NoError(t, err)
	assert.Equal(t, int32(1), peak)
}

func TestForEach_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := ForEach(ctx, 2, []int{1, 2, 3}, func(int) { atomic.AddInt32(&calls, 1) })
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls)
}

func TestForEach_EmptyItems(t *testing.T) {
	err := ForEach(context.Background(), 8, []string{}, func(string) { t.Fatal("unexpected call") })
	assert.NoError(t, err)
}
