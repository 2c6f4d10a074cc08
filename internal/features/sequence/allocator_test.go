package sequence

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confession-bot-backend/internal/platform/redis/redistest"
)

func TestNextStartsAtOne(t *testing.T) {
	rdb, _ := redistest.New(t)
	a := NewAllocator(rdb)
	ctx := context.Background()

	cur, err := a.Current(ctx, "fresh")
	require.NoError(t, err)
	assert.Zero(t, cur)

	n, err := a.Next(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = a.Next(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = a.Next(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counters are independent")
}

func TestNextConcurrent(t *testing.T) {
	rdb, _ := redistest.New(t)
	a := NewAllocator(rdb)
	ctx := context.Background()

	const n = 50
	var (
		mu  sync.Mutex
		got []int64
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := a.Next(ctx, ConfessionCounter)
			assert.NoError(t, err)
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, got, n)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		assert.Equal(t, int64(i+1), v)
	}
}
