package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confession-bot-backend/internal/platform/redis/redistest"
)

type snapshot struct {
	Total int64 `json:"total"`
}

func TestGetOrSet(t *testing.T) {
	ctx := context.Background()
	rdb, mr := redistest.New(t)
	c := NewCacheService(rdb)

	calls := 0
	load := func() (interface{}, error) {
		calls++
		return snapshot{Total: int64(calls * 10)}, nil
	}

	var got snapshot
	require.NoError(t, c.GetOrSet(ctx, "admin:stats", &got, time.Minute, load))
	assert.Equal(t, int64(10), got.Total)
	require.NoError(t, c.GetOrSet(ctx, "admin:stats", &got, time.Minute, load))
	assert.Equal(t, int64(10), got.Total, "served from cache")
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists("cache:admin:stats"))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, c.GetOrSet(ctx, "admin:stats", &got, time.Minute, load))
	assert.Equal(t, int64(20), got.Total, "expired entry is reloaded")

	require.NoError(t, c.Delete(ctx, "admin:stats"))
	require.NoError(t, c.GetOrSet(ctx, "admin:stats", &got, time.Minute, load))
	assert.Equal(t, 3, calls)
}

func TestGetOrSetPassesThrough(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store down")

	var nilCache *CacheService
	var got snapshot
	err := nilCache.GetOrSet(ctx, "k", &got, time.Minute, func() (interface{}, error) { return snapshot{Total: 1}, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Total)

	rdb, mr := redistest.New(t)
	c := NewCacheService(rdb)
	err = c.GetOrSet(ctx, "k", &got, time.Minute, func() (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("cache:k"), "failures are not cached")

	// zero ttl disables caching
	require.NoError(t, c.GetOrSet(ctx, "k", &got, 0, func() (interface{}, error) { return snapshot{Total: 2}, nil }))
	assert.False(t, mr.Exists("cache:k"))
}

func TestDeletePrefix(t *testing.T) {
	ctx := context.Background()
	rdb, mr := redistest.New(t)
	c := NewCacheService(rdb)

	for _, k := range []string{"leaderboard:comments:10", "leaderboard:reputation:5", "admin:stats"} {
		require.NoError(t, c.Set(ctx, k, snapshot{Total: 1}, time.Minute))
	}
	require.NoError(t, c.DeletePrefix(ctx, "leaderboard:"))
	assert.False(t, mr.Exists("cache:leaderboard:comments:10"))
	assert.False(t, mr.Exists("cache:leaderboard:reputation:5"))
	assert.True(t, mr.Exists("cache:admin:stats"))
}
