package abuse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confession-bot-backend/internal/platform/redis/redistest"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newGuard(t *testing.T) (*Guard, *fakeClock) {
	rdb, _ := redistest.New(t)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewGuard(rdb, WithClock(clock.Now)), clock
}

func TestCooldown(t *testing.T) {
	ctx := context.Background()
	g, clock := newGuard(t)

	ok, err := g.CheckCooldown(ctx, 1, ActionConfession, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "no prior action")

	require.NoError(t, g.SetCooldown(ctx, 1, ActionConfession))

	ok, err = g.CheckCooldown(ctx, 1, ActionConfession, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := g.CooldownRemaining(ctx, 1, ActionConfession, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, remaining)

	clock.Advance(60 * time.Second)
	ok, err = g.CheckCooldown(ctx, 1, ActionConfession, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "elapsed must exceed the window")

	clock.Advance(time.Second)
	ok, err = g.CheckCooldown(ctx, 1, ActionConfession, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCooldownKindsAreIndependent(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(t)

	require.NoError(t, g.SetCooldown(ctx, 7, ActionConfession))
	require.NoError(t, g.SetCooldown(ctx, 7, "other"))

	ok, err := g.CheckCooldown(ctx, 7, ActionConfession, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second set must not drop the first kind")

	ok, err = g.CheckCooldown(ctx, 8, ActionConfession, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other users are unaffected")
}

func TestRateLimit(t *testing.T) {
	ctx := context.Background()
	g, clock := newGuard(t)
	window := 30 * time.Second

	for i := 0; i < 3; i++ {
		ok, err := g.CheckRateLimit(ctx, 1, ActionComment, window, 3)
		require.NoError(t, err)
		require.True(t, ok, "event %d", i)
		require.NoError(t, g.RecordEvent(ctx, 1, ActionComment))
		clock.Advance(time.Second)
	}

	ok, err := g.CheckRateLimit(ctx, 1, ActionComment, window, 3)
	require.NoError(t, err)
	assert.False(t, ok, "fourth event inside the window")

	clock.Advance(window)
	ok, err = g.CheckRateLimit(ctx, 1, ActionComment, window, 3)
	require.NoError(t, err)
	assert.True(t, ok, "window elapsed")
}

func TestRateLimitSlidingWindow(t *testing.T) {
	ctx := context.Background()
	g, clock := newGuard(t)
	window := 30 * time.Second

	require.NoError(t, g.RecordEvent(ctx, 1, ActionComment))
	clock.Advance(20 * time.Second)
	require.NoError(t, g.RecordEvent(ctx, 1, ActionComment))
	require.NoError(t, g.RecordEvent(ctx, 1, ActionComment))

	ok, err := g.CheckRateLimit(ctx, 1, ActionComment, window, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	// only the first event leaves the window
	clock.Advance(11 * time.Second)
	ok, err = g.CheckRateLimit(ctx, 1, ActionComment, window, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, g.RecordEvent(ctx, 1, ActionComment))
	ok, err = g.CheckRateLimit(ctx, 1, ActionComment, window, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
