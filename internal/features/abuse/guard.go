// Package abuse holds the cooldown and rate-limit predicates that gate
// submissions and comments. Both primitives are advisory: callers check before
// the guarded action and record only after it succeeded.
package abuse

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	redisp "confession-bot-backend/internal/platform/redis"
)

const (
	ActionConfession = "confession"
	ActionComment    = "comment"

	// events older than this are dropped when a new one is recorded
	eventRetention = time.Hour
)

type Guard struct {
	rdb *redisp.Client
	now func() time.Time
}

type Option func(*Guard)

// WithClock replaces time.Now, used by tests to simulate elapsed time.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func NewGuard(rdb *redisp.Client, opts ...Option) *Guard {
	g := &Guard{rdb: rdb, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

func cooldownKey(userID int64) string { return fmt.Sprintf("cooldown:%d", userID) }

func rateLimitKey(userID int64, action string) string {
	return fmt.Sprintf("ratelimit:%d:%s", userID, action)
}

// CheckCooldown is true when no previous action is recorded or more than
// window has elapsed since the last one.
func (g *Guard) CheckCooldown(ctx context.Context, userID int64, action string, window time.Duration) (bool, error) {
	last, ok, err := g.lastAction(ctx, userID, action)
	if err != nil || !ok {
		return err == nil, err
	}
	return g.now().Sub(last) > window, nil
}

// CooldownRemaining returns how long the user still has to wait, zero when allowed.
func (g *Guard) CooldownRemaining(ctx context.Context, userID int64, action string, window time.Duration) (time.Duration, error) {
	last, ok, err := g.lastAction(ctx, userID, action)
	if err != nil || !ok {
		return 0, err
	}
	elapsed := g.now().Sub(last)
	if elapsed > window {
		return 0, nil
	}
	return window - elapsed, nil
}

func (g *Guard) lastAction(ctx context.Context, userID int64, action string) (time.Time, bool, error) {
	raw, err := g.rdb.HGet(ctx, cooldownKey(userID), action).Result()
	if redisp.IsNil(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read cooldown: %w", err)
	}
	lastMs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// corrupted entry does not lock the user out
		return time.Time{}, false, nil
	}
	return time.UnixMilli(lastMs), true, nil
}

// SetCooldown records now as the last occurrence of action. Other actions of
// the same user are left untouched.
func (g *Guard) SetCooldown(ctx context.Context, userID int64, action string) error {
	if err := g.rdb.HSet(ctx, cooldownKey(userID), action, g.now().UnixMilli()).Err(); err != nil {
		return fmt.Errorf("set cooldown: %w", err)
	}
	return nil
}

// CheckRateLimit is true when fewer than maxEvents were recorded for action
// within the trailing window.
func (g *Guard) CheckRateLimit(ctx context.Context, userID int64, action string, window time.Duration, maxEvents int) (bool, error) {
	from := g.now().Add(-window).UnixMilli()
	n, err := g.rdb.ZCount(ctx, rateLimitKey(userID, action), strconv.FormatInt(from, 10), "+inf").Result()
	if err != nil {
		return false, fmt.Errorf("count events: %w", err)
	}
	return n < int64(maxEvents), nil
}

// RecordEvent appends now to the rolling event set of action.
func (g *Guard) RecordEvent(ctx context.Context, userID int64, action string) error {
	now := g.now()
	key := rateLimitKey(userID, action)
	stale := strconv.FormatInt(now.Add(-eventRetention).UnixMilli(), 10)

	_, err := g.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+stale)
		pipe.Expire(ctx, key, eventRetention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}
