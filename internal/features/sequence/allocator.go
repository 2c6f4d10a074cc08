package sequence

import (
	"context"
	"fmt"

	redisp "confession-bot-backend/internal/platform/redis"
)

// ConfessionCounter numbers confessions in submission order.
const ConfessionCounter = "confessionNumber"

// Allocator hands out strictly increasing numbers per counter name. INCR is
// atomic on the server, so concurrent callers never observe the same value.
type Allocator struct {
	rdb *redisp.Client
}

func NewAllocator(rdb *redisp.Client) *Allocator {
	return &Allocator{rdb: rdb}
}

func counterKey(name string) string { return "counter:" + name }

// Next returns the next value of name. An unseen counter starts at 1.
func (a *Allocator) Next(ctx context.Context, name string) (int64, error) {
	n, err := a.rdb.Incr(ctx, counterKey(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate %s: %w", name, err)
	}
	return n, nil
}

// Current returns the last allocated value, zero when none was allocated yet.
func (a *Allocator) Current(ctx context.Context, name string) (int64, error) {
	n, err := a.rdb.Get(ctx, counterKey(name)).Int64()
	if redisp.IsNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	return n, nil
}
