// Package redistest starts an in-process Redis for package tests.
package redistest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisp "confession-bot-backend/internal/platform/redis"
)

// New returns a client bound to a fresh miniredis instance that is shut down
// together with the test.
func New(t testing.TB) (*redisp.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return redisp.Wrap(c), mr
}
