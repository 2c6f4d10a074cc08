package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	redisp "confession-bot-backend/internal/platform/redis"
)

// Store persists the active flow per user under state:{id}. Setting a flow
// replaces whatever flow was active before.
type Store struct {
	rdb *redisp.Client
	ttl time.Duration
}

// NewStore returns a store whose flows expire after ttl of inactivity;
// ttl <= 0 keeps them until cleared.
func NewStore(rdb *redisp.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func stateKey(userID int64) string { return fmt.Sprintf("state:%d", userID) }

// Get returns the active flow, or nil when the user has none.
func (s *Store) Get(ctx context.Context, userID int64) (Flow, error) {
	data, err := s.rdb.Get(ctx, stateKey(userID)).Bytes()
	if redisp.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get flow: %w", err)
	}

	f, err := Decode(data)
	if err != nil {
		// a record written by an older build is dropped rather than wedging the user
		log.Warn().Err(err).Int64("user_id", userID).Msg("Discarding unreadable conversation state")
		_ = s.Clear(ctx, userID)
		return nil, nil
	}
	return f, nil
}

func (s *Store) Set(ctx context.Context, userID int64, f Flow) error {
	data, err := Encode(f)
	if err != nil {
		return fmt.Errorf("encode flow: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set flow: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear flow: %w", err)
	}
	return nil
}
