package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"confession-bot-backend/internal/common/logger"
	"confession-bot-backend/internal/common/validation"
	"confession-bot-backend/internal/features/confession/models"
	confredis "confession-bot-backend/internal/features/confession/repository/redis"
	usermodels "confession-bot-backend/internal/features/user/models"
	"confession-bot-backend/internal/platform/redis"
	"confession-bot-backend/internal/platform/telegram"
)

const (
	consumerGroup = "confession_notifiers"
	readCount     = 10
	readBlock     = 5 * time.Second
)

// ConfessionSource looks up the confession an event refers to.
type ConfessionSource interface {
	Get(ctx context.Context, id string) (*models.Confession, error)
}

// Subscribers are the users that may receive new-confession notices.
type Subscribers interface {
	ActiveIDs(ctx context.Context) ([]int64, error)
	Notify(ctx context.Context, id int64, pref usermodels.Preference, text string) bool
}

// RedisStreamWorker consumes the moderation audit stream through a consumer
// group and tells every opted-in user when a confession reaches the channel.
type RedisStreamWorker struct {
	rdb         *redis.Client
	confessions ConfessionSource
	users       Subscribers
	botUsername string
	consumer    string
	concurrency int
	logger      zerolog.Logger
}

func NewRedisStreamWorker(rdb *redis.Client, confessions ConfessionSource, users Subscribers, botUsername, consumer string, concurrency int) *RedisStreamWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &RedisStreamWorker{
		rdb:         rdb,
		confessions: confessions,
		users:       users,
		botUsername: botUsername,
		consumer:    consumer,
		concurrency: concurrency,
		logger:      logger.Component("confession_notifier").With().Str("consumer", consumer).Logger(),
	}
}

// Init creates the consumer group. New groups start at the stream tail so a
// first deploy does not replay the whole history.
func (w *RedisStreamWorker) Init(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, confredis.EventsStream, consumerGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Start reads the stream until ctx is cancelled.
func (w *RedisStreamWorker) Start(ctx context.Context) error {
	if err := w.Init(ctx); err != nil {
		return err
	}
	w.logger.Info().Str("stream", confredis.EventsStream).Msg("Starting Redis stream worker")

	for {
		if ctx.Err() != nil {
			w.logger.Info().Msg("Stopping Redis stream worker")
			return nil
		}
		if _, err := w.Poll(ctx, readBlock); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Msg("Error reading from stream")
			time.Sleep(time.Second)
		}
	}
}

// Poll handles one batch and returns how many entries it acknowledged. A
// negative block returns immediately when nothing is pending.
func (w *RedisStreamWorker) Poll(ctx context.Context, block time.Duration) (int, error) {
	streams, err := w.rdb.XReadGroup(ctx, &go_redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: w.consumer,
		Streams:  []string{confredis.EventsStream, ">"},
		Count:    readCount,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, go_redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	acked := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			w.processMessage(ctx, msg.Values)
			if err := w.rdb.XAck(ctx, confredis.EventsStream, consumerGroup, msg.ID).Err(); err != nil {
				w.logger.Warn().Err(err).Str("entry_id", msg.ID).Msg("Failed to acknowledge stream entry")
				continue
			}
			acked++
		}
	}
	return acked, nil
}

func (w *RedisStreamWorker) processMessage(ctx context.Context, values map[string]interface{}) {
	eventType, _ := values["type"].(string)
	if eventType != string(models.StatusPosted) {
		return
	}
	id, _ := values["confession_id"].(string)
	if id == "" {
		w.logger.Warn().Interface("values", values).Msg("Posted event without confession id")
		return
	}

	c, err := w.confessions.Get(ctx, id)
	if err != nil {
		w.logger.Error().Err(err).Str("confession_id", id).Msg("Posted event for unknown confession")
		return
	}
	sent := w.announce(ctx, c)
	w.logger.Info().Str("confession_id", id).Int64("notified", sent).Msg("New confession announced")
}

// announce notifies every active user except the author; Notify applies the
// newConfession preference.
func (w *RedisStreamWorker) announce(ctx context.Context, c *models.Confession) int64 {
	ids, err := w.users.ActiveIDs(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list subscribers")
		return 0
	}
	text := fmt.Sprintf("📝 *New Confession #%d*\n\n%s\n\n💬 Comment: %s",
		c.Number, validation.Truncate(c.Text, 100), telegram.CommentLink(w.botUsername, c.ID))

	var sent int64
	results := make(chan bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, id := range ids {
		if id == c.AuthorID {
			continue
		}
		id := id
		g.Go(func() error {
			results <- w.users.Notify(gctx, id, usermodels.PrefNewConfession, text)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for ok := range results {
		if ok {
			sent++
		}
	}
	return sent
}
