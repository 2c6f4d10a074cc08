package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/features/confession/models"
	"confession-bot-backend/internal/features/confession/repository"
	redisp "confession-bot-backend/internal/platform/redis"
)

const (
	keyByComments = "confessions:by_comments"
	keyStats      = "confessions:stats"
	keyHashtags   = "hashtags:count"

	// EventsStream is the moderation audit log, one entry per lifecycle move.
	EventsStream = "confessions:events"

	eventsMaxLen    = 10000           // approximate cap of the audit stream
	publishClaimTTL = 5 * time.Minute // a claim that never reached the channel frees its slot after this
	maxTxRetries    = 8

	publishedRefPrefix = "ref:"
)

func confessionKey(id string) string   { return "confession:" + id }
func publishKey(id string) string      { return "confession:" + id + ":publish" }
func statusKey(s models.Status) string { return "confessions:status:" + string(s) }
func authorKey(authorID int64) string  { return fmt.Sprintf("confessions:author:%d", authorID) }
func commentsKey(id string) string     { return "comments:" + id }
func commentsMetaKey(id string) string { return "comments:" + id + ":meta" }

// confessionRecord is the flat hash layout of confession:{id}.
type confessionRecord struct {
	ID              string `redis:"id"`
	Number          int64  `redis:"number"`
	AuthorID        int64  `redis:"author_id"`
	Text            string `redis:"text"`
	Status          string `redis:"status"`
	Hashtags        string `redis:"hashtags"`
	CommentCount    int64  `redis:"comment_count"`
	LikeCount       int64  `redis:"like_count"`
	RejectionReason string `redis:"rejection_reason"`
	ModeratedBy     int64  `redis:"moderated_by"`
	ModeratedAt     int64  `redis:"moderated_at"`
	ChannelChatID   int64  `redis:"channel_chat_id"`
	ChannelMsgID    int64  `redis:"channel_message_id"`
	CreatedAt       int64  `redis:"created_at"`
}

func (r confessionRecord) toModel() *models.Confession {
	c := &models.Confession{
		ID:              r.ID,
		Number:          r.Number,
		AuthorID:        r.AuthorID,
		Text:            r.Text,
		Status:          models.Status(r.Status),
		CommentCount:    r.CommentCount,
		LikeCount:       r.LikeCount,
		RejectionReason: r.RejectionReason,
		ModeratedBy:     r.ModeratedBy,
		ChannelChatID:   r.ChannelChatID,
		ChannelMsgID:    int(r.ChannelMsgID),
		CreatedAt:       time.UnixMilli(r.CreatedAt),
	}
	if r.Hashtags != "" {
		c.Hashtags = strings.Fields(r.Hashtags)
	}
	if r.ModeratedAt > 0 {
		c.ModeratedAt = time.UnixMilli(r.ModeratedAt)
	}
	return c
}

type confessionRepository struct {
	client *redisp.Client
}

func NewConfessionRepository(client *redisp.Client) repository.ConfessionRepository {
	return &confessionRepository{client: client}
}

func (r *confessionRepository) Create(ctx context.Context, c *models.Confession) error {
	key := confessionKey(c.ID)
	created := float64(c.CreatedAt.UnixMilli())

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.New(apperrors.ErrCodeConflict, "confession already exists").WithDetail("id", c.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"id", c.ID,
				"number", c.Number,
				"author_id", c.AuthorID,
				"text", c.Text,
				"status", string(c.Status),
				"hashtags", strings.Join(c.Hashtags, " "),
				"comment_count", 0,
				"like_count", 0,
				"created_at", c.CreatedAt.UnixMilli(),
			)
			pipe.ZAdd(ctx, statusKey(c.Status), redis.Z{Score: created, Member: c.ID})
			pipe.ZAdd(ctx, authorKey(c.AuthorID), redis.Z{Score: created, Member: c.ID})
			queueEvent(ctx, pipe, c.ID, "submitted", c.AuthorID)
			return nil
		})
		return err
	}
	return r.watch(ctx, "create confession", txf, key)
}

func (r *confessionRepository) GetByID(ctx context.Context, id string) (*models.Confession, error) {
	res := r.client.HGetAll(ctx, confessionKey(id))
	if err := res.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("get confession", err)
	}
	if len(res.Val()) == 0 {
		return nil, apperrors.NewNotFoundError("confession", id)
	}
	var rec confessionRecord
	if err := res.Scan(&rec); err != nil {
		return nil, apperrors.NewDatabaseError("decode confession", err)
	}
	return rec.toModel(), nil
}

func (r *confessionRepository) Transition(ctx context.Context, t repository.Transition) (bool, models.Status, error) {
	key := confessionKey(t.ID)
	var (
		swapped bool
		current models.Status
	)

	txf := func(tx *redis.Tx) error {
		swapped = false
		vals, err := tx.HMGet(ctx, key, "status", "created_at").Result()
		if err != nil {
			return err
		}
		status, ok := vals[0].(string)
		if !ok {
			return apperrors.NewNotFoundError("confession", t.ID)
		}
		current = models.Status(status)
		if current != t.From {
			return nil
		}
		var created float64
		if s, ok := vals[1].(string); ok {
			created, _ = strconv.ParseFloat(s, 64)
		}

		args := []interface{}{"status", string(t.To)}
		for k, v := range t.Fields {
			args = append(args, k, v)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, args...)
			pipe.ZRem(ctx, statusKey(t.From), t.ID)
			pipe.ZAdd(ctx, statusKey(t.To), redis.Z{Score: created, Member: t.ID})
			queueEvent(ctx, pipe, t.ID, string(t.To), t.ActorID)
			if t.Extra != nil {
				t.Extra(pipe)
			}
			return nil
		})
		if err == nil {
			swapped = true
			current = t.To
		}
		return err
	}

	if err := r.watch(ctx, "confession transition", txf, key); err != nil {
		return false, current, err
	}
	return swapped, current, nil
}

func (r *confessionRepository) ClaimPublish(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SetNX(ctx, publishKey(id), time.Now().UnixMilli(), publishClaimTTL).Result()
	if err != nil {
		return false, apperrors.NewDatabaseError("claim publish", err)
	}
	return ok, nil
}

func (r *confessionRepository) HoldPublish(ctx context.Context, id string) error {
	held, err := r.client.Persist(ctx, publishKey(id)).Result()
	if err != nil {
		return apperrors.NewDatabaseError("hold publish", err)
	}
	if !held {
		return apperrors.NewDatabaseError("hold publish", errors.New("publish claim expired"))
	}
	return nil
}

func (r *confessionRepository) RecordPublished(ctx context.Context, id string, ref repository.PublishedRef) error {
	val := fmt.Sprintf("%s%d:%d", publishedRefPrefix, ref.ChatID, ref.MessageID)
	if err := r.client.Set(ctx, publishKey(id), val, 0).Err(); err != nil {
		return apperrors.NewDatabaseError("record publish", err)
	}
	return nil
}

func (r *confessionRepository) LookupPublished(ctx context.Context, id string) (*repository.PublishedRef, error) {
	val, err := r.client.Get(ctx, publishKey(id)).Result()
	if redisp.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("lookup publish", err)
	}
	rest, ok := strings.CutPrefix(val, publishedRefPrefix)
	if !ok {
		// claimed but nothing recorded yet
		return nil, nil
	}
	chat, msg, _ := strings.Cut(rest, ":")
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return nil, apperrors.NewDatabaseError("lookup publish", err)
	}
	msgID, err := strconv.Atoi(msg)
	if err != nil {
		return nil, apperrors.NewDatabaseError("lookup publish", err)
	}
	return &repository.PublishedRef{ChatID: chatID, MessageID: msgID}, nil
}

func (r *confessionRepository) ReleasePublish(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, publishKey(id)).Err(); err != nil {
		return apperrors.NewDatabaseError("release publish", err)
	}
	return nil
}

func (r *confessionRepository) QueueThreadInit(ctx context.Context, pipe redis.Pipeliner, c *models.Confession, channelMsgID int) {
	meta := commentsMetaKey(c.ID)
	pipe.HSetNX(ctx, meta, "total", 0)
	pipe.HSet(ctx, meta, "confession_number", c.Number, "channel_message_id", channelMsgID)
	pipe.ZAddNX(ctx, keyByComments, redis.Z{Score: float64(c.CommentCount), Member: c.ID})
	for _, tag := range c.Hashtags {
		pipe.ZIncrBy(ctx, keyHashtags, 1, strings.ToLower(tag))
	}
}

// AppendComment pushes the comment and bumps both counters in one MULTI, so
// the list length and the stored totals never diverge.
func (r *confessionRepository) AppendComment(ctx context.Context, comment *models.Comment, extra func(pipe redis.Pipeliner)) (int64, error) {
	payload, err := json.Marshal(comment)
	if err != nil {
		return 0, apperrors.NewDatabaseError("encode comment", err)
	}

	var total *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, commentsKey(comment.ConfessionID), payload)
		total = pipe.HIncrBy(ctx, commentsMetaKey(comment.ConfessionID), "total", 1)
		pipe.HIncrBy(ctx, confessionKey(comment.ConfessionID), "comment_count", 1)
		pipe.ZIncrBy(ctx, keyByComments, 1, comment.ConfessionID)
		pipe.HIncrBy(ctx, keyStats, "comments", 1)
		if extra != nil {
			extra(pipe)
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.NewDatabaseError("append comment", err)
	}
	return total.Val(), nil
}

func (r *confessionRepository) Comments(ctx context.Context, confessionID string, start, stop int64) ([]models.Comment, error) {
	raw, err := r.client.LRange(ctx, commentsKey(confessionID), start, stop).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("list comments", err)
	}
	out := make([]models.Comment, 0, len(raw))
	for _, item := range raw {
		var c models.Comment
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, apperrors.NewDatabaseError("decode comment", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *confessionRepository) CommentTotal(ctx context.Context, confessionID string) (int64, error) {
	n, err := r.client.HGet(ctx, commentsMetaKey(confessionID), "total").Int64()
	if redisp.IsNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewDatabaseError("comment total", err)
	}
	return n, nil
}

func (r *confessionRepository) ListByStatus(ctx context.Context, status models.Status, limit int64, oldestFirst bool) ([]*models.Confession, error) {
	if limit <= 0 {
		return nil, nil
	}
	var (
		ids []string
		err error
	)
	if oldestFirst {
		ids, err = r.client.ZRange(ctx, statusKey(status), 0, limit-1).Result()
	} else {
		ids, err = r.client.ZRevRange(ctx, statusKey(status), 0, limit-1).Result()
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("list by status", err)
	}
	return r.load(ctx, ids)
}

func (r *confessionRepository) ListByAuthor(ctx context.Context, authorID int64, limit int64) ([]*models.Confession, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := r.client.ZRevRange(ctx, authorKey(authorID), 0, limit-1).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("list by author", err)
	}
	return r.load(ctx, ids)
}

// load fetches records in one pipeline, skipping ids whose hash is gone.
func (r *confessionRepository) load(ctx context.Context, ids []string) ([]*models.Confession, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, confessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("load confessions", err)
	}
	out := make([]*models.Confession, 0, len(ids))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		var rec confessionRecord
		if err := cmd.Scan(&rec); err != nil {
			return nil, apperrors.NewDatabaseError("decode confession", err)
		}
		out = append(out, rec.toModel())
	}
	return out, nil
}

func (r *confessionRepository) Trending(ctx context.Context, limit int64) ([]models.Trending, error) {
	if limit <= 0 {
		return nil, nil
	}
	entries, err := r.client.ZRevRangeWithScores(ctx, keyByComments, 0, limit-1).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("trending", err)
	}
	ids := make([]string, 0, len(entries))
	for _, z := range entries {
		if id, ok := z.Member.(string); ok {
			ids = append(ids, id)
		}
	}
	confessions, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Trending, 0, len(confessions))
	for _, c := range confessions {
		out = append(out, models.Trending{ID: c.ID, Number: c.Number, Text: c.Text, Comments: c.CommentCount})
	}
	return out, nil
}

func (r *confessionRepository) TopHashtags(ctx context.Context, limit int64) ([]models.HashtagCount, error) {
	if limit <= 0 {
		return nil, nil
	}
	entries, err := r.client.ZRevRangeWithScores(ctx, keyHashtags, 0, limit-1).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("top hashtags", err)
	}
	out := make([]models.HashtagCount, 0, len(entries))
	for _, z := range entries {
		tag, _ := z.Member.(string)
		out = append(out, models.HashtagCount{Tag: tag, Count: int64(z.Score)})
	}
	return out, nil
}

func (r *confessionRepository) RecentEvents(ctx context.Context, limit int64) ([]models.Event, error) {
	msgs, err := r.client.XRevRangeN(ctx, EventsStream, "+", "-", limit).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("recent events", err)
	}
	out := make([]models.Event, 0, len(msgs))
	for _, m := range msgs {
		ev := models.Event{ID: m.ID}
		ev.ConfessionID, _ = m.Values["confession_id"].(string)
		ev.Type, _ = m.Values["type"].(string)
		if s, ok := m.Values["actor_id"].(string); ok {
			ev.ActorID, _ = strconv.ParseInt(s, 10, 64)
		}
		if s, ok := m.Values["at"].(string); ok {
			ms, _ := strconv.ParseInt(s, 10, 64)
			ev.At = time.UnixMilli(ms)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *confessionRepository) Stats(ctx context.Context) (*models.Stats, error) {
	counts := make(map[models.Status]*redis.IntCmd, len(models.Statuses))
	var comments *redis.StringCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, s := range models.Statuses {
			counts[s] = pipe.ZCard(ctx, statusKey(s))
		}
		comments = pipe.HGet(ctx, keyStats, "comments")
		return nil
	})
	if err != nil && !redisp.IsNil(err) {
		return nil, apperrors.NewDatabaseError("confession stats", err)
	}

	st := &models.Stats{
		Pending:  counts[models.StatusPending].Val(),
		Approved: counts[models.StatusApproved].Val(),
		Posted:   counts[models.StatusPosted].Val(),
		Rejected: counts[models.StatusRejected].Val(),
	}
	st.Total = st.Pending + st.Approved + st.Posted + st.Rejected
	st.Comments, _ = strconv.ParseInt(comments.Val(), 10, 64)
	return st, nil
}

func queueEvent(ctx context.Context, pipe redis.Pipeliner, id, typ string, actorID int64) {
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: EventsStream,
		MaxLen: eventsMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"confession_id": id,
			"type":          typ,
			"actor_id":      actorID,
			"at":            time.Now().UnixMilli(),
		},
	})
}

func (r *confessionRepository) watch(ctx context.Context, op string, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if _, ok := apperrors.AsAppError(err); ok {
			return err
		}
		return apperrors.NewDatabaseError(op, err)
	}
	return apperrors.NewDatabaseError(op, redis.TxFailedErr)
}
