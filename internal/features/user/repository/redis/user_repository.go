package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/validation"
	"confession-bot-backend/internal/features/user/models"
	"confession-bot-backend/internal/features/user/repository"
	redisp "confession-bot-backend/internal/platform/redis"
)

const (
	keyAllUsers     = "users:all"
	keyBlockedUsers = "users:blocked"
	keyByName       = "users:by_name"
	keyByReputation = "users:by_reputation"
	keyByComments   = "users:by_comments"

	// optimistic transactions are retried this many times on contention
	maxTxRetries = 8
)

func userKey(id int64) string         { return fmt.Sprintf("user:%d", id) }
func followersKey(id int64) string    { return fmt.Sprintf("user:%d:followers", id) }
func followingKey(id int64) string    { return fmt.Sprintf("user:%d:following", id) }
func achievementsKey(id int64) string { return fmt.Sprintf("user:%d:achievements", id) }

// userRecord is the flat hash layout of user:{id}.
type userRecord struct {
	ID               int64  `redis:"id"`
	Username         string `redis:"username"`
	FirstName        string `redis:"first_name"`
	LastName         string `redis:"last_name"`
	Bio              string `redis:"bio"`
	Reputation       int64  `redis:"reputation"`
	DailyStreak      int64  `redis:"daily_streak"`
	LastCheckin      string `redis:"last_checkin"`
	TotalConfessions int64  `redis:"total_confessions"`
	TotalComments    int64  `redis:"total_comments"`
	Active           bool   `redis:"active"`
	NotifyFollower   bool   `redis:"notify_new_follower"`
	NotifyComment    bool   `redis:"notify_new_comment"`
	NotifyConfession bool   `redis:"notify_new_confession"`
	NotifyDirect     bool   `redis:"notify_direct_message"`
	CommentPolicy    string `redis:"comment_policy"`
	AllowAnonymous   bool   `redis:"allow_anonymous"`
	RequireApproval  bool   `redis:"require_approval"`
	JoinedAt         int64  `redis:"joined_at"`
}

var prefFields = map[models.Preference]string{
	models.PrefNewFollower:   "notify_new_follower",
	models.PrefNewComment:    "notify_new_comment",
	models.PrefNewConfession: "notify_new_confession",
	models.PrefDirectMessage: "notify_direct_message",
}

func (r userRecord) toModel() *models.User {
	policy := models.CommentPolicy(r.CommentPolicy)
	if !policy.Valid() {
		policy = models.CommentEveryone
	}
	username := r.Username
	if username == "" {
		username = validation.PlaceholderUsername
	}
	return &models.User{
		ID:               r.ID,
		Username:         username,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Bio:              r.Bio,
		Reputation:       r.Reputation,
		DailyStreak:      r.DailyStreak,
		LastCheckin:      r.LastCheckin,
		TotalConfessions: r.TotalConfessions,
		TotalComments:    r.TotalComments,
		IsActive:         r.Active,
		Notifications: models.NotificationPrefs{
			NewFollower:   r.NotifyFollower,
			NewComment:    r.NotifyComment,
			NewConfession: r.NotifyConfession,
			DirectMessage: r.NotifyDirect,
		},
		CommentSettings: models.CommentSettings{
			AllowComments:   policy,
			AllowAnonymous:  r.AllowAnonymous,
			RequireApproval: r.RequireApproval,
		},
		JoinedAt: time.UnixMilli(r.JoinedAt),
	}
}

type userRepository struct {
	client *redisp.Client
	now    func() time.Time
}

func NewUserRepository(client *redisp.Client) repository.UserRepository {
	return &userRepository{
		client: client,
		now:    time.Now,
	}
}

func (r *userRepository) Ensure(ctx context.Context, id int64, firstName, lastName string) (bool, error) {
	defaults := []struct {
		field string
		value interface{}
	}{
		{"id", id},
		{"username", validation.PlaceholderUsername},
		{"first_name", firstName},
		{"last_name", lastName},
		{"bio", ""},
		{"reputation", 0},
		{"daily_streak", 0},
		{"last_checkin", ""},
		{"total_confessions", 0},
		{"total_comments", 0},
		{"active", true},
		{"notify_new_follower", true},
		{"notify_new_comment", true},
		{"notify_new_confession", true},
		{"notify_direct_message", true},
		{"comment_policy", string(models.CommentEveryone)},
		{"allow_anonymous", true},
		{"require_approval", false},
		{"joined_at", r.now().UnixMilli()},
	}

	var added *redis.IntCmd
	// HSETNX per field: a concurrent Ensure or counter update is never overwritten
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, d := range defaults {
			pipe.HSetNX(ctx, userKey(id), d.field, d.value)
		}
		added = pipe.SAdd(ctx, keyAllUsers, id)
		pipe.ZAddNX(ctx, keyByReputation, redis.Z{Score: 0, Member: id})
		return nil
	})
	if err != nil {
		return false, apperrors.NewDatabaseError("ensure user", err)
	}
	return added.Val() == 1, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var (
		fields    *redis.MapStringStringCmd
		followers *redis.IntCmd
		following *redis.IntCmd
	)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, userKey(id))
		followers = pipe.SCard(ctx, followersKey(id))
		following = pipe.SCard(ctx, followingKey(id))
		return nil
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	if len(fields.Val()) == 0 {
		return nil, apperrors.NewNotFoundError("user", id)
	}

	var rec userRecord
	if err := fields.Scan(&rec); err != nil {
		return nil, apperrors.NewDatabaseError("decode user", err)
	}
	rec.ID = id

	user := rec.toModel()
	user.FollowerCount = followers.Val()
	user.FollowingCount = following.Val()
	return user, nil
}

func (r *userRepository) Exists(ctx context.Context, id int64) (bool, error) {
	n, err := r.client.Exists(ctx, userKey(id)).Result()
	if err != nil {
		return false, apperrors.NewDatabaseError("user exists", err)
	}
	return n == 1, nil
}

// SetUsername claims the case-insensitive name for id and releases the old one.
func (r *userRepository) SetUsername(ctx context.Context, id int64, username string) error {
	newKey := strings.ToLower(username)

	txf := func(tx *redis.Tx) error {
		owner, err := tx.HGet(ctx, keyByName, newKey).Result()
		if err != nil && !redisp.IsNil(err) {
			return err
		}
		if owner != "" && owner != strconv.FormatInt(id, 10) {
			return apperrors.New(apperrors.ErrCodeUsernameTaken, "username already taken").
				WithDetail("username", username)
		}
		old, err := tx.HGet(ctx, userKey(id), "username").Result()
		if err != nil && !redisp.IsNil(err) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != "" && !validation.IsPlaceholderUsername(old) && strings.ToLower(old) != newKey {
				pipe.HDel(ctx, keyByName, strings.ToLower(old))
			}
			pipe.HSet(ctx, keyByName, newKey, id)
			pipe.HSet(ctx, userKey(id), "username", username)
			return nil
		})
		return err
	}

	return r.watch(ctx, "set username", txf, keyByName, userKey(id))
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (int64, error) {
	raw, err := r.client.HGet(ctx, keyByName, strings.ToLower(username)).Result()
	if redisp.IsNil(err) {
		return 0, apperrors.NewNotFoundError("user", username)
	}
	if err != nil {
		return 0, apperrors.NewDatabaseError("find user by name", err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewDatabaseError("decode user id", err)
	}
	return id, nil
}

func (r *userRepository) SetBio(ctx context.Context, id int64, bio string) error {
	return r.setFields(ctx, "set bio", id, "bio", bio)
}

func (r *userRepository) SetPreference(ctx context.Context, id int64, pref models.Preference, enabled bool) error {
	field, ok := prefFields[pref]
	if !ok {
		return apperrors.NewValidationError("preference", fmt.Sprintf("unknown preference %q", pref))
	}
	return r.setFields(ctx, "set preference", id, field, enabled)
}

func (r *userRepository) SetCommentSettings(ctx context.Context, id int64, s models.CommentSettings) error {
	return r.setFields(ctx, "set comment settings", id,
		"comment_policy", string(s.AllowComments),
		"allow_anonymous", s.AllowAnonymous,
		"require_approval", s.RequireApproval,
	)
}

func (r *userRepository) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, userKey(id), "active", active)
		if active {
			pipe.SRem(ctx, keyBlockedUsers, id)
		} else {
			pipe.SAdd(ctx, keyBlockedUsers, id)
		}
		return nil
	})
	if err != nil {
		return apperrors.NewDatabaseError("set active", err)
	}
	return nil
}

func (r *userRepository) SetStreak(ctx context.Context, id int64, streak int64, day string) error {
	return r.setFields(ctx, "set streak", id, "daily_streak", streak, "last_checkin", day)
}

func (r *userRepository) setFields(ctx context.Context, op string, id int64, values ...interface{}) error {
	if err := r.client.HSet(ctx, userKey(id), values...).Err(); err != nil {
		return apperrors.NewDatabaseError(op, err)
	}
	return nil
}

func (r *userRepository) IncrementReputation(ctx context.Context, id int64, delta int64) (int64, error) {
	var total *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		total = pipe.HIncrBy(ctx, userKey(id), "reputation", delta)
		pipe.ZIncrBy(ctx, keyByReputation, float64(delta), strconv.FormatInt(id, 10))
		return nil
	})
	if err != nil {
		return 0, apperrors.NewDatabaseError("increment reputation", err)
	}
	return total.Val(), nil
}

func (r *userRepository) IncrementConfessions(ctx context.Context, id int64) (int64, error) {
	n, err := r.client.HIncrBy(ctx, userKey(id), "total_confessions", 1).Result()
	if err != nil {
		return 0, apperrors.NewDatabaseError("increment confessions", err)
	}
	return n, nil
}

func (r *userRepository) QueueCommentCredit(ctx context.Context, pipe redis.Pipeliner, id int64, reputation int64) {
	member := strconv.FormatInt(id, 10)
	pipe.HIncrBy(ctx, userKey(id), "total_comments", 1)
	pipe.ZIncrBy(ctx, keyByComments, 1, member)
	if reputation != 0 {
		pipe.HIncrBy(ctx, userKey(id), "reputation", reputation)
		pipe.ZIncrBy(ctx, keyByReputation, float64(reputation), member)
	}
}

// Follow adds both directions of the relation in one transaction.
func (r *userRepository) Follow(ctx context.Context, actorID, targetID int64) error {
	txf := func(tx *redis.Tx) error {
		already, err := tx.SIsMember(ctx, followingKey(actorID), targetID).Result()
		if err != nil {
			return err
		}
		if already {
			return apperrors.New(apperrors.ErrCodeAlreadyFollowing, "already following").
				WithDetail("target_id", targetID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, followingKey(actorID), targetID)
			pipe.SAdd(ctx, followersKey(targetID), actorID)
			return nil
		})
		return err
	}
	return r.watch(ctx, "follow", txf, followingKey(actorID), followersKey(targetID))
}

func (r *userRepository) Unfollow(ctx context.Context, actorID, targetID int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, followingKey(actorID), targetID)
		pipe.SRem(ctx, followersKey(targetID), actorID)
		return nil
	})
	if err != nil {
		return apperrors.NewDatabaseError("unfollow", err)
	}
	return nil
}

func (r *userRepository) IsFollowing(ctx context.Context, actorID, targetID int64) (bool, error) {
	ok, err := r.client.SIsMember(ctx, followingKey(actorID), targetID).Result()
	if err != nil {
		return false, apperrors.NewDatabaseError("is following", err)
	}
	return ok, nil
}

func (r *userRepository) Followers(ctx context.Context, id int64) ([]int64, error) {
	return r.idSet(ctx, "followers", followersKey(id))
}

func (r *userRepository) Following(ctx context.Context, id int64) ([]int64, error) {
	return r.idSet(ctx, "following", followingKey(id))
}

func (r *userRepository) idSet(ctx context.Context, op, key string) ([]int64, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError(op, err)
	}
	ids := parseIDs(members)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// AddAchievements awards tags and returns the ones the user did not have yet.
func (r *userRepository) AddAchievements(ctx context.Context, id int64, tags ...string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.IntCmd, len(tags))
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, tag := range tags {
			cmds[i] = pipe.SAdd(ctx, achievementsKey(id), tag)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("add achievements", err)
	}
	var added []string
	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			added = append(added, tags[i])
		}
	}
	return added, nil
}

func (r *userRepository) Achievements(ctx context.Context, id int64) ([]string, error) {
	tags, err := r.client.SMembers(ctx, achievementsKey(id)).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("achievements", err)
	}
	sort.Strings(tags)
	return tags, nil
}

func (r *userRepository) TopByReputation(ctx context.Context, limit int64) ([]models.RankedUser, error) {
	return r.top(ctx, keyByReputation, limit)
}

func (r *userRepository) TopByComments(ctx context.Context, limit int64) ([]models.RankedUser, error) {
	return r.top(ctx, keyByComments, limit)
}

// top reads a leaderboard skipping blocked users. Names are resolved in one
// pipeline round trip.
func (r *userRepository) top(ctx context.Context, key string, limit int64) ([]models.RankedUser, error) {
	if limit <= 0 {
		return nil, nil
	}
	blocked, err := r.client.SCard(ctx, keyBlockedUsers).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("leaderboard", err)
	}
	entries, err := r.client.ZRevRangeWithScores(ctx, key, 0, limit+blocked-1).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("leaderboard", err)
	}

	type row struct {
		id       int64
		score    int64
		name     *redis.StringCmd
		comments *redis.StringCmd
		blocked  *redis.BoolCmd
	}
	rows := make([]row, 0, len(entries))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, z := range entries {
			id, err := parseMember(z.Member)
			if err != nil {
				continue
			}
			rows = append(rows, row{
				id:       id,
				score:    int64(z.Score),
				name:     pipe.HGet(ctx, userKey(id), "username"),
				comments: pipe.HGet(ctx, userKey(id), "total_comments"),
				blocked:  pipe.SIsMember(ctx, keyBlockedUsers, id),
			})
		}
		return nil
	})
	if err != nil && !redisp.IsNil(err) {
		return nil, apperrors.NewDatabaseError("leaderboard names", err)
	}

	out := make([]models.RankedUser, 0, limit)
	for _, rw := range rows {
		if rw.blocked.Val() {
			continue
		}
		name := rw.name.Val()
		if name == "" {
			name = validation.PlaceholderUsername
		}
		comments, _ := strconv.ParseInt(rw.comments.Val(), 10, 64)
		out = append(out, models.RankedUser{
			ID:       rw.id,
			Username: name,
			Score:    rw.score,
			Level:    models.LevelFor(comments),
		})
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *userRepository) CommentRank(ctx context.Context, id int64) (*models.Rank, error) {
	member := strconv.FormatInt(id, 10)
	var (
		rank  *redis.IntCmd
		score *redis.FloatCmd
		total *redis.IntCmd
	)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		rank = pipe.ZRevRank(ctx, keyByComments, member)
		score = pipe.ZScore(ctx, keyByComments, member)
		total = pipe.ZCard(ctx, keyByComments)
		return nil
	})
	if err != nil && !redisp.IsNil(err) {
		return nil, apperrors.NewDatabaseError("comment rank", err)
	}

	out := &models.Rank{Total: total.Val()}
	if rank.Err() == nil {
		out.Position = rank.Val() + 1
		out.Comments = int64(score.Val())
	}
	out.Level = models.LevelFor(out.Comments)
	return out, nil
}

func (r *userRepository) List(ctx context.Context, offset, limit int64) ([]int64, error) {
	members, err := r.client.SMembers(ctx, keyAllUsers).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("list users", err)
	}
	ids := parseIDs(members)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if offset >= int64(len(ids)) {
		return nil, nil
	}
	end := offset + limit
	if end > int64(len(ids)) {
		end = int64(len(ids))
	}
	return ids[offset:end], nil
}

// ActiveIDs returns every user that is not blocked.
func (r *userRepository) ActiveIDs(ctx context.Context) ([]int64, error) {
	members, err := r.client.SDiff(ctx, keyAllUsers, keyBlockedUsers).Result()
	if err != nil {
		return nil, apperrors.NewDatabaseError("active users", err)
	}
	ids := parseIDs(members)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *userRepository) Stats(ctx context.Context) (*models.DirectoryStats, error) {
	var total, blocked *redis.IntCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		total = pipe.SCard(ctx, keyAllUsers)
		blocked = pipe.SCard(ctx, keyBlockedUsers)
		return nil
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("user stats", err)
	}
	return &models.DirectoryStats{
		TotalUsers:  total.Val(),
		ActiveUsers: total.Val() - blocked.Val(),
	}, nil
}

// watch runs txf under WATCH keys, retrying when another client touched them.
func (r *userRepository) watch(ctx context.Context, op string, txf func(*redis.Tx) error, keys ...string) error {
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

func parseIDs(members []string) []int64 {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseMember(m interface{}) (int64, error) {
	s, ok := m.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected member %v", m)
	}
	return strconv.ParseInt(s, 10, 64)
}
