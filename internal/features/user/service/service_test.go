package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/features/user/models"
	userredis "confession-bot-backend/internal/features/user/repository/redis"
	"confession-bot-backend/internal/platform/redis/redistest"
)

type sentText struct {
	chatID int64
	text   string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentText
}

func (m *fakeMessenger) SendText(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentText{chatID, text})
	return nil
}

func (m *fakeMessenger) to(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

func newService(t *testing.T, opts ...Option) (*Service, *fakeMessenger) {
	rdb, _ := redistest.New(t)
	m := &fakeMessenger{}
	return NewService(userredis.NewUserRepository(rdb), m, opts...), m
}

func TestGetOrCreateDefaults(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.Get(ctx, 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	u, err := s.GetOrCreate(ctx, 10, "Ann", "")
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", u.Username)
	assert.True(t, u.IsActive)
	assert.Equal(t, models.CommentEveryone, u.CommentSettings.AllowComments)
	assert.True(t, u.Notifications.NewFollower)
	assert.True(t, u.Notifications.DirectMessage)
	assert.Equal(t, "Ann", u.FirstName)

	_, err = s.CreditReputation(ctx, 10, 10)
	require.NoError(t, err)
	u, err = s.GetOrCreate(ctx, 10, "Other", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.Reputation, "second contact keeps existing fields")
	assert.Equal(t, "Ann", u.FirstName)
}

func TestSetUsername(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	_, err := s.GetOrCreate(ctx, 1, "", "")
	require.NoError(t, err)
	_, err = s.GetOrCreate(ctx, 2, "", "")
	require.NoError(t, err)

	for _, bad := range []string{"ab", "this_name_is_way_too_long_12", "bad name!", "anonymous"} {
		err := s.SetUsername(ctx, 1, bad)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "name %q", bad)
	}

	require.NoError(t, s.SetUsername(ctx, 1, "Valid_Name1"))
	err = s.SetUsername(ctx, 2, "valid_name1")
	assert.ErrorIs(t, err, apperrors.ErrUsernameTaken, "uniqueness ignores case")

	require.NoError(t, s.SetUsername(ctx, 1, "Renamed"))
	require.NoError(t, s.SetUsername(ctx, 2, "valid_name1"), "old name is released")

	u, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", u.Username)
}

func TestFollowUnfollowRestoresState(t *testing.T) {
	s, m := newService(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		_, err := s.GetOrCreate(ctx, id, "", "")
		require.NoError(t, err)
	}
	require.NoError(t, s.Follow(ctx, 3, 2))

	beforeFollowing, err := s.Following(ctx, 1, 0)
	require.NoError(t, err)
	beforeFollowers, err := s.Followers(ctx, 2, 0)
	require.NoError(t, err)

	require.NoError(t, s.Follow(ctx, 1, 2))
	ok, err := s.IsFollowing(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	target, err := s.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), target.FollowerCount)
	assert.Len(t, m.to(2), 2, "target notified on each follow")

	require.NoError(t, s.Unfollow(ctx, 1, 2))
	afterFollowing, err := s.Following(ctx, 1, 0)
	require.NoError(t, err)
	afterFollowers, err := s.Followers(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, beforeFollowing, afterFollowing)
	assert.Equal(t, beforeFollowers, afterFollowers)

	require.NoError(t, s.Unfollow(ctx, 1, 2), "absent relation is a no-op")
}

func TestFollowErrors(t *testing.T) {
	s, m := newService(t)
	ctx := context.Background()
	_, err := s.GetOrCreate(ctx, 1, "", "")
	require.NoError(t, err)
	_, err = s.GetOrCreate(ctx, 2, "", "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Follow(ctx, 1, 1), apperrors.ErrSelfFollow)
	assert.ErrorIs(t, s.Follow(ctx, 1, 99), apperrors.ErrNotFound)

	require.NoError(t, s.Follow(ctx, 1, 2))
	assert.ErrorIs(t, s.Follow(ctx, 1, 2), apperrors.ErrAlreadyFollowing)

	followers, err := s.Followers(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, followers, 1)

	// preference switched off
	on, err := s.TogglePreference(ctx, 2, models.PrefNewFollower)
	require.NoError(t, err)
	assert.False(t, on)
	require.NoError(t, s.Unfollow(ctx, 1, 2))
	require.NoError(t, s.Follow(ctx, 1, 2))
	assert.Len(t, m.to(2), 1)
}

func TestCommentSettingsAndBlock(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	_, err := s.GetOrCreate(ctx, 5, "", "")
	require.NoError(t, err)

	require.NoError(t, s.SetCommentPolicy(ctx, 5, models.CommentFollowers))
	require.NoError(t, s.ToggleAnonymousComments(ctx, 5))
	require.NoError(t, s.ToggleCommentApproval(ctx, 5))
	assert.ErrorIs(t, s.SetCommentPolicy(ctx, 5, "nobody"), apperrors.ErrValidation)

	u, err := s.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, models.CommentSettings{
		AllowComments:   models.CommentFollowers,
		AllowAnonymous:  false,
		RequireApproval: true,
	}, u.CommentSettings)

	active, err := s.ToggleBlock(ctx, 5)
	require.NoError(t, err)
	assert.False(t, active)
	_, err = s.RequireActive(ctx, 5)
	assert.ErrorIs(t, err, apperrors.ErrUserBlocked)

	ids, err := s.ActiveIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Equal(t, int64(0), stats.ActiveUsers)
}

func TestSetBio(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	_, err := s.GetOrCreate(ctx, 1, "", "")
	require.NoError(t, err)

	bio, err := s.SetBio(ctx, 1, " <b>night owl</b> ")
	require.NoError(t, err)
	assert.Equal(t, "night owl", bio)

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.SetBio(ctx, 1, string(long))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestTouchActivityStreak(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, _ := newService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	_, err := s.GetOrCreate(ctx, 1, "", "")
	require.NoError(t, err)

	streak := func() int64 {
		u, err := s.Get(ctx, 1)
		require.NoError(t, err)
		return u.DailyStreak
	}

	require.NoError(t, s.TouchActivity(ctx, 1))
	require.NoError(t, s.TouchActivity(ctx, 1))
	assert.Equal(t, int64(1), streak())

	now = now.Add(24 * time.Hour)
	require.NoError(t, s.TouchActivity(ctx, 1))
	assert.Equal(t, int64(2), streak())

	now = now.Add(72 * time.Hour)
	require.NoError(t, s.TouchActivity(ctx, 1))
	assert.Equal(t, int64(1), streak(), "missed days reset the streak")
}

func TestAchievementsAndRank(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	_, err := s.GetOrCreate(ctx, 1, "", "")
	require.NoError(t, err)

	require.NoError(t, s.RecordConfession(ctx, 1))
	tags, err := s.Achievements(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{models.AchievementFirstConfession}, tags)
	assert.Empty(t, s.CheckAchievements(ctx, 1), "awarded only once")

	_, err = s.CreditReputation(ctx, 1, 100)
	require.NoError(t, err)
	tags, err = s.Achievements(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, tags, models.AchievementRisingStar)

	rank, err := s.Rank(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, rank.Position, "no comments yet")
	assert.Equal(t, 1, rank.Level.Number)

	top, err := s.TopByReputation(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(100), top[0].Score)
}

func TestLevelFor(t *testing.T) {
	cases := map[int64]int{0: 1, 24: 1, 25: 2, 50: 3, 100: 4, 200: 5, 499: 5, 500: 6, 1000: 7}
	for comments, want := range cases {
		assert.Equal(t, want, models.LevelFor(comments).Number, "comments %d", comments)
	}
	assert.Equal(t, "👑", models.LevelFor(5000).Symbol)
}
