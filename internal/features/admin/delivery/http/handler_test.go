package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confession-bot-backend/internal/common/cache"
	"confession-bot-backend/internal/common/config"
	"confession-bot-backend/internal/common/middleware"
	"confession-bot-backend/internal/features/abuse"
	"confession-bot-backend/internal/features/admin/models"
	confredis "confession-bot-backend/internal/features/confession/repository/redis"
	confservice "confession-bot-backend/internal/features/confession/service"
	"confession-bot-backend/internal/features/sequence"
	userredis "confession-bot-backend/internal/features/user/repository/redis"
	userservice "confession-bot-backend/internal/features/user/service"
	"confession-bot-backend/internal/platform/redis/redistest"
	"confession-bot-backend/internal/platform/telegram"
)

const (
	token   = "42:admin-test"
	adminID = int64(500)
)

type nopTransport struct{}

func (nopTransport) SendMessage(context.Context, int64, string, telegram.SendOptions) (telegram.MessageRef, error) {
	return telegram.MessageRef{}, nil
}

func (nopTransport) SendText(context.Context, int64, string) error { return nil }

func (nopTransport) Publish(context.Context, string, int64, string) (telegram.MessageRef, error) {
	return telegram.MessageRef{ChatID: -100, MessageID: 1}, nil
}

func initData(t *testing.T, userID int64) string {
	t.Helper()
	user, err := json.Marshal(map[string]interface{}{"id": userID, "first_name": "Admin"})
	require.NoError(t, err)
	fields := map[string]string{"auth_date": strconv.FormatInt(time.Now().Unix(), 10), "user": string(user)}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(token))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return q.Encode()
}

type fixture struct {
	router  *gin.Engine
	handler *AdminHandler
	users   *userservice.Service
	lc      *confservice.Lifecycle
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	rdb, _ := redistest.New(t)
	admins := config.NewAdminSet([]int64{adminID})
	users := userservice.NewService(userredis.NewUserRepository(rdb), nopTransport{})
	lc := confservice.NewLifecycle(
		confredis.NewConfessionRepository(rdb), users, abuse.NewGuard(rdb), sequence.NewAllocator(rdb),
		nopTransport{}, nopTransport{}, admins,
		confservice.Limits{ConfessionCooldown: time.Minute, CommentWindow: time.Minute, CommentMax: 5},
	)

	cfg := &config.Config{}
	cfg.Telegram.BotToken = token
	cfg.Telegram.InitDataTTL = time.Hour
	cfg.Server.StatsCacheTTL = time.Minute

	h := NewAdminHandler(lc, users, admins, cache.NewCacheService(rdb), cfg)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors(), middleware.ErrorHandler())
	h.RegisterRoutes(r.Group("/api/v1"))
	return &fixture{router: r, handler: h, users: users, lc: lc}
}

func (f *fixture) get(t *testing.T, userID int64, target string, out interface{}) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("X-Telegram-Init-Data", initData(t, userID))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []int64{1, 2} {
		_, err := f.users.GetOrCreate(ctx, id, "", "")
		require.NoError(t, err)
	}
	first, err := f.lc.Submit(ctx, 1, "first confession for the dashboard")
	require.NoError(t, err)
	_, err = f.lc.Submit(ctx, 2, "second one stays in the queue")
	require.NoError(t, err)
	_, err = f.lc.Approve(ctx, adminID, first.ID)
	require.NoError(t, err)
	_, err = f.lc.AddComment(ctx, 2, first.ID, "nice one")
	require.NoError(t, err)
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var resp models.StatsResponse
	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/stats", &resp))
	// the admin's own profile is created on the first dashboard request
	assert.Equal(t, int64(3), resp.Users.TotalUsers)
	assert.Equal(t, int64(2), resp.Confessions.Total)
	assert.Equal(t, int64(1), resp.Confessions.Pending)
	assert.Equal(t, int64(1), resp.Confessions.Posted)
	assert.Equal(t, int64(1), resp.Confessions.Comments)
}

func TestStatsAreCachedUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var before models.StatsResponse
	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/stats", &before))
	assert.Zero(t, before.Confessions.Total)

	_, err := f.users.GetOrCreate(ctx, 1, "", "")
	require.NoError(t, err)
	_, err = f.lc.Submit(ctx, 1, "arrives while the snapshot is fresh")
	require.NoError(t, err)

	var cached models.StatsResponse
	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/stats", &cached))
	assert.Equal(t, before, cached)

	require.NoError(t, f.handler.Invalidate(ctx))
	var fresh models.StatsResponse
	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/stats", &fresh))
	assert.Equal(t, int64(1), fresh.Confessions.Pending)
	assert.Equal(t, int64(2), fresh.Users.TotalUsers)
}

func TestConfessionsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var pending models.ConfessionsResponse
	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/confessions", &pending))
	require.Len(t, pending.Confessions, 1)
	assert.Equal(t, "second one stays in the queue", pending.Confessions[0].Text)

	var posted models.ConfessionsResponse
	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/confessions?status=posted&limit=5", &posted))
	require.Len(t, posted.Confessions, 1)
	assert.Equal(t, int64(1), posted.Confessions[0].CommentCount)

	var rejected models.ConfessionsResponse
	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/confessions?status=rejected", &rejected))
	assert.NotNil(t, rejected.Confessions)
	assert.Empty(t, rejected.Confessions)
}

func TestQueryValidation(t *testing.T) {
	f := newFixture(t)
	for _, target := range []string{
		"/api/v1/admin/confessions?status=deleted",
		"/api/v1/admin/confessions?limit=1000",
		"/api/v1/admin/leaderboard?by=likes",
		"/api/v1/admin/events?limit=abc",
	} {
		assert.Equal(t, http.StatusBadRequest, f.get(t, adminID, target, nil), target)
	}
}

func TestLeaderboardAndEvents(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var board models.LeaderboardResponse
	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/leaderboard", &board))
	assert.Equal(t, "comments", board.By)
	require.NotEmpty(t, board.Users)
	assert.Equal(t, int64(2), board.Users[0].ID)

	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/leaderboard?by=reputation&limit=1", &board))
	require.Len(t, board.Users, 1)
	assert.Equal(t, int64(1), board.Users[0].ID, "approval is worth more than one comment")

	var events models.EventsResponse
	require.Equal(t, http.StatusOK, f.get(t, adminID, "/api/v1/admin/events?limit=2", &events))
	require.Len(t, events.Events, 2)
	assert.Equal(t, "posted", events.Events[0].Type)
}

func TestNonAdminIsForbidden(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusForbidden, f.get(t, 1, "/api/v1/admin/stats", nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
