package http

import (
	"bytes"
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

	"confession-bot-backend/internal/common/config"
	"confession-bot-backend/internal/common/middleware"
	"confession-bot-backend/internal/features/user/models"
	userredis "confession-bot-backend/internal/features/user/repository/redis"
	"confession-bot-backend/internal/features/user/service"
	"confession-bot-backend/internal/platform/redis/redistest"
)

const (
	token   = "42:users-test"
	adminID = int64(900)
)

type silent struct{}

func (silent) SendText(context.Context, int64, string) error { return nil }

type invalidations struct{ n int }

func (i *invalidations) Invalidate(context.Context) error {
	i.n++
	return nil
}

func initData(t *testing.T, userID int64) string {
	t.Helper()
	user, err := json.Marshal(map[string]interface{}{"id": userID, "first_name": "Tess", "last_name": "T"})
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
	router *gin.Engine
	users  *service.Service
	inv    *invalidations
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	rdb, _ := redistest.New(t)
	users := service.NewService(userredis.NewUserRepository(rdb), silent{})
	inv := &invalidations{}

	cfg := &config.Config{}
	cfg.Telegram.BotToken = token
	cfg.Telegram.InitDataTTL = time.Hour

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors(), middleware.ErrorHandler())
	NewUserHandler(users, config.NewAdminSet([]int64{adminID}), inv, cfg).RegisterRoutes(r.Group("/api/v1"))
	return &fixture{router: r, users: users, inv: inv}
}

func (f *fixture) do(t *testing.T, userID int64, method, target string, body interface{}, out interface{}) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Telegram-Init-Data", initData(t, userID))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestGetMeCreatesProfile(t *testing.T) {
	f := newFixture(t)

	var me models.UserResponse
	require.Equal(t, http.StatusOK, f.do(t, 7, http.MethodGet, "/api/v1/users/me", nil, &me))
	assert.Equal(t, int64(7), me.ID)
	assert.Equal(t, "Tess", me.FirstName)
	assert.Equal(t, models.StatusActive, me.Status)
	assert.False(t, me.IsAdmin)
	assert.Equal(t, 1, me.Level.Number)
	require.NotNil(t, me.Rank)

	var admin models.UserResponse
	require.Equal(t, http.StatusOK, f.do(t, adminID, http.MethodGet, "/api/v1/users/me", nil, &admin))
	assert.True(t, admin.IsAdmin)
}

func TestAdminUserRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.GetOrCreate(ctx, 7, "Sam", "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, f.do(t, 7, http.MethodGet, "/api/v1/admin/users/7", nil, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, adminID, http.MethodGet, "/api/v1/admin/users/abc", nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, adminID, http.MethodGet, "/api/v1/admin/users/404", nil, nil))

	var got models.UserResponse
	require.Equal(t, http.StatusOK, f.do(t, adminID, http.MethodGet, "/api/v1/admin/users/7", nil, &got))
	assert.Equal(t, "Sam", got.FirstName)

	block := models.StatusUpdate{Status: models.StatusBlocked}
	require.Equal(t, http.StatusOK, f.do(t, adminID, http.MethodPut, "/api/v1/admin/users/7/status", block, &got))
	assert.Equal(t, models.StatusBlocked, got.Status)
	u, err := f.users.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, u.IsActive)
	assert.Equal(t, 1, f.inv.n)

	// same status again changes nothing
	require.Equal(t, http.StatusOK, f.do(t, adminID, http.MethodPut, "/api/v1/admin/users/7/status", block, &got))
	assert.Equal(t, 1, f.inv.n)

	require.Equal(t, http.StatusOK, f.do(t, adminID, http.MethodPut, "/api/v1/admin/users/7/status", models.StatusUpdate{Status: models.StatusActive}, &got))
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, 2, f.inv.n)

	assert.Equal(t, http.StatusBadRequest, f.do(t, adminID, http.MethodPut, "/api/v1/admin/users/7/status", map[string]string{"status": "banned"}, nil))
	assert.Equal(t, http.StatusForbidden, f.do(t, adminID, http.MethodPut, "/api/v1/admin/users/900/status", block, nil))
}
