package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "1:abc")
	t.Setenv("ADMIN_IDS", "10,20")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, []int64{10, 20}, cfg.Telegram.AdminIDs)
	assert.Equal(t, UpdateModePolling, cfg.Telegram.UpdateMode)
	assert.Equal(t, 60*time.Second, cfg.Limits.ConfessionCooldown)
	assert.Equal(t, 3, cfg.Limits.CommentMax)
	assert.Equal(t, 15*time.Second, cfg.Server.StatsCacheTTL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	_, err := Load()
	assert.Error(t, err, "BOT_TOKEN must not be empty")

	t.Setenv("BOT_TOKEN", "1:abc")
	t.Setenv("UPDATE_MODE", "carrier-pigeon")
	_, err = Load()
	assert.ErrorContains(t, err, "UPDATE_MODE")

	t.Setenv("UPDATE_MODE", UpdateModeWebhook)
	t.Setenv("COMMENT_MAX", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "COMMENT_MAX")
}

func TestAdminSet(t *testing.T) {
	s := NewAdminSet([]int64{1, 2})
	assert.True(t, s.IsAdmin(1))
	assert.False(t, s.IsAdmin(3))
	assert.ElementsMatch(t, []int64{1, 2}, s.IDs())

	s.Replace([]int64{3})
	assert.False(t, s.IsAdmin(1))
	assert.True(t, s.IsAdmin(3))

	var none *AdminSet
	assert.False(t, none.IsAdmin(1))
	assert.Nil(t, none.IDs())
}
