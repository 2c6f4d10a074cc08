package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	UpdateModePolling = "polling"
	UpdateModeWebhook = "webhook"
)

type Config struct {
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	LogLevel string `env:"LOG_LEVEL"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"*"`
		// admin dashboard snapshots; 0 disables caching
		StatsCacheTTL time.Duration `env:"STATS_CACHE_TTL" envDefault:"15s"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken      string        `env:"BOT_TOKEN,required,notEmpty"`
		Debug         bool          `env:"TELEGRAM_DEBUG" envDefault:"false"`
		ChannelID     string        `env:"CHANNEL_ID"`
		BotUsername   string        `env:"BOT_USERNAME"`
		AdminIDs      []int64       `env:"ADMIN_IDS" envSeparator:","`
		WebhookSecret string        `env:"WEBHOOK_SECRET"`
		InitDataTTL   time.Duration `env:"INIT_DATA_TTL" envDefault:"24h"`
		// polling or webhook
		UpdateMode     string `env:"UPDATE_MODE" envDefault:"polling"`
		PollingTimeout int    `env:"POLLING_TIMEOUT" envDefault:"30"`
	}

	Worker struct {
		Enabled  bool   `env:"WORKER_ENABLED" envDefault:"true"`
		Consumer string `env:"WORKER_CONSUMER" envDefault:"notifier-1"`
	}

	Limits struct {
		ConfessionCooldown   time.Duration `env:"CONFESSION_COOLDOWN" envDefault:"60s"`
		CommentWindow        time.Duration `env:"COMMENT_WINDOW" envDefault:"30s"`
		CommentMax           int           `env:"COMMENT_MAX" envDefault:"3"`
		StateTTL             time.Duration `env:"STATE_TTL" envDefault:"24h"`
		BroadcastConcurrency int           `env:"BROADCAST_CONCURRENCY" envDefault:"8"`
	}
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// .env is optional: in production variables come from the environment
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Limits.CommentMax <= 0 {
		return nil, fmt.Errorf("COMMENT_MAX must be positive, got %d", cfg.Limits.CommentMax)
	}
	switch cfg.Telegram.UpdateMode {
	case UpdateModePolling, UpdateModeWebhook:
	default:
		return nil, fmt.Errorf("UPDATE_MODE must be %q or %q, got %q", UpdateModePolling, UpdateModeWebhook, cfg.Telegram.UpdateMode)
	}
	if cfg.Limits.BroadcastConcurrency <= 0 {
		cfg.Limits.BroadcastConcurrency = 1
	}
	return cfg, nil
}

// RedisAddr returns host:port of the configured Redis instance.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// AdminSet is the set of privileged user ids. It is read on every
// authorization check; Replace swaps the whole set atomically.
type AdminSet struct {
	ids atomic.Pointer[map[int64]struct{}]
}

func NewAdminSet(ids []int64) *AdminSet {
	s := &AdminSet{}
	s.Replace(ids)
	return s
}

// Replace installs a new admin list.
func (s *AdminSet) Replace(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	s.ids.Store(&m)
}

func (s *AdminSet) IsAdmin(id int64) bool {
	if s == nil {
		return false
	}
	m := s.ids.Load()
	if m == nil {
		return false
	}
	_, ok := (*m)[id]
	return ok
}

// IDs returns a snapshot of the admin ids in unspecified order.
func (s *AdminSet) IDs() []int64 {
	if s == nil {
		return nil
	}
	m := s.ids.Load()
	if m == nil {
		return nil
	}
	out := make([]int64, 0, len(*m))
	for id := range *m {
		out = append(out, id)
	}
	return out
}
