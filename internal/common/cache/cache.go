package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"confession-bot-backend/internal/platform/redis"
)

const keyPrefix = "cache:"

// CacheService keeps JSON snapshots of derived views (dashboard counters,
// leaderboards) next to the data they were computed from. A nil *CacheService
// is valid and caches nothing.
type CacheService struct {
	redisClient *redis.Client
}

func NewCacheService(redisClient *redis.Client) *CacheService {
	return &CacheService{
		redisClient: redisClient,
	}
}

// Get получает значение из кэша. Промах возвращает redis.Nil.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.redisClient.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set сохраняет значение в кэш
func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redisClient.Set(ctx, keyPrefix+key, data, ttl).Err()
}

// Delete удаляет значения из кэша
func (c *CacheService) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	return c.redisClient.Del(ctx, full...).Err()
}

// DeletePrefix удаляет все ключи с префиксом. SCAN вместо KEYS, чтобы не
// блокировать сервер.
func (c *CacheService) DeletePrefix(ctx context.Context, prefix string) error {
	if c == nil {
		return nil
	}
	iter := c.redisClient.Scan(ctx, 0, keyPrefix+prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return c.redisClient.Del(ctx, batch...).Err()
}

// GetOrSet fills dest from the cache, or from setter on a miss. Cache
// failures are logged and fall through to setter; only setter errors are
// returned.
func (c *CacheService) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, setter func() (interface{}, error)) error {
	if c != nil && ttl > 0 {
		err := c.Get(ctx, key, dest)
		if err == nil {
			return nil
		}
		if !redis.IsNil(err) {
			log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
	}

	value, err := setter()
	if err != nil {
		return err
	}

	if c != nil && ttl > 0 {
		if err := c.Set(ctx, key, value, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
