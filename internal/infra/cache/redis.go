package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-academy-bot/internal/domain"
)

// RedisCache реализует domain.LocalCache через Redis.
type RedisCache struct {
	client *redis.Client
	log    zerolog.Logger
}

var _ domain.LocalCache = (*RedisCache)(nil)

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client, log zerolog.Logger) *RedisCache {
	return &RedisCache{client: client, log: log}
}

// GetJSON декодирует значение ключа в dst. Отсутствующее или битое
// значение оставляет dst нетронутым и возвращает false.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("кэш: чтение не удалось")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("кэш: значение не декодируется")
		return false
	}
	return true
}

// SetJSON сохраняет значение ключа. Ошибка записи логируется и не
// поднимается выше: кэш — производное зеркало без авторитета.
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("кэш: значение не кодируется")
		return
	}
	if err := c.client.Set(ctx, key, raw, 0).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("кэш: запись не удалась")
	}
}

// Delete удаляет ключ.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("кэш: удаление не удалось")
	}
}

// Clear удаляет все ключи с данным префиксом.
func (c *RedisCache) Clear(ctx context.Context, prefix string) {
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", iter.Val()).Msg("кэш: удаление не удалось")
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Warn().Err(err).Str("prefix", prefix).Msg("кэш: обход ключей не удался")
	}
}

// Once выполняет функцию, если ключ ещё не задан.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return err
	}
	return nil
}
