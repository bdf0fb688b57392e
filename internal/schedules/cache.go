package schedules

import (
	"context"
	"time"

	"github.com/angelmondragon/consultly-backend/pkg/redis"
)

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	AvailabilityKey(scheduleID string, version int64, window string) string
}

// RedisCache keeps expanded availability in redis.
type RedisCache struct {
	store redisStore
}

// NewRedisCache wraps a redis client as an AvailabilityCache.
func NewRedisCache(store redisStore) *RedisCache {
	return &RedisCache{store: store}
}

func (c *RedisCache) Get(ctx context.Context, key CacheKey) (string, bool, error) {
	value, err := c.store.Get(ctx, c.key(key))
	if err != nil {
		if redis.IsNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key CacheKey, value string, ttl time.Duration) error {
	return c.store.Set(ctx, c.key(key), value, ttl)
}

func (c *RedisCache) key(key CacheKey) string {
	return c.store.AvailabilityKey(key.ScheduleID.String(), key.Version, key.Window)
}
