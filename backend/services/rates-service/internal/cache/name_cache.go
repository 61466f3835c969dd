// Package cache keeps user display names in Redis in front of the directory.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Source is the authoritative name lookup.
type Source interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// NameCache is a read-through cache. Only successful lookups are stored and
// Redis failures fall through to the source.
type NameCache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	logger *zap.Logger
}

// NewNameCache returns redis-backed cache.
func NewNameCache(client *redis.Client, source Source, ttl time.Duration, logger *zap.Logger) *NameCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &NameCache{client: client, source: source, ttl: ttl, logger: logger}
}

func (c *NameCache) key(userID int64) string {
	return fmt.Sprintf("rates:user-name:%d", userID)
}

// DisplayName implements Source.
func (c *NameCache) DisplayName(ctx context.Context, userID int64) (string, error) {
	name, err := c.client.Get(ctx, c.key(userID)).Result()
	switch {
	case err == nil && name != "":
		return name, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.logger.Warn("name cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	name, err = c.source.DisplayName(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, c.key(userID), name, c.ttl).Err(); err != nil {
		c.logger.Warn("name cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return name, nil
}
