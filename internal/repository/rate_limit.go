package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"meal_planner/pkg/logger"
)

type RateLimitRepository interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

// Hit bumps the fixed-window counter for key and returns its new value.
// The window TTL is set only when the key is first created.
func (r *rateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Failed to hit rate limit counter", "key", key, "error", err)
		return 0, err
	}

	return incr.Val(), nil
}
