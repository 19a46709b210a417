// Package ratelimit bounds inference traffic per client with a Redis
// sliding window. Without Redis the limiter is a no-op; rate limiting is
// protective, not load-bearing.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// NoopLimiter admits everything. Used when Redis is not configured.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) bool { return true }

// RedisLimiter implements a sliding one-minute window on a sorted set per
// key. It fails open: a Redis error admits the request rather than taking
// the service down with the cache.
type RedisLimiter struct {
	client    *redis.Client
	perMinute int
	log       *slog.Logger
}

func NewRedisLimiter(client *redis.Client, perMinute int, log *slog.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, perMinute: perMinute, log: log}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	now := time.Now()
	windowStart := now.Add(-time.Minute)
	redisKey := "ratelimit:" + key

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("rate limit check failed, admitting request", "error", err)
		return true
	}

	if countCmd.Val() >= int64(l.perMinute) {
		return false
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	pipe = l.client.Pipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, redisKey, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("rate limit update failed, admitting request", "error", err)
	}
	return true
}
