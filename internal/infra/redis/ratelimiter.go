package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/push-fanout/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	quotaWindow  = time.Second
	minWaitSlice = 5 * time.Millisecond
	quotaPrefix  = "push-fanout:gateway-quota"
)

// quotaScript takes one slot from the bucket's window and returns {granted, ms until reset}.
var quotaScript = goredis.NewScript(`
local used = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  ttl = tonumber(ARGV[2])
end
if used > tonumber(ARGV[1]) then
  return {0, ttl}
end
return {1, ttl}
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter caps gateway sends per window across every api and worker process sharing Redis.
type RedisRateLimiter struct {
	client *goredis.Client
	limit  int64
	window time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limitPerSec)
	}

	return &RedisRateLimiter{
		client: client,
		limit:  int64(limitPerSec),
		window: quotaWindow,
		sleep:  sleepWithContext,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, bucket string) (bool, error) {
	granted, _, err := r.take(ctx, bucket)
	return granted, err
}

// Wait sleeps until the current window resets whenever the bucket is exhausted.
func (r *RedisRateLimiter) Wait(ctx context.Context, bucket string) error {
	for {
		granted, reset, err := r.take(ctx, bucket)
		if err != nil {
			return err
		}
		if granted {
			return nil
		}

		if reset < minWaitSlice {
			reset = minWaitSlice
		}
		if err := r.sleep(ctx, reset); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) take(ctx context.Context, bucket string) (bool, time.Duration, error) {
	if r == nil || r.client == nil {
		return false, 0, fmt.Errorf("rate limiter is not initialized")
	}

	key, err := quotaKey(bucket)
	if err != nil {
		return false, 0, err
	}

	reply, err := quotaScript.Run(ctx, r.client, []string{key}, r.limit, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed to evaluate gateway quota: %w", err)
	}
	if len(reply) != 2 {
		return false, 0, fmt.Errorf("unexpected gateway quota reply %v", reply)
	}

	return reply[0] == 1, time.Duration(reply[1]) * time.Millisecond, nil
}

func quotaKey(bucket string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(bucket))
	if normalized == "" {
		return "", fmt.Errorf("bucket is required")
	}
	return quotaPrefix + ":" + normalized, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
