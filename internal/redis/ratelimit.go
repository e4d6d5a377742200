package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-booking/internal/ratelimit"
)

// Fixed window counter shared by every API replica. Returns the count after
// this hit and the window's remaining ttl in milliseconds.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (ratelimit.Result, error) {
	if l.limit <= 0 {
		return ratelimit.Result{Allowed: true}, nil
	}

	vals, err := hitScript.Run(ctx, l.client, []string{fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("rate limit hit: %w", err)
	}
	if len(vals) != 2 {
		return ratelimit.Result{}, fmt.Errorf("rate limit hit: unexpected reply %v", vals)
	}

	count, ttl := int(vals[0]), time.Duration(vals[1])*time.Millisecond
	res := ratelimit.Result{Limit: l.limit}
	if count > l.limit {
		res.RetryAfter = ttl
		return res, nil
	}

	res.Allowed = true
	res.Remaining = l.limit - count
	return res, nil
}

var _ ratelimit.Limiter = (*RateLimiter)(nil)
