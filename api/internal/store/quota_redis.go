package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tradepost-ocr/api/internal/quota"
)

// KEYS[1] counter; ARGV limit, ttl until the next UTC day (ms).
var dailyScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
  return {0, n}
end
n = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return {1, n}
`)

// KEYS[1] sorted set of admissions; ARGV now(ms), window(ms), limit, member.
var slidingScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local n = redis.call('ZCARD', KEYS[1])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then first = tonumber(oldest[2]) end
if n >= tonumber(ARGV[3]) then
  return {0, n, first}
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, n + 1, first}
`)

// RedisQuota keeps quota counters in Redis so every instance shares them.
type RedisQuota struct {
	rdb    *redis.Client
	policy quota.Policy
	prefix string
	now    func() time.Time
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisQuota(rdb *redis.Client, p quota.Policy, now func() time.Time) (*RedisQuota, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &RedisQuota{rdb: rdb, policy: p, prefix: "ocr_quota:", now: now}, nil
}

func (r *RedisQuota) Take(ctx context.Context, identity string) (quota.Decision, error) {
	if r.policy.Strategy == quota.Sliding {
		return r.takeSliding(ctx, identity)
	}
	return r.takeDaily(ctx, identity)
}

func (r *RedisQuota) dailyKey(identity string, now time.Time) string {
	return r.prefix + "daily:" + identity + ":" + quota.DayKey(now)
}

func (r *RedisQuota) slidingKey(identity string) string {
	return r.prefix + "sliding:" + identity
}

func (r *RedisQuota) takeDaily(ctx context.Context, identity string) (quota.Decision, error) {
	now := r.now()
	reset := quota.NextDay(now)
	res, err := dailyScript.Run(ctx, r.rdb,
		[]string{r.dailyKey(identity, now)},
		r.policy.Limit, reset.Sub(now).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return quota.Decision{}, fmt.Errorf("redis daily quota: %w", err)
	}
	if len(res) != 2 {
		return quota.Decision{}, fmt.Errorf("redis daily quota: unexpected reply %v", res)
	}
	d := quota.Decision{Allowed: res[0] == 1, Limit: r.policy.Limit, ResetAt: reset, RetryAfter: reset.Sub(now)}
	if d.Allowed {
		d.Remaining = r.policy.Limit - int(res[1])
	}
	return d, nil
}

func (r *RedisQuota) takeSliding(ctx context.Context, identity string) (quota.Decision, error) {
	now := r.now()
	window := r.policy.Window
	res, err := slidingScript.Run(ctx, r.rdb,
		[]string{r.slidingKey(identity)},
		now.UnixMilli(), window.Milliseconds(), r.policy.Limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return quota.Decision{}, fmt.Errorf("redis sliding quota: %w", err)
	}
	if len(res) != 3 {
		return quota.Decision{}, fmt.Errorf("redis sliding quota: unexpected reply %v", res)
	}
	reset := time.UnixMilli(res[2]).Add(window)
	d := quota.Decision{
		Allowed:    res[0] == 1,
		Limit:      r.policy.Limit,
		ResetAt:    reset,
		RetryAfter: reset.Sub(now),
	}
	if d.Allowed {
		d.Remaining = r.policy.Limit - int(res[1])
	}
	return d, nil
}
