package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Each key is a sorted set of hit ids scored by unix milliseconds. Hits at
// or before now-window are trimmed before counting.

var recordScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
local allowed = 0
if count < limit then
	redis.call("ZADD", KEYS[1], now, ARGV[4])
	redis.call("PEXPIRE", KEYS[1], window)
	count = count + 1
	allowed = 1
end
local reset = 0
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
if oldest[2] then
	reset = tonumber(oldest[2]) + window - now
end
return {allowed, count, reset}
`)

var countScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
local reset = 0
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
if oldest[2] then
	reset = tonumber(oldest[2]) + window - now
end
return {count, reset}
`)

// RedisStore shares hit logs across processes.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisClock replaces time.Now as the source of hit timestamps.
func WithRedisClock(now func() time.Time) RedisStoreOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore namespaces keys under prefix (default "ratelimit:").
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...RedisStoreOption) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	s := &RedisStore{client: client, prefix: prefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) RecordIfBelow(ctx context.Context, key, id string, limit int, window time.Duration) (bool, int64, time.Duration, error) {
	args := []any{s.now().UnixMilli(), window.Milliseconds(), limit, id}
	res, err := recordScript.Run(ctx, s.client, []string{s.prefix + key}, args...).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(res) != 3 {
		return false, 0, 0, errors.New("unexpected script reply")
	}
	return res[0] == 1, res[1], ttlFromMillis(res[2]), nil
}

func (s *RedisStore) Count(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	args := []any{s.now().UnixMilli(), window.Milliseconds()}
	res, err := countScript.Run(ctx, s.client, []string{s.prefix + key}, args...).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, errors.New("unexpected script reply")
	}
	return res[0], ttlFromMillis(res[1]), nil
}

func (s *RedisStore) Remove(ctx context.Context, key, id string) error {
	return s.client.ZRem(ctx, s.prefix+key, id).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func ttlFromMillis(ms int64) time.Duration {
	if ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
