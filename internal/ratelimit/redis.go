package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "gatekeeper:ratelimit:"

// hitScript resets the window when it has elapsed, then increments.
// ARGV[1] = now (ms), ARGV[2] = window (ms). Returns {count, start}.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local start = tonumber(redis.call("HGET", KEYS[1], "start"))
if not start or now - start > window then
  start = now
  redis.call("HSET", KEYS[1], "start", start)
  redis.call("HSET", KEYS[1], "count", 0)
end
local count = redis.call("HINCRBY", KEYS[1], "count", 1)
redis.call("PEXPIRE", KEYS[1], window * 2)
return {count, start}
`)

// RedisStore shares windows between processes through Redis.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisStore wraps a Redis client. An empty prefix selects the default.
func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Hit implements Store.
func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key}, now.UnixMilli(), windowMillis).Result()
	if err != nil {
		return Window{}, fmt.Errorf("ratelimit: redis hit: %w", err)
	}
	values, ok := res.([]any)
	if !ok || len(values) != 2 {
		return Window{}, errors.New("ratelimit: unexpected redis response")
	}
	count, ok := values[0].(int64)
	if !ok {
		return Window{}, errors.New("ratelimit: invalid redis counter")
	}
	start, ok := values[1].(int64)
	if !ok {
		return Window{}, errors.New("ratelimit: invalid redis window start")
	}
	return Window{Count: int(count), Start: time.UnixMilli(start)}, nil
}
