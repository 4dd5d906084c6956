package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/signal-admin/backend/models"
)

// hitScript performs rollover, compare and increment in one server-side step.
// KEYS[1] counter hash; ARGV now_ms, window_ms, max.
// Returns {allowed, count, window_start_ms}.
var hitScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local vals = redis.call("HMGET", KEYS[1], "count", "start")
local count = tonumber(vals[1])
local start = tonumber(vals[2])
if count == nil or start == nil or now - start >= window then
  count = 0
  start = now
end
local allowed = 0
if count < max then
  count = count + 1
  allowed = 1
end
redis.call("HSET", KEYS[1], "count", count, "start", start)
local ttl = window - (now - start)
if ttl < 1 then
  ttl = 1
end
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, count, start}
`)

// CounterStore keeps fixed-window counters in Redis hashes. Keys expire on
// their own when the window ends, so no pruning is needed.
type CounterStore struct {
	client goredis.Scripter
	prefix string
}

// NewCounterStore creates a CounterStore using the "rl:" key prefix
func NewCounterStore(client goredis.Scripter) *CounterStore {
	return &CounterStore{client: client, prefix: "rl:"}
}

// Hit implements repositories.CounterStore
func (s *CounterStore) Hit(ctx context.Context, key string, max int, window time.Duration, now time.Time) (*models.RateLimitCounter, bool, error) {
	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), max).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to run rate limit script: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return nil, false, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}
	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	start, _ := vals[2].(int64)

	return &models.RateLimitCounter{
		Key:             key,
		Count:           int(count),
		WindowStartedAt: time.UnixMilli(start).UTC(),
	}, allowed == 1, nil
}
