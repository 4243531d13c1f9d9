package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// chatCountScript bumps the window counter and arms its expiry on the first
// send only, so later sends never extend the window.
var chatCountScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RateLimiter caps AI chat sends per session. Windows are aligned to the UTC
// clock hour, which is what lets the transcript tell the user the exact
// HH:MM the budget comes back. A rotated session id starts a fresh count.
type RateLimiter struct {
	redis *redis.Client
	limit int64
}

func NewRateLimiter(rdb *redis.Client, limit int64) *RateLimiter {
	return &RateLimiter{redis: rdb, limit: limit}
}

// chatWindow names the counter for the hour containing now and returns the
// seconds left until that hour ends (at least 1).
func chatWindow(sessionID string, now time.Time) (key string, ttl int64, resetAt time.Time) {
	hour := now.UTC().Truncate(time.Hour)
	resetAt = hour.Add(time.Hour)
	ttl = max(int64(resetAt.Sub(now.UTC())/time.Second), 1)
	return "astraconsole:chatrate:" + sessionID + ":" + hour.Format("2006010215"), ttl, resetAt
}

// Allow records one send and reports whether it fits the hour's budget.
// used counts this send; resetAt is the start of the next hour.
func (r *RateLimiter) Allow(ctx context.Context, sessionID string, now time.Time) (allowed bool, used int64, resetAt time.Time, err error) {
	key, ttl, resetAt := chatWindow(sessionID, now)
	used, err = chatCountScript.Run(ctx, r.redis, []string{key}, ttl).Int64()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("count chat send: %w", err)
	}
	return used <= r.limit, used, resetAt, nil
}

// SubmitGuard admits each form nonce once, so a double-clicked or replayed
// create form does not create twice.
type SubmitGuard interface {
	MarkFirst(ctx context.Context, nonce string) (bool, error)
}

type RedisSubmitGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSubmitGuard(rdb *redis.Client, ttl time.Duration) *RedisSubmitGuard {
	return &RedisSubmitGuard{redis: rdb, ttl: ttl}
}

func (g *RedisSubmitGuard) MarkFirst(ctx context.Context, nonce string) (bool, error) {
	key := fmt.Sprintf("astraconsole:submit:%s", nonce)
	ok, err := g.redis.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("submit guard setnx: %w", err)
	}
	return ok, nil
}

type MemorySubmitGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemorySubmitGuard(ttl time.Duration) *MemorySubmitGuard {
	return &MemorySubmitGuard{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemorySubmitGuard) MarkFirst(_ context.Context, nonce string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, exp := range g.seen {
		if now.After(exp) {
			delete(g.seen, k)
		}
	}
	if _, dup := g.seen[nonce]; dup {
		return false, nil
	}
	g.seen[nonce] = now.Add(g.ttl)
	return true, nil
}
