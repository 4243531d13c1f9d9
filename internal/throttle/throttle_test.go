package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimiterAllow(t *testing.T) {
	_, rdb := newRedis(t)
	rl := NewRateLimiter(rdb, 2)
	now := time.Date(2026, 2, 13, 10, 15, 0, 0, time.UTC)

	for i, wantAllowed := range []bool{true, true, false} {
		allowed, used, resetAt, err := rl.Allow(context.Background(), "sess-1", now)
		if err != nil {
			t.Fatalf("allow#%d: %v", i+1, err)
		}
		if allowed != wantAllowed || used != int64(i+1) {
			t.Fatalf("allow#%d: expected allowed=%v used=%d, got allowed=%v used=%d", i+1, wantAllowed, i+1, allowed, used)
		}
		if !resetAt.Equal(time.Date(2026, 2, 13, 11, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected reset time %v", resetAt)
		}
	}

	allowed, _, _, err := rl.Allow(context.Background(), "sess-2", now)
	if err != nil || !allowed {
		t.Fatalf("other sessions have their own budget, allowed=%v err=%v", allowed, err)
	}
	allowed, _, _, err = rl.Allow(context.Background(), "sess-1", now.Add(time.Hour))
	if err != nil || !allowed {
		t.Fatalf("next window starts fresh, allowed=%v err=%v", allowed, err)
	}
}

func TestSubmitGuards(t *testing.T) {
	_, rdb := newRedis(t)
	guards := map[string]SubmitGuard{
		"redis":  NewRedisSubmitGuard(rdb, time.Minute),
		"memory": NewMemorySubmitGuard(time.Minute),
	}
	for name, g := range guards {
		first, err := g.MarkFirst(context.Background(), "nonce-1")
		if err != nil || !first {
			t.Fatalf("%s: expected first submit admitted, got %v %v", name, first, err)
		}
		again, err := g.MarkFirst(context.Background(), "nonce-1")
		if err != nil || again {
			t.Fatalf("%s: expected replay rejected, got %v %v", name, again, err)
		}
	}
}

func TestMemorySubmitGuardExpires(t *testing.T) {
	g := NewMemorySubmitGuard(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	if ok, _ := g.MarkFirst(context.Background(), "n"); !ok {
		t.Fatalf("expected first mark")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := g.MarkFirst(context.Background(), "n"); !ok {
		t.Fatalf("expected nonce usable again after ttl")
	}
}

func TestChatWindowAlignsToClockHour(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 59, 59, 500_000_000, time.FixedZone("CET", 3600))
	key, ttl, resetAt := chatWindow("sid", now)
	if key != "astraconsole:chatrate:sid:2026030113" {
		t.Fatalf("expected the UTC hour in the key, got %s", key)
	}
	if ttl != 1 {
		t.Fatalf("expected the ttl floored to 1s, got %d", ttl)
	}
	if want := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC); !resetAt.Equal(want) {
		t.Fatalf("expected reset at %s, got %s", want, resetAt)
	}
}
