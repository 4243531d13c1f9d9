package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "sess-1", "token"); err != nil || found {
		t.Fatalf("expected empty store, found=%v err=%v", found, err)
	}
	if err := s.Set(ctx, "sess-1", "token", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "sess-1", "token", "def"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := s.Set(ctx, "sess-2", "token", "other"); err != nil {
		t.Fatalf("set second session: %v", err)
	}

	v, found, err := s.Get(ctx, "sess-1", "token")
	if err != nil || !found || v != "def" {
		t.Fatalf("expected last written value, got %q found=%v err=%v", v, found, err)
	}
	v, _, _ = s.Get(ctx, "sess-2", "token")
	if v != "other" {
		t.Fatalf("sessions must not share values, got %q", v)
	}

	if err := s.Delete(ctx, "sess-1", "token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := s.Get(ctx, "sess-1", "token"); found {
		t.Fatalf("expected value gone after delete")
	}
	if err := s.Delete(ctx, "sess-1", "token"); err != nil {
		t.Fatalf("deleting a missing value should succeed: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "console.db")
	s, err := Open(context.Background(), Options{Driver: "sqlite3", DSN: dsn, AutoMigrate: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s, err := Open(context.Background(), Options{Driver: "redis", Redis: rdb, TTL: time.Hour})
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	exerciseStore(t, s)

	if err := s.Set(context.Background(), "sess-3", "token", "x"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("astraconsole:session:sess-3"); ttl != time.Hour {
		t.Fatalf("expected ttl refreshed on write, got %v", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if _, found, _ := s.Get(context.Background(), "sess-3", "token"); found {
		t.Fatalf("expected value expired")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "mongo"}); !errors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected ErrUnsupportedDriver, got %v", err)
	}
	if _, err := Open(context.Background(), Options{Driver: "redis"}); !errors.Is(err, ErrMissingRedis) {
		t.Fatalf("expected ErrMissingRedis, got %v", err)
	}
}
