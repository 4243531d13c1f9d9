package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
	ErrMissingRedis      = errors.New("redis storage requires a redis client")
)

// Store keeps the small string values a browser session owns, such as its
// bearer token and AI client settings. Values never expire unless the driver
// was given a TTL.
type Store interface {
	Get(ctx context.Context, sessionID, key string) (value string, found bool, err error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID, key string) error
	Close() error
}

type Options struct {
	Driver      string
	DSN         string
	AutoMigrate bool
	Redis       *redis.Client
	TTL         time.Duration
}

func Open(ctx context.Context, opts Options) (Store, error) {
	switch driver := normalizeDriver(opts.Driver); driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if opts.Redis == nil {
			return nil, ErrMissingRedis
		}
		return NewRedisStore(opts.Redis, opts.TTL), nil
	case "postgres", "sqlite":
		return OpenSQL(ctx, driver, opts.DSN, opts.AutoMigrate)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, opts.Driver)
	}
}

func normalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	switch d {
	case "postgres", "pgx", "postgresql":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return d
	}
}
