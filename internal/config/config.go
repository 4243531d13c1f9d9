package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrInvalidStorageDriver = errors.New("STORAGE_DRIVER must be one of memory, redis, sqlite, postgres")
	ErrMissingDatabaseDSN   = errors.New("DB_DSN is required for sql storage drivers")
	ErrMissingRedisAddr     = errors.New("REDIS_ADDR is required for redis storage or chat throttling")
	ErrInvalidBackendURL    = errors.New("BACKEND_URL must be an absolute http(s) url")
)

type Config struct {
	ListenAddr string

	Backend   BackendConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Session   SessionConfig
	Rate      RateConfig
	Crypto    CryptoConfig
	Endpoints EndpointsConfig
	Log       LogConfig
}

type BackendConfig struct {
	URL         string
	Prefix      string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
}

type StorageConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SessionConfig struct {
	CookieName       string
	CookieSecure     bool
	TTL              time.Duration
	WorkspaceIdleTTL time.Duration
	SubmitGuardTTL   time.Duration
}

type RateConfig struct {
	ChatPerHour    int64
	LoginPerMinute int
}

// CryptoConfig is empty when no master key is configured; values are then
// stored unsealed.
type CryptoConfig struct {
	CurrentKeyID string
	Keys         map[string][]byte
}

func (c CryptoConfig) Enabled() bool {
	return len(c.Keys) > 0
}

type EndpointsConfig struct {
	HealthPath  string
	MetricsPath string
}

type LogConfig struct {
	Level string
}

// LoadEnvFile loads a dotenv file into the process environment. Variables
// that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr: mustEnv("LISTEN_ADDR", ":3000"),
		Backend: BackendConfig{
			URL:         strings.TrimSuffix(mustEnv("BACKEND_URL", "http://localhost:8000"), "/"),
			Prefix:      "/" + strings.Trim(mustEnv("BACKEND_PREFIX", "/api"), "/"),
			Timeout:     mustDuration("BACKEND_TIMEOUT", 30*time.Second),
			MaxRetries:  mustInt("BACKEND_MAX_RETRIES", 0),
			BackoffBase: mustDuration("BACKEND_BACKOFF_BASE", 400*time.Millisecond),
		},
		Storage: StorageConfig{
			Driver:      normalizeDriver(mustEnv("STORAGE_DRIVER", DriverMemory)),
			DSN:         mustEnv("DB_DSN", ""),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     mustEnv("REDIS_ADDR", ""),
			Password: mustEnv("REDIS_PASSWORD", ""),
			DB:       mustInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			CookieName:       mustEnv("SESSION_COOKIE", "astra_session"),
			CookieSecure:     mustBool("COOKIE_SECURE", false),
			TTL:              mustDuration("SESSION_TTL", 0),
			WorkspaceIdleTTL: mustDuration("WORKSPACE_IDLE_TTL", 2*time.Hour),
			SubmitGuardTTL:   mustDuration("SUBMIT_GUARD_TTL", 10*time.Minute),
		},
		Rate: RateConfig{
			ChatPerHour:    mustInt64("CHAT_RATE_PER_HOUR", 0),
			LoginPerMinute: mustInt("LOGIN_RATE_PER_MINUTE", 20),
		},
		Endpoints: EndpointsConfig{
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.Backend.Prefix == "/" {
		cfg.Backend.Prefix = ""
	}
	u, err := url.Parse(cfg.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidBackendURL
	}

	switch cfg.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverSQLite, DriverPostgres:
		if cfg.Storage.DSN == "" {
			return nil, ErrMissingDatabaseDSN
		}
	default:
		return nil, ErrInvalidStorageDriver
	}
	if cfg.NeedsRedis() && cfg.Redis.Addr == "" {
		return nil, ErrMissingRedisAddr
	}

	cc, err := loadCryptoConfig()
	if err != nil {
		return nil, err
	}
	cfg.Crypto = cc

	return cfg, nil
}

// NeedsRedis reports whether a redis connection is mandatory for this config.
func (c *Config) NeedsRedis() bool {
	return c.Storage.Driver == DriverRedis || c.Rate.ChatPerHour > 0
}

func normalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	switch d {
	case "postgres", "pgx", "postgresql":
		return DriverPostgres
	case "sqlite", "sqlite3":
		return DriverSQLite
	default:
		return d
	}
}

func loadCryptoConfig() (CryptoConfig, error) {
	keysB64 := map[string]string{}

	if raw := mustEnv("MASTER_KEYS_JSON", ""); raw != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return CryptoConfig{}, fmt.Errorf("parse MASTER_KEYS_JSON: %w", err)
		}
		for id, val := range parsed {
			if strings.TrimSpace(id) == "" || strings.TrimSpace(val) == "" {
				continue
			}
			keysB64[id] = val
		}
	}

	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if !strings.HasPrefix(k, "MASTER_KEY_") || !strings.HasSuffix(k, "_B64") || k == "MASTER_KEY_B64" {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, "MASTER_KEY_"), "_B64")
		if id == "" || v == "" {
			continue
		}
		keysB64[id] = v
	}

	current := mustEnv("MASTER_KEY_CURRENT_ID", "")
	if singleton := mustEnv("MASTER_KEY_B64", ""); singleton != "" {
		if current == "" {
			current = "default"
		}
		keysB64[current] = singleton
	}

	if len(keysB64) == 0 {
		return CryptoConfig{}, nil
	}

	keys := make(map[string][]byte, len(keysB64))
	for id, b64 := range keysB64 {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return CryptoConfig{}, fmt.Errorf("decode master key %q: %w", id, err)
		}
		if len(raw) != 32 {
			return CryptoConfig{}, fmt.Errorf("master key %q must be 32 bytes after base64 decode", id)
		}
		keys[id] = raw
	}

	if current == "" {
		if len(keys) > 1 {
			return CryptoConfig{}, fmt.Errorf("MASTER_KEY_CURRENT_ID is required when several master keys are set")
		}
		for id := range keys {
			current = id
		}
	}
	if _, ok := keys[current]; !ok {
		return CryptoConfig{}, fmt.Errorf("MASTER_KEY_CURRENT_ID=%q does not exist in provided keys", current)
	}

	return CryptoConfig{
		CurrentKeyID: current,
		Keys:         keys,
	}, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustInt64(key string, def int64) int64 {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
