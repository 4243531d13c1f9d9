package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
	"astraconsole/internal/config"
	"astraconsole/internal/crypto"
	"astraconsole/internal/gate"
	"astraconsole/internal/metrics"
	"astraconsole/internal/prefs"
	"astraconsole/internal/session"
	"astraconsole/internal/storage"
	"astraconsole/internal/throttle"
	"astraconsole/internal/web"
	"astraconsole/internal/workspace"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	listen := flag.String("listen", "", "listen address, overrides LISTEN_ADDR")
	check := flag.Bool("check", false, "check backend health and exit")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatal().Err(err).Msg("failed to load env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	setupLogger(cfg.Log.Level)
	m := metrics.Global()
	api := apiclient.New(apiclient.Config{
		BaseURL:     cfg.Backend.URL,
		Prefix:      cfg.Backend.Prefix,
		Timeout:     cfg.Backend.Timeout,
		MaxRetries:  cfg.Backend.MaxRetries,
		BackoffBase: cfg.Backend.BackoffBase,
		Metrics:     m,
		Logger:      log.Logger,
	})

	if *check {
		os.Exit(checkBackend(api, cfg.Backend.URL))
	}

	log.Info().
		Str("listen", cfg.ListenAddr).
		Str("backend", cfg.Backend.URL+cfg.Backend.Prefix).
		Str("storage", cfg.Storage.Driver).
		Bool("sealed", cfg.Crypto.Enabled()).
		Int64("chat_per_hour", cfg.Rate.ChatPerHour).
		Msg("starting astraconsole")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
	}

	var store storage.Store
	store, err = storage.Open(ctx, storage.Options{
		Driver:      cfg.Storage.Driver,
		DSN:         cfg.Storage.DSN,
		AutoMigrate: cfg.Storage.AutoMigrate,
		Redis:       rdb,
		TTL:         cfg.Session.TTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	if cfg.Crypto.Enabled() {
		sealer, err := crypto.NewSealer(cfg.Crypto.CurrentKeyID, cfg.Crypto.Keys)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize sealer")
		}
		store = crypto.NewSealedStore(store, sealer, log.Logger)
	}

	var guard throttle.SubmitGuard = throttle.NewMemorySubmitGuard(cfg.Session.SubmitGuardTTL)
	if rdb != nil {
		guard = throttle.NewRedisSubmitGuard(rdb, cfg.Session.SubmitGuardTTL)
	}

	workspaces := workspace.NewRegistry(cfg.Session.WorkspaceIdleTTL)
	go workspaces.Run(ctx, 0)

	webCfg := web.Config{
		API: api,
		Sessions: session.NewManager(session.ManagerConfig{
			Store:      store,
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.CookieSecure,
			TTL:        cfg.Session.TTL,
			CarryKeys:  []string{prefs.StorageKey},
			Logger:     log.Logger,
		}),
		Gate:           gate.New(gate.Config{Metrics: m, Logger: log.Logger}),
		Workspaces:     workspaces,
		SubmitGuard:    guard,
		LoginPerMinute: cfg.Rate.LoginPerMinute,
		HealthPath:     cfg.Endpoints.HealthPath,
		MetricsPath:    cfg.Endpoints.MetricsPath,
		MetricsHandler: promhttp.Handler(),
		Metrics:        m,
		Logger:         log.Logger,
	}
	if cfg.Rate.ChatPerHour > 0 {
		webCfg.ChatLimiter = throttle.NewRateLimiter(rdb, cfg.Rate.ChatPerHour)
	}
	srv, err := web.New(webCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build web server")
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Backend.Timeout + 30*time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}
	log.Info().Msg("stopped")
}

func checkBackend(api *apiclient.Client, url string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h, err := astra.New(api, apiclient.NoToken).Health(ctx)
	if err != nil {
		log.Error().Err(err).Str("backend", url).Msg("backend health check failed")
		return 1
	}
	log.Info().Str("backend", url).Str("status", h.Status).Msg("backend healthy")
	return 0
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
