package gate

import (
	"net/http"

	"github.com/rs/zerolog"

	"astraconsole/internal/metrics"
	"astraconsole/internal/session"
)

type Config struct {
	LoginPath string
	HomePath  string
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Gate routes on token presence only. It runs ahead of every protected view,
// so no view fetches data for an anonymous caller.
type Gate struct {
	loginPath string
	homePath  string
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func New(cfg Config) *Gate {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	return &Gate{
		loginPath: cfg.LoginPath,
		homePath:  cfg.HomePath,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

func Authenticated(r *http.Request) bool {
	s := session.FromContext(r.Context())
	return s != nil && s.Authenticated()
}

// Protect sends anonymous callers to the login view.
func (g *Gate) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Authenticated(r) {
			g.redirect(w, r, g.loginPath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Guest keeps signed-in callers away from login and register.
func (g *Gate) Guest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Authenticated(r) {
			g.redirect(w, r, g.homePath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Fallback handles unknown paths: home when Authenticated, login otherwise.
func (g *Gate) Fallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if Authenticated(r) {
			g.redirect(w, r, g.homePath)
			return
		}
		g.redirect(w, r, g.loginPath)
	}
}

func (g *Gate) redirect(w http.ResponseWriter, r *http.Request, target string) {
	g.metrics.ObserveRedirect(target)
	g.logger.Debug().Str("path", r.URL.Path).Str("target", target).Msg("gate redirect")
	http.Redirect(w, r, target, http.StatusFound)
}
