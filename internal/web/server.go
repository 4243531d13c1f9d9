// Package web serves the console: server-rendered views over the AstraTickets
// backend, behind the session gate.
package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
	"astraconsole/internal/gate"
	"astraconsole/internal/metrics"
	"astraconsole/internal/session"
	"astraconsole/internal/throttle"
	"astraconsole/internal/workspace"
)

// ChatLimiter caps assistant sends per session. *throttle.RateLimiter
// satisfies it.
type ChatLimiter interface {
	Allow(ctx context.Context, sessionID string, now time.Time) (allowed bool, used int64, resetAt time.Time, err error)
}

type Config struct {
	API        *apiclient.Client
	Sessions   *session.Manager
	Gate       *gate.Gate
	Workspaces *workspace.Registry

	// ChatLimiter and SubmitGuard are optional.
	ChatLimiter ChatLimiter
	SubmitGuard throttle.SubmitGuard

	LoginPerMinute int
	HealthPath     string
	MetricsPath    string
	MetricsHandler http.Handler

	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

type Server struct {
	api        *apiclient.Client
	sessions   *session.Manager
	gate       *gate.Gate
	workspaces *workspace.Registry
	limiter    ChatLimiter
	guard      throttle.SubmitGuard

	loginPerMinute int
	healthPath     string
	metricsPath    string
	metricsHandler http.Handler

	metrics *metrics.Metrics
	logger  zerolog.Logger
	views   *views
	now     func() time.Time
}

func New(cfg Config) (*Server, error) {
	if cfg.API == nil {
		return nil, errors.New("web: api client is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("web: session manager is required")
	}
	if cfg.Gate == nil {
		cfg.Gate = gate.New(gate.Config{Metrics: cfg.Metrics, Logger: cfg.Logger})
	}
	if cfg.Workspaces == nil {
		cfg.Workspaces = workspace.NewRegistry(0)
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/healthz"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	return &Server{
		api:            cfg.API,
		sessions:       cfg.Sessions,
		gate:           cfg.Gate,
		workspaces:     cfg.Workspaces,
		limiter:        cfg.ChatLimiter,
		guard:          cfg.SubmitGuard,
		loginPerMinute: cfg.LoginPerMinute,
		healthPath:     cfg.HealthPath,
		metricsPath:    cfg.MetricsPath,
		metricsHandler: cfg.MetricsHandler,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		views:          v,
		now:            time.Now,
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger, s.sessions.CookieName()))
	r.Use(Recoverer(s.logger))
	r.Use(middleware.StripSlashes)

	r.Get(s.healthPath, s.health)
	if s.metricsHandler != nil {
		r.Handle(s.metricsPath, s.metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(s.gate.Guest)
			r.Get("/login", s.loginPage)
			if s.loginPerMinute > 0 {
				r.With(httprate.LimitByIP(s.loginPerMinute, time.Minute)).Post("/login", s.login)
			} else {
				r.Post("/login", s.login)
			}
			r.Get("/register", s.registerPage)
			r.Post("/register", s.register)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.gate.Protect)

			r.Post("/logout", s.logout)

			r.Get("/", s.home)
			r.Post("/settings/ai", s.saveAIConfig)
			r.Post("/assistant/send", s.sendChat)
			r.Post("/assistant/reset", s.resetChat)

			r.Route("/tickets", func(r chi.Router) {
				r.Get("/", s.listTickets)
				r.Get("/new", s.newTicketPage)
				r.Post("/new", s.createTicket)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.ticketDetail)
					r.Post("/edit", s.updateTicket)
					r.Get("/delete", s.confirmDeleteTicket)
					r.Post("/delete", s.deleteTicket)
					r.Post("/replies", s.addReply)
					r.Post("/messages", s.addMessage)
					r.Post("/suggest", s.suggest)
				})
			})

			r.Get("/users", s.listUsers)
			r.Post("/users", s.createUser)

			r.Get("/dashboard", s.dashboard)

			r.Route("/kb", func(r chi.Router) {
				r.Get("/", s.kbPage)
				r.Post("/ingest", s.kbIngest)
				r.Post("/search", s.kbSearch)
				r.Post("/delete", s.kbDelete)
				r.Post("/select", s.kbSelect)
				r.Post("/clear", s.kbClear)
				r.Post("/delete-selected", s.kbDeleteSelected)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.listChatSessions)
				r.Post("/", s.createChatSession)
				r.Get("/{id}", s.chatSession)
				r.Post("/{id}/messages", s.sendSessionMessage)
				r.Post("/{id}/delete", s.deleteChatSession)
			})
		})

		r.NotFound(s.gate.Fallback())
		r.MethodNotAllowed(s.gate.Fallback())
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// backend returns a resource client that reads the caller's token at send
// time.
func (s *Server) backend(r *http.Request) *astra.Client {
	if sess := session.FromContext(r.Context()); sess != nil {
		return astra.New(s.api, sess)
	}
	return astra.New(s.api, apiclient.NoToken)
}

func (s *Server) workspace(r *http.Request) *workspace.Workspace {
	if sess := session.FromContext(r.Context()); sess != nil {
		return s.workspaces.Get(sess.ID())
	}
	return s.workspaces.Get("")
}

func (s *Server) flash(r *http.Request, kind, text string) {
	s.workspace(r).Notify(kind, text)
}

func (s *Server) seeOther(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type page struct {
	Title         string
	Section       string
	Authenticated bool
	User          string
	Notices       []workspace.Notice
	Data          any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	s.renderStatus(w, r, http.StatusOK, name, title, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	p := page{
		Title:   title,
		Section: strings.SplitN(name, "_", 2)[0],
		Data:    data,
	}
	ws := s.workspace(r)
	if gate.Authenticated(r) {
		p.Authenticated = true
		p.User = ws.UserLabel()
		if p.User == "" {
			p.User = "Signed in"
		}
	}
	p.Notices = ws.TakeNotices()

	var buf bytes.Buffer
	if err := s.views.execute(&buf, name, p); err != nil {
		s.logger.Error().Err(err).Str("view", name).Msg("render view")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func formInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.FormValue(key)))
	if err != nil {
		return def
	}
	return v
}

func formInt64(r *http.Request, key string) int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(r.FormValue(key)), 10, 64)
	return v
}

func formBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.FormValue(key))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
