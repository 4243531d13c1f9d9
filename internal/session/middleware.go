package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"astraconsole/internal/storage"
)

const defaultCookieAge = 400 * 24 * time.Hour

var ErrNoSession = errors.New("no session in request context")

type ManagerConfig struct {
	Store      storage.Store
	CookieName string
	Secure     bool
	TTL        time.Duration

	// CarryKeys are the stored keys moved to the new id on Rotate, in
	// addition to the token.
	CarryKeys []string
	Logger    zerolog.Logger
}

type Manager struct {
	store      storage.Store
	cookieName string
	secure     bool
	maxAge     time.Duration
	carry      []string
	logger     zerolog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "astra_session"
	}
	maxAge := cfg.TTL
	if maxAge <= 0 {
		maxAge = defaultCookieAge
	}
	return &Manager{
		store:      cfg.Store,
		cookieName: cfg.CookieName,
		secure:     cfg.Secure,
		maxAge:     maxAge,
		carry:      append([]string{TokenKey}, cfg.CarryKeys...),
		logger:     cfg.Logger,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// Middleware attaches the caller's Session to the request context, issuing a
// fresh session id when the cookie is missing or not one of ours.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(m.cookieName); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		m.setCookie(w, id)

		sess, err := Load(r.Context(), m.store, id)
		if err != nil {
			m.logger.Warn().Err(err).Str("session", ShortID(id)).Msg("failed to load session token")
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// Rotate moves the caller's stored values to a fresh session id, deletes them
// under the old id and reissues the cookie. The returned request carries the
// new Session. A value that cannot be read is dropped.
func (m *Manager) Rotate(w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	ctx := r.Context()
	old := FromContext(ctx)
	if old == nil {
		return r, ErrNoSession
	}
	id := uuid.NewString()
	for _, key := range m.carry {
		v, found, err := m.store.Get(ctx, old.id, key)
		if err != nil {
			m.logger.Warn().Err(err).Str("session", ShortID(old.id)).Str("key", key).Msg("drop unreadable value on rotate")
			continue
		}
		if !found {
			continue
		}
		if err := m.store.Set(ctx, id, key, v); err != nil {
			return r, fmt.Errorf("copy %s to rotated session: %w", key, err)
		}
	}
	for _, key := range m.carry {
		if err := m.store.Delete(ctx, old.id, key); err != nil {
			m.logger.Warn().Err(err).Str("session", ShortID(old.id)).Str("key", key).Msg("delete value of rotated session")
		}
	}
	m.setCookie(w, id)

	sess, err := Load(ctx, m.store, id)
	if err != nil {
		return r, fmt.Errorf("load rotated session: %w", err)
	}
	return r.WithContext(WithSession(ctx, sess)), nil
}

// setCookie replaces any session cookie already queued on w.
func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	h := w.Header()
	if queued := h.Values("Set-Cookie"); len(queued) > 0 {
		h.Del("Set-Cookie")
		for _, v := range queued {
			if !strings.HasPrefix(v, m.cookieName+"=") {
				h.Add("Set-Cookie", v)
			}
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.maxAge.Seconds()),
	})
}

// ShortID is a log-safe tag for a session id: the first 8 hex chars of its
// sha256.
func ShortID(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:4])
}
