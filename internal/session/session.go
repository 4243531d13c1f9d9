package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"astraconsole/internal/storage"
)

// TokenKey is the stored slot holding the bearer token.
const TokenKey = "token"

var ErrEmptyToken = errors.New("token is empty")

// Session is one browser's client state. It is Authenticated while a token is
// present and Anonymous otherwise; presence is the only check made.
type Session struct {
	id    string
	store storage.Store

	mu       sync.RWMutex
	token    string
	hasToken bool
}

type ctxKey struct{}

// Load reads the session's token from store. A read failure leaves the
// session Anonymous and is returned so the caller can log it.
func Load(ctx context.Context, store storage.Store, id string) (*Session, error) {
	s := &Session{id: id, store: store}
	token, found, err := store.Get(ctx, id, TokenKey)
	if err != nil {
		return s, err
	}
	if found && strings.TrimSpace(token) != "" {
		s.token, s.hasToken = token, true
	}
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CurrentToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.hasToken
}

func (s *Session) Authenticated() bool {
	_, ok := s.CurrentToken()
	return ok
}

func (s *Session) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.store.Set(ctx, s.id, TokenKey, token); err != nil {
		return err
	}
	s.mu.Lock()
	s.token, s.hasToken = token, true
	s.mu.Unlock()
	return nil
}

// ClearToken drops the token locally even when the store delete fails, so
// the rest of the request runs Anonymous.
func (s *Session) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	s.token, s.hasToken = "", false
	s.mu.Unlock()
	return s.store.Delete(ctx, s.id, TokenKey)
}

func (s *Session) Value(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.id, key)
}

func (s *Session) SetValue(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.id, key, value)
}

func (s *Session) DeleteValue(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.id, key)
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
