package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"astraconsole/internal/session"
)

// RequestLogger logs one line per request. The session is identified by
// the hashed ShortID of its cookie only.
func RequestLogger(l zerolog.Logger, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := l.Debug()
			if status >= http.StatusInternalServerError {
				ev = l.Error()
			}
			ev = ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start))
			if c, err := r.Cookie(cookieName); err == nil {
				ev = ev.Str("session", session.ShortID(c.Value))
			}
			ev.Msg("request")
		})
	}
}

func Recoverer(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					l.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic")
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
