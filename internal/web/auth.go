package web

import (
	"net/http"
	"strings"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
	"astraconsole/internal/session"
	"astraconsole/internal/workspace"
)

type authForm struct {
	Email string
	Name  string
	Error string
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login", "Sign in", authForm{})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	form := authForm{Email: strings.TrimSpace(r.FormValue("username"))}

	tok, err := astra.New(s.api, apiclient.NoToken).Login(ctx, form.Email, r.FormValue("password"))
	if err == nil {
		r, err = s.sessions.Rotate(w, r)
	}
	if err == nil {
		s.workspaces.Reset(sess.ID())
		ctx = r.Context()
		sess = session.FromContext(ctx)
		err = sess.SetToken(ctx, tok.AccessToken)
	}
	if err != nil {
		s.metrics.ObserveLogin("failure")
		s.logger.Info().Err(err).Str("session", session.ShortID(sess.ID())).Msg("login failed")
		form.Error = apiclient.MessageOr(err, "Login failed.")
		s.renderStatus(w, r, http.StatusUnauthorized, "login", "Sign in", form)
		return
	}
	s.metrics.ObserveLogin("success")

	ws := s.workspace(r)
	if me, err := s.backend(r).Me(ctx); err == nil {
		ws.SetUserLabel(me.DisplayName())
	} else {
		s.logger.Warn().Err(err).Msg("fetch current user")
	}
	ws.Notify(workspace.NoticeSuccess, "Login successful")
	s.seeOther(w, r, "/")
}

func (s *Server) registerPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register", "Register", authForm{})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	form := authForm{
		Email: strings.TrimSpace(r.FormValue("email")),
		Name:  strings.TrimSpace(r.FormValue("name")),
	}
	_, err := astra.New(s.api, apiclient.NoToken).Register(r.Context(), astra.RegisterRequest{
		Email:    form.Email,
		Password: r.FormValue("password"),
		Name:     form.Name,
	})
	if err != nil {
		form.Error = apiclient.MessageOr(err, "Registration failed.")
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "register", "Register", form)
		return
	}
	s.flash(r, workspace.NoticeSuccess, "Registration successful! Please log in.")
	s.seeOther(w, r, "/login")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if err := sess.ClearToken(r.Context()); err != nil {
		s.logger.Error().Err(err).Str("session", session.ShortID(sess.ID())).Msg("clear token")
	}
	s.workspaces.Reset(sess.ID())
	if _, err := s.sessions.Rotate(w, r); err != nil {
		s.logger.Error().Err(err).Str("session", session.ShortID(sess.ID())).Msg("rotate session on logout")
	}
	s.seeOther(w, r, "/login")
}
