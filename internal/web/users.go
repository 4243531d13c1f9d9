package web

import (
	"net/http"
	"strings"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
	"astraconsole/internal/workspace"
)

const userPageSize = 20

type userListView struct {
	Users   []astra.User
	Page    int
	HasNext bool
	Form    astra.UserCreate
	Error   string
}

func (s *Server) loadUsers(r *http.Request, view *userListView) {
	users, err := s.backend(r).ListUsers(r.Context(), userPageSize, (view.Page-1)*userPageSize)
	if err != nil {
		s.logger.Warn().Err(err).Msg("list users")
		view.Error = apiclient.MessageOr(err, "Failed to load users")
	}
	view.Users = users
	view.HasNext = len(users) >= userPageSize
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	view := userListView{Page: max(formInt(r, "page", 1), 1)}
	s.loadUsers(r, &view)
	s.render(w, r, "users", "Users", view)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	form := astra.UserCreate{
		Email: strings.TrimSpace(r.FormValue("email")),
		Name:  strings.TrimSpace(r.FormValue("name")),
	}
	u, err := s.backend(r).CreateUser(r.Context(), form)
	if err != nil {
		s.logger.Warn().Err(err).Msg("create user")
		view := userListView{Page: 1, Form: form}
		s.loadUsers(r, &view)
		view.Error = apiclient.MessageOr(err, "Failed to create user")
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "users", "Users", view)
		return
	}
	s.flash(r, workspace.NoticeSuccess, "User "+u.DisplayName()+" created")
	s.seeOther(w, r, "/users")
}
