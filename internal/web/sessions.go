package web

import (
	"fmt"
	"net/http"
	"strings"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
	"astraconsole/internal/prefs"
	"astraconsole/internal/session"
	"astraconsole/internal/workspace"
)

type chatSessionsView struct {
	Sessions []astra.ChatSession
	Error    string
}

type chatSessionView struct {
	Session astra.ChatSession
	Loaded  bool
}

func (s *Server) listChatSessions(w http.ResponseWriter, r *http.Request) {
	var view chatSessionsView
	list, err := s.backend(r).ListChatSessions(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("list chat sessions")
		view.Error = apiclient.MessageOr(err, "Failed to load chat sessions")
	}
	view.Sessions = list
	s.render(w, r, "sessions", "Chat sessions", view)
}

func (s *Server) createChatSession(w http.ResponseWriter, r *http.Request) {
	cs, err := s.backend(r).CreateChatSession(r.Context(), astra.ChatSessionCreate{
		Title: strings.TrimSpace(r.FormValue("title")),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("create chat session")
		s.flash(r, workspace.NoticeError, apiclient.MessageOr(err, "Failed to create chat session"))
		s.seeOther(w, r, "/sessions")
		return
	}
	s.seeOther(w, r, fmt.Sprintf("/sessions/%d", cs.ID))
}

func (s *Server) chatSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.seeOther(w, r, "/sessions")
		return
	}
	view := chatSessionView{Session: astra.ChatSession{ID: id}}
	cs, err := s.backend(r).GetChatSession(r.Context(), id)
	if err != nil {
		s.logger.Warn().Err(err).Int64("chat_session", id).Msg("get chat session")
		s.flash(r, workspace.NoticeError, apiclient.MessageOr(err, "Failed to load chat session"))
	} else {
		view.Session, view.Loaded = cs, true
	}
	title := view.Session.Title
	if title == "" {
		title = fmt.Sprintf("Chat session #%d", id)
	}
	s.render(w, r, "sessions_detail", title, view)
}

func (s *Server) sendSessionMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.seeOther(w, r, "/sessions")
		return
	}
	ctx := r.Context()
	query := strings.TrimSpace(r.FormValue("message"))
	if query == "" {
		s.seeOther(w, r, fmt.Sprintf("/sessions/%d", id))
		return
	}
	overrides, threshold := prefs.Overrides(ctx, session.FromContext(ctx))
	_, err := s.backend(r).SendChatMessage(ctx, id, astra.ChatSessionMessageRequest{
		Query:             query,
		Collection:        astra.DefaultCollection,
		DistanceThreshold: threshold,
		ProviderOverrides: overrides,
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("chat_session", id).Msg("send chat session message")
		s.flash(r, workspace.NoticeError, apiclient.MessageOr(err, "Failed to generate AI response"))
	}
	s.seeOther(w, r, fmt.Sprintf("/sessions/%d#latest", id))
}

func (s *Server) deleteChatSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.seeOther(w, r, "/sessions")
		return
	}
	if err := s.backend(r).DeleteChatSession(r.Context(), id); err != nil {
		s.logger.Warn().Err(err).Int64("chat_session", id).Msg("delete chat session")
		s.flash(r, workspace.NoticeError, apiclient.MessageOr(err, "Failed to delete chat session"))
		s.seeOther(w, r, fmt.Sprintf("/sessions/%d", id))
		return
	}
	s.flash(r, workspace.NoticeSuccess, "Chat session deleted")
	s.seeOther(w, r, "/sessions")
}
