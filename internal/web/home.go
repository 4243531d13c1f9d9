package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
	"astraconsole/internal/prefs"
	"astraconsole/internal/session"
	"astraconsole/internal/workspace"
)

type ticketCounts struct {
	Total      int
	Open       int
	InProgress int
	Resolved   int
}

func countTickets(tickets []astra.Ticket) ticketCounts {
	c := ticketCounts{Total: len(tickets)}
	for _, t := range tickets {
		switch t.Status {
		case astra.StatusOpen:
			c.Open++
		case astra.StatusInProgress:
			c.InProgress++
		case astra.StatusResolved:
			c.Resolved++
		}
	}
	return c
}

type homeView struct {
	Counts     ticketCounts
	Healthy    bool
	Health     string
	Config     prefs.AIProviderConfig
	Providers  []prefs.Provider
	Transcript []astra.AIChatMessage
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := s.backend(r)
	sess := session.FromContext(ctx)

	var (
		wg      sync.WaitGroup
		tickets []astra.Ticket
		health  astra.Health
		ticErr  error
		hErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tickets, ticErr = c.ListTickets(ctx, astra.TicketListParams{})
	}()
	go func() {
		defer wg.Done()
		health, hErr = c.Health(ctx)
	}()
	wg.Wait()

	if ticErr != nil {
		s.logger.Warn().Err(ticErr).Msg("load ticket counts")
	}
	view := homeView{
		Counts:     countTickets(tickets),
		Config:     prefs.Load(ctx, sess),
		Providers:  prefs.Providers,
		Transcript: s.workspace(r).Transcript(),
		Health:     "unreachable",
	}
	if hErr == nil {
		view.Health = health.Status
		view.Healthy = strings.EqualFold(health.Status, "ok")
	}
	s.render(w, r, "home", "Home", view)
}

func (s *Server) saveAIConfig(w http.ResponseWriter, r *http.Request) {
	cfg := prefs.AIProviderConfig{
		Provider:          strings.TrimSpace(r.FormValue("provider")),
		BaseURL:           strings.TrimSpace(r.FormValue("base_url")),
		APIKey:            strings.TrimSpace(r.FormValue("api_key")),
		Model:             strings.TrimSpace(r.FormValue("model")),
		DistanceThreshold: -1,
	}
	if raw := strings.TrimSpace(r.FormValue("distance_threshold")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 2 {
			s.flash(r, workspace.NoticeError, "Distance threshold must be a number between 0 and 2.")
			s.seeOther(w, r, "/")
			return
		}
		cfg.DistanceThreshold = v
	}
	if _, err := prefs.Save(r.Context(), session.FromContext(r.Context()), cfg); err != nil {
		s.logger.Error().Err(err).Msg("save ai config")
		s.flash(r, workspace.NoticeError, "Failed to save AI client configuration.")
		s.seeOther(w, r, "/")
		return
	}
	s.flash(r, workspace.NoticeSuccess, "AI client configuration saved locally.")
	s.seeOther(w, r, "/")
}

func (s *Server) sendChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	ws := s.workspace(r)

	query := strings.TrimSpace(r.FormValue("message"))
	if query == "" {
		s.seeOther(w, r, "/#chat")
		return
	}
	history := ws.AppendChat(astra.AIChatMessage{Role: astra.RoleUser, Content: query})

	if s.limiter != nil {
		allowed, _, resetAt, err := s.limiter.Allow(ctx, sess.ID(), s.now())
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("chat rate limit check")
		case !allowed:
			s.metrics.ObserveChat(false, true)
			ws.AppendChat(astra.AIChatMessage{
				Role:    astra.RoleAssistant,
				Content: fmt.Sprintf("Error: Too many AI requests, try again after %s UTC", resetAt.UTC().Format("15:04")),
			})
			s.seeOther(w, r, "/#chat")
			return
		}
	}

	overrides, threshold := prefs.Overrides(ctx, sess)
	res, err := s.backend(r).Chat(ctx, astra.AIChatRequest{
		Query:             query,
		Collection:        astra.DefaultCollection,
		NResults:          4,
		DistanceThreshold: threshold,
		History:           history,
		ProviderOverrides: overrides,
	})
	s.metrics.ObserveChat(err != nil, false)
	if err != nil {
		s.logger.Warn().Err(err).Int("status", apiclient.StatusOf(err)).Msg("ai chat")
		ws.AppendChat(astra.AIChatMessage{
			Role:    astra.RoleAssistant,
			Content: "Error: " + apiclient.MessageOr(err, "Failed to generate AI response"),
		})
		s.seeOther(w, r, "/#chat")
		return
	}
	ws.AppendChat(astra.AIChatMessage{
		Role:       astra.RoleAssistant,
		Content:    res.Answer,
		KBSources:  res.KBSources,
		KBSnippets: res.KBSnippets,
	})
	s.seeOther(w, r, "/#chat")
}

func (s *Server) resetChat(w http.ResponseWriter, r *http.Request) {
	s.workspace(r).ResetTranscript()
	s.seeOther(w, r, "/#chat")
}
