package web

import (
	"cmp"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
	"astraconsole/internal/prefs"
	"astraconsole/internal/session"
	"astraconsole/internal/workspace"
)

const defaultTicketPageSize = 10

var sortColumns = []string{"id", "title", "status", "priority", "created_at"}

type ticketFilter struct {
	Status      string
	Priority    string
	RequesterID int64
	Page        int
	PageSize    int
	Sort        string
	Order       string
}

func parseTicketFilter(q url.Values) ticketFilter {
	f := ticketFilter{
		Status:   strings.TrimSpace(q.Get("status")),
		Priority: strings.TrimSpace(q.Get("priority")),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
	}
	f.RequesterID, _ = strconv.ParseInt(q.Get("requester_id"), 10, 64)
	f.Page, _ = strconv.Atoi(q.Get("page"))
	if f.Page < 1 {
		f.Page = 1
	}
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if f.PageSize < 1 {
		f.PageSize = defaultTicketPageSize
	}
	if !slices.Contains(sortColumns, f.Sort) {
		f.Sort = ""
	}
	if f.Order != "desc" {
		f.Order = "asc"
	}
	return f
}

func (f ticketFilter) URL() string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	if f.RequesterID > 0 {
		q.Set("requester_id", strconv.FormatInt(f.RequesterID, 10))
	}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("page_size", strconv.Itoa(f.PageSize))
	if f.Sort != "" {
		q.Set("sort", f.Sort)
		q.Set("order", f.Order)
	}
	return "/tickets?" + q.Encode()
}

// SortURL links to the same page sorted by column, flipping the order when
// column is already the sort key.
func (f ticketFilter) SortURL(column string) string {
	next := f
	next.Sort = column
	next.Order = "asc"
	if f.Sort == column && f.Order == "asc" {
		next.Order = "desc"
	}
	return next.URL()
}

func (f ticketFilter) PageURL(page int) string {
	next := f
	next.Page = page
	return next.URL()
}

func rank(list []string, v string) int {
	if i := slices.Index(list, v); i >= 0 {
		return i
	}
	return len(list)
}

func sortTickets(tickets []astra.Ticket, column, order string) {
	if column == "" {
		return
	}
	slices.SortStableFunc(tickets, func(a, b astra.Ticket) int {
		var c int
		switch column {
		case "id":
			c = cmp.Compare(a.ID, b.ID)
		case "title":
			c = cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case "status":
			c = cmp.Compare(rank(astra.Statuses, a.Status), rank(astra.Statuses, b.Status))
		case "priority":
			c = cmp.Compare(rank(astra.Priorities, a.Priority), rank(astra.Priorities, b.Priority))
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt.Time)
		}
		if order == "desc" {
			return -c
		}
		return c
	})
}

type ticketListView struct {
	Tickets    []astra.Ticket
	Filter     ticketFilter
	Statuses   []string
	Priorities []string
	Error      string
	HasNext    bool
}

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	f := parseTicketFilter(r.URL.Query())
	view := ticketListView{Filter: f, Statuses: astra.Statuses, Priorities: astra.Priorities}

	tickets, err := s.backend(r).ListTickets(r.Context(), astra.TicketListParams{
		Status:      f.Status,
		Priority:    f.Priority,
		RequesterID: f.RequesterID,
		Page:        f.Page,
		PageSize:    f.PageSize,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("list tickets")
		view.Error = apiclient.MessageOr(err, "Failed to load tickets")
	}
	sortTickets(tickets, f.Sort, f.Order)
	view.Tickets = tickets
	view.HasNext = len(tickets) >= f.PageSize
	s.render(w, r, "tickets", "Tickets", view)
}

type ticketFormView struct {
	Form       astra.TicketCreate
	Users      []astra.User
	UsersError bool
	Nonce      string
	Statuses   []string
	Priorities []string
	Error      string
}

func (s *Server) ticketForm(r *http.Request, form astra.TicketCreate) ticketFormView {
	view := ticketFormView{
		Form:       form,
		Nonce:      uuid.NewString(),
		Statuses:   astra.Statuses,
		Priorities: astra.Priorities,
	}
	users, err := s.backend(r).ListUsers(r.Context(), 100, 0)
	if err != nil {
		s.logger.Warn().Err(err).Msg("list users for ticket form")
		view.UsersError = true
	}
	view.Users = users
	return view
}

func (s *Server) newTicketPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "tickets_new", "New ticket", s.ticketForm(r, astra.TicketCreate{
		Status:   astra.StatusOpen,
		Priority: astra.PriorityMedium,
	}))
}

func (s *Server) createTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := astra.TicketCreate{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Content:     strings.TrimSpace(r.FormValue("content")),
		Status:      r.FormValue("status"),
		Priority:    r.FormValue("priority"),
		Tags:        astra.JoinTags(astra.SplitTags(r.FormValue("tags"))),
		RequesterID: formInt64(r, "requester_id"),
	}

	if nonce := r.FormValue("nonce"); s.guard != nil && nonce != "" {
		first, err := s.guard.MarkFirst(ctx, nonce)
		if err != nil {
			s.logger.Warn().Err(err).Msg("submit guard")
		} else if !first {
			s.flash(r, workspace.NoticeWarning, "This form was already submitted.")
			s.seeOther(w, r, "/tickets")
			return
		}
	}

	ticket, err := s.backend(r).CreateTicket(ctx, form)
	if err != nil {
		s.logger.Warn().Err(err).Msg("create ticket")
		view := s.ticketForm(r, form)
		view.Error = apiclient.MessageOr(err, "Failed to create ticket")
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "tickets_new", "New ticket", view)
		return
	}
	s.flash(r, workspace.NoticeSuccess, "Ticket created successfully")
	s.seeOther(w, r, fmt.Sprintf("/tickets/%d", ticket.ID))
}

type ticketDetailView struct {
	ID         int64
	Ticket     astra.Ticket
	Loaded     bool
	Replies    []astra.Reply
	Messages   []astra.TicketMessage
	Users      []astra.User
	Suggestion *astra.TicketAISuggestion
	Statuses   []string
	Priorities []string
}

func (v ticketDetailView) Author(id int64) string {
	for _, u := range v.Users {
		if u.ID == id {
			return u.DisplayName()
		}
	}
	return fmt.Sprintf("User #%d", id)
}

func (s *Server) ticketDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.flash(r, workspace.NoticeError, "Failed to load ticket")
		s.seeOther(w, r, "/tickets")
		return
	}
	ctx := r.Context()
	c := s.backend(r)

	var (
		wg        sync.WaitGroup
		ticket    astra.Ticket
		replies   []astra.Reply
		messages  []astra.TicketMessage
		users     []astra.User
		ticketErr error
		replyErr  error
		msgErr    error
		uErr      error
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		ticket, ticketErr = c.GetTicket(ctx, id)
	}()
	go func() {
		defer wg.Done()
		replies, replyErr = c.ListReplies(ctx, id)
	}()
	go func() {
		defer wg.Done()
		messages, msgErr = c.ListMessages(ctx, id)
	}()
	go func() {
		defer wg.Done()
		users, uErr = c.ListUsers(ctx, 100, 0)
	}()
	wg.Wait()

	ws := s.workspace(r)
	view := ticketDetailView{
		ID:         id,
		Ticket:     ticket,
		Loaded:     ticketErr == nil,
		Replies:    replies,
		Messages:   messages,
		Users:      users,
		Statuses:   astra.Statuses,
		Priorities: astra.Priorities,
	}
	if ticketErr != nil {
		s.logger.Warn().Err(ticketErr).Int64("ticket", id).Msg("get ticket")
		ws.Notify(workspace.NoticeError, "Failed to load ticket")
	}
	if replyErr != nil {
		s.logger.Warn().Err(replyErr).Int64("ticket", id).Msg("list replies")
	}
	if msgErr != nil {
		s.logger.Warn().Err(msgErr).Int64("ticket", id).Msg("list messages")
	}
	if uErr != nil {
		s.logger.Warn().Err(uErr).Msg("list users")
	}
	if sug, ok := ws.Suggestion(id); ok {
		view.Suggestion = &sug
	}
	s.render(w, r, "tickets_detail", fmt.Sprintf("Ticket #%d", id), view)
}

// updateTicket sends only the fields present in the form.
func (s *Server) updateTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.seeOther(w, r, "/tickets")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.flash(r, workspace.NoticeError, "Failed to update ticket")
		s.seeOther(w, r, fmt.Sprintf("/tickets/%d", id))
		return
	}
	field := func(key string) *string {
		if _, present := r.PostForm[key]; !present {
			return nil
		}
		v := strings.TrimSpace(r.PostForm.Get(key))
		return &v
	}
	upd := astra.TicketUpdate{
		Title:    field("title"),
		Content:  field("content"),
		Status:   field("status"),
		Priority: field("priority"),
		Tags:     field("tags"),
	}
	if upd.Tags != nil {
		joined := astra.JoinTags(astra.SplitTags(*upd.Tags))
		upd.Tags = &joined
	}

	if _, err := s.backend(r).UpdateTicket(r.Context(), id, upd); err != nil {
		s.logger.Warn().Err(err).Int64("ticket", id).Msg("update ticket")
		s.flash(r, workspace.NoticeError, apiclient.MessageOr(err, "Failed to update ticket"))
	} else {
		s.flash(r, workspace.NoticeSuccess, "Ticket updated")
	}
	s.seeOther(w, r, fmt.Sprintf("/tickets/%d", id))
}

func (s *Server) confirmDeleteTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.seeOther(w, r, "/tickets")
		return
	}
	view := ticketDetailView{ID: id}
	if t, err := s.backend(r).GetTicket(r.Context(), id); err == nil {
		view.Ticket, view.Loaded = t, true
	}
	s.render(w, r, "tickets_delete", "Delete ticket", view)
}

func (s *Server) deleteTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.seeOther(w, r, "/tickets")
		return
	}
	if !formBool(r, "confirm") {
		s.seeOther(w, r, fmt.Sprintf("/tickets/%d/delete", id))
		return
	}
	if err := s.backend(r).DeleteTicket(r.Context(), id); err != nil {
		s.logger.Warn().Err(err).Int64("ticket", id).Msg("delete ticket")
		s.flash(r, workspace.NoticeError, apiclient.MessageOr(err, "Failed to delete ticket"))
		s.seeOther(w, r, fmt.Sprintf("/tickets/%d", id))
		return
	}
	s.workspace(r).DropSuggestion(id)
	s.flash(r, workspace.NoticeSuccess, "Ticket deleted")
	s.seeOther(w, r, "/tickets")
}

func (s *Server) addReply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.seeOther(w, r, "/tickets")
		return
	}
	_, err := s.backend(r).AddReply(r.Context(), id, astra.ReplyCreate{
		AuthorID: formInt64(r, "author_id"),
		Content:  strings.TrimSpace(r.FormValue("content")),
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("ticket", id).Msg("add reply")
		s.flash(r, workspace.NoticeError, apiclient.MessageOr(err, "Failed to add reply"))
	} else {
		s.flash(r, workspace.NoticeSuccess, "Reply added")
	}
	s.seeOther(w, r, fmt.Sprintf("/tickets/%d", id))
}

func (s *Server) addMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.seeOther(w, r, "/tickets")
		return
	}
	_, err := s.backend(r).AddMessage(r.Context(), id, astra.MessageCreate{
		Content: strings.TrimSpace(r.FormValue("content")),
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("ticket", id).Msg("add message")
		s.flash(r, workspace.NoticeError, apiclient.MessageOr(err, "Failed to send message"))
	} else {
		s.flash(r, workspace.NoticeSuccess, "Message sent")
	}
	s.seeOther(w, r, fmt.Sprintf("/tickets/%d#messages", id))
}

func (s *Server) suggest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.seeOther(w, r, "/tickets")
		return
	}
	ctx := r.Context()
	overrides, _ := prefs.Overrides(ctx, session.FromContext(ctx))
	sug, err := s.backend(r).SuggestForTicket(ctx, id, astra.TicketAISuggestionRequest{
		Collection:        astra.DefaultCollection,
		NResults:          3,
		ProviderOverrides: overrides,
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("ticket", id).Msg("ai suggestion")
		s.flash(r, workspace.NoticeError, apiclient.MessageOr(err, "Failed to generate AI suggestion"))
	} else {
		sug.TicketID = id
		s.workspace(r).SetSuggestion(sug)
		s.flash(r, workspace.NoticeSuccess, "AI suggestion ready")
	}
	s.seeOther(w, r, fmt.Sprintf("/tickets/%d#suggestion", id))
}
