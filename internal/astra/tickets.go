package astra

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	Statuses   = []string{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
)

type Ticket struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Tags        string `json:"tags,omitempty"`
	RequesterID int64  `json:"requester_id"`
	CreatedAt   Time   `json:"created_at"`
	UpdatedAt   Time   `json:"updated_at"`
}

func (t Ticket) TagList() []string {
	return SplitTags(t.Tags)
}

type TicketCreate struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Tags        string `json:"tags,omitempty"`
	RequesterID int64  `json:"requester_id"`
}

func (r TicketCreate) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return required("title")
	}
	if strings.TrimSpace(r.Content) == "" {
		return required("content")
	}
	if r.RequesterID <= 0 {
		return required("requester_id")
	}
	if err := checkEnum("status", r.Status, Statuses); err != nil {
		return err
	}
	return checkEnum("priority", r.Priority, Priorities)
}

type TicketUpdate struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	Status   *string `json:"status,omitempty"`
	Priority *string `json:"priority,omitempty"`
	Tags     *string `json:"tags,omitempty"`
}

func (r TicketUpdate) Validate() error {
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be blank"}
	}
	if r.Content != nil && strings.TrimSpace(*r.Content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be blank"}
	}
	if r.Status != nil {
		if err := checkEnum("status", *r.Status, Statuses); err != nil {
			return err
		}
	}
	if r.Priority != nil {
		return checkEnum("priority", *r.Priority, Priorities)
	}
	return nil
}

type TicketListParams struct {
	Status      string
	Priority    string
	RequesterID int64
	Page        int
	PageSize    int
}

func (p TicketListParams) values() url.Values {
	q := url.Values{}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Priority != "" {
		q.Set("priority", p.Priority)
	}
	if p.RequesterID > 0 {
		q.Set("requester_id", strconv.FormatInt(p.RequesterID, 10))
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return q
}

type Reply struct {
	ID        int64  `json:"id"`
	TicketID  int64  `json:"ticket_id"`
	AuthorID  int64  `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt Time   `json:"created_at"`
}

type ReplyCreate struct {
	AuthorID int64  `json:"author_id"`
	Content  string `json:"content"`
}

func (r ReplyCreate) Validate() error {
	if r.AuthorID <= 0 {
		return required("author_id")
	}
	if strings.TrimSpace(r.Content) == "" {
		return required("content")
	}
	return nil
}

type TicketMessage struct {
	ID         int64  `json:"id"`
	TicketID   int64  `json:"ticket_id"`
	SenderID   int64  `json:"sender_id"`
	SenderType string `json:"sender_type"`
	Content    string `json:"content"`
	CreatedAt  Time   `json:"created_at"`
}

type MessageCreate struct {
	Content string `json:"content"`
}

func (r MessageCreate) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return required("content")
	}
	return nil
}

// CreateTicket fills in status open and priority medium when unset.
func (c *Client) CreateTicket(ctx context.Context, req TicketCreate) (Ticket, error) {
	if req.Status == "" {
		req.Status = StatusOpen
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	var t Ticket
	if err := c.send(ctx, http.MethodPost, "/tickets/", req, &t); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func (c *Client) ListTickets(ctx context.Context, p TicketListParams) ([]Ticket, error) {
	var out []Ticket
	if err := c.get(ctx, "/tickets/", p.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTicket(ctx context.Context, id int64) (Ticket, error) {
	var t Ticket
	if err := c.get(ctx, fmt.Sprintf("/tickets/%d", id), nil, &t); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func (c *Client) UpdateTicket(ctx context.Context, id int64, req TicketUpdate) (Ticket, error) {
	var t Ticket
	if err := c.send(ctx, http.MethodPut, fmt.Sprintf("/tickets/%d", id), req, &t); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func (c *Client) DeleteTicket(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/tickets/%d", id))
}

func (c *Client) AddReply(ctx context.Context, ticketID int64, req ReplyCreate) (Reply, error) {
	var r Reply
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/tickets/%d/replies", ticketID), req, &r); err != nil {
		return Reply{}, err
	}
	return r, nil
}

func (c *Client) ListReplies(ctx context.Context, ticketID int64) ([]Reply, error) {
	var out []Reply
	if err := c.get(ctx, fmt.Sprintf("/tickets/%d/replies", ticketID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddMessage(ctx context.Context, ticketID int64, req MessageCreate) (TicketMessage, error) {
	var m TicketMessage
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/tickets/%d/messages", ticketID), req, &m); err != nil {
		return TicketMessage{}, err
	}
	return m, nil
}

func (c *Client) ListMessages(ctx context.Context, ticketID int64) ([]TicketMessage, error) {
	var out []TicketMessage
	if err := c.get(ctx, fmt.Sprintf("/tickets/%d/messages", ticketID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SplitTags turns the stored comma-joined tags into a trimmed list.
func SplitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func JoinTags(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, ",")
}

func checkEnum(field, v string, allowed []string) error {
	if v == "" {
		return nil
	}
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return &ValidationError{Field: field, Reason: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", "))}
}
