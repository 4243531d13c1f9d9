package astra

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ProviderOverrides are the optional per-request LLM settings. Empty fields
// are omitted so the backend falls back to its own configuration.
type ProviderOverrides struct {
	Provider string `json:"provider,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

type AIChatMessage struct {
	Role       string   `json:"role"`
	Content    string   `json:"content"`
	KBSources  []string `json:"kb_sources,omitempty"`
	KBSnippets []string `json:"kb_snippets,omitempty"`
}

type AIChatRequest struct {
	Query             string          `json:"query"`
	Collection        string          `json:"collection"`
	NResults          int             `json:"n_results"`
	DistanceThreshold *float64        `json:"distance_threshold,omitempty"`
	History           []AIChatMessage `json:"history"`
	ProviderOverrides
}

func (r AIChatRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return required("query")
	}
	if err := checkThreshold(r.DistanceThreshold); err != nil {
		return err
	}
	for _, m := range r.History {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return &ValidationError{Field: "history", Reason: fmt.Sprintf("has unknown role %q", m.Role)}
		}
	}
	return nil
}

type AIChatResponse struct {
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	KBSources  []string `json:"kb_sources"`
	KBSnippets []string `json:"kb_snippets"`
}

type TicketAISuggestionRequest struct {
	Collection string `json:"collection"`
	NResults   int    `json:"n_results"`
	ProviderOverrides
}

func (r TicketAISuggestionRequest) Validate() error {
	if r.NResults < 0 || r.NResults > 10 {
		return &ValidationError{Field: "n_results", Reason: "must be between 1 and 10"}
	}
	return nil
}

type TicketAISuggestion struct {
	TicketID          int64    `json:"ticket_id"`
	Category          string   `json:"category"`
	Confidence        float64  `json:"confidence"`
	SuggestedPriority string   `json:"suggested_priority"`
	SuggestedTags     []string `json:"suggested_tags"`
	AIReply           string   `json:"ai_reply"`
	KBSnippets        []string `json:"kb_snippets"`
}

// Chat sends a knowledge-base grounded question. The history should already
// include the question as its last user entry.
func (c *Client) Chat(ctx context.Context, req AIChatRequest) (AIChatResponse, error) {
	req.Collection = collectionOr(req.Collection)
	if req.NResults == 0 {
		req.NResults = 4
	}
	if req.History == nil {
		req.History = []AIChatMessage{}
	}
	var out AIChatResponse
	if err := c.send(ctx, http.MethodPost, "/ai/chat", req, &out); err != nil {
		return AIChatResponse{}, err
	}
	return out, nil
}

func (c *Client) SuggestForTicket(ctx context.Context, ticketID int64, req TicketAISuggestionRequest) (TicketAISuggestion, error) {
	req.Collection = collectionOr(req.Collection)
	if req.NResults == 0 {
		req.NResults = 3
	}
	var out TicketAISuggestion
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/ai/tickets/%d/suggest", ticketID), req, &out); err != nil {
		return TicketAISuggestion{}, err
	}
	return out, nil
}

func checkThreshold(v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 2 {
		return &ValidationError{Field: "distance_threshold", Reason: "must be between 0 and 2"}
	}
	return nil
}
