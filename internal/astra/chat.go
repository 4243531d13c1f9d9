package astra

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type ChatSession struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	UserID    *int64        `json:"user_id,omitempty"`
	CreatedAt Time          `json:"created_at"`
	UpdatedAt Time          `json:"updated_at"`
	Messages  []ChatMessage `json:"messages"`
}

type ChatMessage struct {
	ID        int64  `json:"id"`
	SessionID int64  `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt Time   `json:"created_at"`
}

type ChatSessionCreate struct {
	Title string `json:"title"`
}

func (r ChatSessionCreate) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return required("title")
	}
	return nil
}

type ChatSessionMessageRequest struct {
	Query             string   `json:"query"`
	Collection        string   `json:"collection"`
	NResults          int      `json:"n_results"`
	DistanceThreshold *float64 `json:"distance_threshold,omitempty"`
	ProviderOverrides
}

func (r ChatSessionMessageRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return required("query")
	}
	return checkThreshold(r.DistanceThreshold)
}

func (c *Client) ListChatSessions(ctx context.Context) ([]ChatSession, error) {
	var out []ChatSession
	if err := c.get(ctx, "/chat/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateChatSession(ctx context.Context, req ChatSessionCreate) (ChatSession, error) {
	var out ChatSession
	if err := c.send(ctx, http.MethodPost, "/chat/sessions", req, &out); err != nil {
		return ChatSession{}, err
	}
	return out, nil
}

func (c *Client) GetChatSession(ctx context.Context, id int64) (ChatSession, error) {
	var out ChatSession
	if err := c.get(ctx, fmt.Sprintf("/chat/sessions/%d", id), nil, &out); err != nil {
		return ChatSession{}, err
	}
	return out, nil
}

func (c *Client) DeleteChatSession(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/chat/sessions/%d", id))
}

// SendChatMessage returns the assistant's stored reply.
func (c *Client) SendChatMessage(ctx context.Context, sessionID int64, req ChatSessionMessageRequest) (ChatMessage, error) {
	req.Collection = collectionOr(req.Collection)
	if req.NResults == 0 {
		req.NResults = 3
	}
	if req.DistanceThreshold == nil {
		def := 1.0
		req.DistanceThreshold = &def
	}
	var out ChatMessage
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/chat/sessions/%d/messages", sessionID), req, &out); err != nil {
		return ChatMessage{}, err
	}
	return out, nil
}
