// Package astra holds the typed request and response records of the
// AstraTickets REST API and one client method per endpoint.
package astra

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"astraconsole/internal/apiclient"
)

const DefaultCollection = "kb_main"

// Client is bound to one browser session through its TokenSource; build one
// per request.
type Client struct {
	api    *apiclient.Client
	tokens apiclient.TokenSource
}

func New(api *apiclient.Client, tokens apiclient.TokenSource) *Client {
	if tokens == nil {
		tokens = apiclient.NoToken
	}
	return &Client{api: api, tokens: tokens}
}

// ValidationError rejects a request before it is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) UserMessage() string {
	return e.Field + " " + e.Reason
}

func required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

type validator interface {
	Validate() error
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.api.Do(ctx, c.tokens, apiclient.Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) send(ctx context.Context, method, path string, body validator, out any) error {
	if body != nil {
		if err := body.Validate(); err != nil {
			return err
		}
	}
	req := apiclient.Request{Method: method, Path: path}
	if body != nil {
		req.Body = body
	}
	return c.api.Do(ctx, c.tokens, req, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.api.Do(ctx, c.tokens, apiclient.Request{Method: http.MethodDelete, Path: path}, nil)
}
