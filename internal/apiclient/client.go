package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"astraconsole/internal/metrics"
)

const (
	DefaultPrefix  = "/api"
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 4 << 20
)

// TokenSource yields the bearer token for the current browser session. It is
// consulted on every send, so clearing the token affects the next request.
type TokenSource interface {
	CurrentToken() (string, bool)
}

// NoToken is a TokenSource for anonymous calls such as login and register.
var NoToken TokenSource = noToken{}

type noToken struct{}

func (noToken) CurrentToken() (string, bool) { return "", false }

type Config struct {
	BaseURL     string
	Prefix      string
	Timeout     time.Duration
	HTTPClient  *http.Client
	MaxRetries  int
	BackoffBase time.Duration
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

type Client struct {
	cfg Config
}

// Request describes one backend call. Body is sent as JSON; Form, when set,
// is sent url-encoded instead.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Form   url.Values
}

func New(cfg Config) *Client {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Prefix == "/" {
		cfg.Prefix = ""
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 400 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	return &Client{cfg: cfg}
}

// Do sends req and decodes a JSON response into out (when out is non-nil and
// the body is not empty). Failures are returned as *Error.
func (c *Client) Do(ctx context.Context, tokens TokenSource, req Request, out any) error {
	if tokens == nil {
		tokens = NoToken
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	endpoint, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return err
	}
	payload, contentType, err := encodeBody(req)
	if err != nil {
		return err
	}

	retries := 0
	if req.Method == http.MethodGet {
		retries = c.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		status, body, retry, err := c.callOnce(ctx, tokens, req.Method, endpoint, payload, contentType)
		if err == nil {
			return decodeBody(req, status, body, out)
		}
		lastErr = err
		if !retry || attempt == retries {
			break
		}
		backoff := c.cfg.BackoffBase * (1 << attempt)
		select {
		case <-ctx.Done():
			return &Error{Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func (c *Client) callOnce(ctx context.Context, tokens TokenSource, method, endpoint string, payload []byte, contentType string) (status int, body []byte, retry bool, err error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, false, &Error{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token, ok := tokens.CurrentToken(); ok && strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		c.cfg.Metrics.ObserveBackend(method, 0)
		c.cfg.Logger.Warn().Err(err).Str("method", method).Str("path", req.URL.Path).Msg("backend request failed")
		return 0, nil, ctx.Err() == nil, &Error{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	c.cfg.Metrics.ObserveBackend(method, resp.StatusCode)
	c.cfg.Logger.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("backend request")

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, false, &Error{Status: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retry = resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return resp.StatusCode, nil, retry, &Error{Status: resp.StatusCode, Message: parseMessage(body)}
	}
	return resp.StatusCode, body, false, nil
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	if c.cfg.BaseURL == "" {
		return "", &Error{Err: fmt.Errorf("backend base url is empty")}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(c.cfg.BaseURL + c.cfg.Prefix + path)
	if err != nil {
		return "", &Error{Err: fmt.Errorf("parse backend url: %w", err)}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func encodeBody(req Request) ([]byte, string, error) {
	if req.Form != nil {
		return []byte(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	}
	if req.Body == nil {
		return nil, "", nil
	}
	b, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", &Error{Err: fmt.Errorf("marshal %s %s body: %w", req.Method, req.Path, err)}
	}
	return b, "application/json", nil
}

func decodeBody(req Request, status int, body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Status: status, Err: fmt.Errorf("decode %s %s response: %w", req.Method, req.Path, err)}
	}
	return nil
}
