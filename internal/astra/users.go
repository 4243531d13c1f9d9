package astra

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"astraconsole/internal/apiclient"
)

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt Time   `json:"created_at"`
}

// DisplayName is the name, else the email, else "User #<id>".
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	if strings.TrimSpace(u.Email) != "" {
		return u.Email
	}
	return fmt.Sprintf("User #%d", u.ID)
}

type UserCreate struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (r UserCreate) Validate() error {
	if len(strings.TrimSpace(r.Email)) < 3 {
		return &ValidationError{Field: "email", Reason: "must be at least 3 characters"}
	}
	return nil
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return required("email")
	}
	if r.Password == "" {
		return required("password")
	}
	return nil
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (c *Client) CreateUser(ctx context.Context, req UserCreate) (User, error) {
	var u User
	if err := c.send(ctx, http.MethodPost, "/users/", req, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (c *Client) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}, "offset": {strconv.Itoa(offset)}}
	var out []User
	if err := c.get(ctx, "/users/", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	if err := c.get(ctx, fmt.Sprintf("/users/%d", id), nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login exchanges credentials for a bearer token. It posts a form, not JSON.
func (c *Client) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	if strings.TrimSpace(username) == "" {
		return TokenResponse{}, required("username")
	}
	if password == "" {
		return TokenResponse{}, required("password")
	}
	form := url.Values{"username": {username}, "password": {password}}
	var out TokenResponse
	err := c.api.Do(ctx, c.tokens, apiclient.Request{Method: http.MethodPost, Path: "/auth/token", Form: form}, &out)
	if err != nil {
		return TokenResponse{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return TokenResponse{}, &apiclient.Error{Status: http.StatusOK, Message: "login response carried no access token"}
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (User, error) {
	var u User
	if err := c.send(ctx, http.MethodPost, "/auth/register", req, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	if err := c.get(ctx, "/auth/me", nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}
