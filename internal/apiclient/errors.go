package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error is a failed backend call. Status is 0 when no response arrived.
// Message holds the server's explanation when the body carried one.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("backend unreachable: %v", e.Err)
	case e.Status == 0:
		return "backend unreachable"
	case e.Message != "":
		return fmt.Sprintf("backend status %d: %s", e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("backend status %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("backend status %d", e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

type userMessager interface {
	UserMessage() string
}

// MessageOr picks the text a view shows for err: the server's message when
// there is one, otherwise fallback.
func MessageOr(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var e *Error
	if errors.As(err, &e) && strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}

// parseMessage understands the backend's error bodies: {"detail": "..."},
// validation lists {"detail": [{"msg": "..."}]} and {"message": "..."}.
func parseMessage(body []byte) string {
	var env struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if len(env.Detail) > 0 {
		var s string
		if err := json.Unmarshal(env.Detail, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(env.Detail, &items); err == nil {
			parts := make([]string, 0, len(items))
			for _, it := range items {
				if strings.TrimSpace(it.Msg) != "" {
					parts = append(parts, strings.TrimSpace(it.Msg))
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
	}
	return strings.TrimSpace(env.Message)
}
