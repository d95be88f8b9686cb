package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is the structured failure for any non-2xx response.
type Error struct {
	Status int
	Body   []byte
	Config Config
}

func (e *Error) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.Status)
}

// StatusCode extracts the HTTP status from an error chain, or 0 when the
// error did not come from a response.
func StatusCode(err error) int {
	var he *Error
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// IsStatus reports whether err is a response error with the given status.
func IsStatus(err error, status int) bool {
	return StatusCode(err) == status
}

// IsUnauthorized reports whether err is an HTTP 401 response error.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// Message extracts the richest user-facing message available from an error:
// a plain string body, then the message, error, errors[0] and detail fields,
// then the error's own text, and finally the fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var he *Error
	if !errors.As(err, &he) {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return msg
		}
		return fallback
	}

	body := bytes.TrimSpace(he.Body)
	if len(body) == 0 {
		return fallback
	}
	if !json.Valid(body) {
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return msg
		}
		return fallback
	}

	var s string
	if json.Unmarshal(body, &s) == nil {
		if msg := strings.TrimSpace(s); msg != "" {
			return msg
		}
		return fallback
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(body, &obj) == nil {
		if msg := rawString(obj["message"]); msg != "" {
			return msg
		}
		if msg := rawString(obj["error"]); msg != "" {
			return msg
		}
		if raw, ok := obj["errors"]; ok {
			var items []json.RawMessage
			if json.Unmarshal(raw, &items) == nil && len(items) > 0 {
				if msg := rawString(items[0]); msg != "" {
					return msg
				}
				var first map[string]json.RawMessage
				if json.Unmarshal(items[0], &first) == nil {
					if msg := rawString(first["message"]); msg != "" {
						return msg
					}
				}
			}
		}
		if msg := rawString(obj["detail"]); msg != "" {
			return msg
		}
	}
	return fallback
}

func rawString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
