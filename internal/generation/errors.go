package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ConfigError reports a missing or invalid credential or setting. It is never
// retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("generation: %s is not configured", e.Field)
	}
	return fmt.Sprintf("generation: %s %s", e.Field, e.Reason)
}

// APIError is a non-success HTTP status returned by the provider.
type APIError struct {
	Status  int
	Message string
	// Reason is the provider's symbolic status, e.g. RESOURCE_EXHAUSTED.
	Reason string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("generation: %s (status=%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("generation: http status %d", e.Status)
}

// RateLimited reports whether the provider asked the caller to slow down.
func (e *APIError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// RateLimitError is returned when every attempt was rejected with 429.
type RateLimitError struct {
	Attempts int
	Last     *APIError
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("generation: rate limited after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RateLimitError) Unwrap() error { return e.Last }

// NetworkError wraps a transport failure. Attempts is zero when the error
// comes straight from a backend and set once the client gives up.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("generation: network failure after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation: network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedResponseError reports a success response without a usable text part.
type MalformedResponseError struct {
	Reason string
	Body   string
}

func (e *MalformedResponseError) Error() string {
	return "generation: malformed response: " + e.Reason
}

const maxErrorBody = 512

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

// decodeAPIError parses the Google error envelope
// {"error":{"code":429,"message":"...","status":"RESOURCE_EXHAUSTED"}}.
func decodeAPIError(status int, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		msg := excerpt(body)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{Status: status, Message: msg}
	}
	return &APIError{Status: status, Message: parsed.Error.Message, Reason: parsed.Error.Status}
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
