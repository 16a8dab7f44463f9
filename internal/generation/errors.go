package generation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports bad or missing input. It is recovered locally and
// never results in a network call.
type ValidationError struct {
	// Fields maps a JSON field name to a human-readable message.
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UpstreamError is a non-success answer from the upstream API, or a success
// answer that breaks the documented response contract.
type UpstreamError struct {
	// StatusCode is the HTTP status returned upstream (0 for contract violations).
	StatusCode int
	// Body is the raw response body.
	Body string
	// Message is the best-effort human-readable reason.
	Message string
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, msg)
	}
	return "upstream error: " + msg
}

// NetworkError is a transport or response parsing failure.
type NetworkError struct {
	// Op names the failed operation, e.g. "generate" or "check status".
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// MessageFromBody extracts an error message from a JSON response body.
// It understands {"error":"..."}, {"error":{"message":"..."}} and
// {"message":"..."}. It returns "" when none match.
func MessageFromBody(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Error) > 0 {
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return payload.Message
}
