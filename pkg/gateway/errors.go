package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a request-scoped failure that carries the HTTP status and the
// message returned to the caller.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors with the same status and message, so sentinels survive
// wrapping and copying.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Message == t.Message
}

var (
	// ErrUnsupportedTask rejects envelopes without a known task.
	ErrUnsupportedTask = &Error{Status: http.StatusBadRequest, Message: "Missing or unsupported task"}
	// ErrNotConfigured is returned when no model provider is available.
	ErrNotConfigured = &Error{Status: http.StatusInternalServerError, Message: "OPENAI_API_KEY is not configured"}
	// ErrRequestFailed covers every failure without a more specific mapping.
	ErrRequestFailed = &Error{Status: http.StatusInternalServerError, Message: "AI request failed"}
	// ErrEmptyUpstream is returned when no model text could be found.
	ErrEmptyUpstream = &Error{Status: http.StatusBadGateway, Message: "AI returned empty response"}
	// ErrInvalidUpstreamJSON is returned when the model text is not JSON.
	ErrInvalidUpstreamJSON = &Error{Status: http.StatusBadGateway, Message: "AI returned invalid JSON"}
	// ErrNoSuggestions is returned when smart replies yield nothing usable.
	ErrNoSuggestions = &Error{Status: http.StatusBadGateway, Message: "No suggestions produced"}
)

func badRequest(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// badUpstream re-labels a validation failure on model output as a 502.
func badUpstream(err *Error) *Error {
	return &Error{Status: http.StatusBadGateway, Message: err.Message}
}

// AsError returns the *Error in err's chain, or ErrRequestFailed.
func AsError(err error) *Error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return ErrRequestFailed
}

// StatusOf returns the HTTP status err maps to.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return AsError(err).Status
}
