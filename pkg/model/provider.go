// Package model holds the adapters that send a prompt to an LLM provider and
// hand back the provider's raw response body for extraction.
package model

import (
	"context"
	"fmt"
)

// Message roles understood by every provider.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one role-tagged input segment.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request.
type Request struct {
	Model       string    `json:"model"`
	Temperature float32   `json:"temperature"`
	Input       []Message `json:"input"`
}

// Provider is the interface every model backend must implement.
// Complete returns the provider's raw JSON response; callers extract the
// model text from it, since the response shape differs between APIs.
type Provider interface {
	// Complete sends req and returns the raw response body.
	Complete(ctx context.Context, req Request) ([]byte, error)

	// CheckHealth verifies that the provider is reachable and the credentials
	// are accepted.
	CheckHealth(ctx context.Context) error

	// Name identifies the backend in logs and metrics.
	Name() string
}

// UpstreamError is returned when the provider answers with a non-2xx status.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}
