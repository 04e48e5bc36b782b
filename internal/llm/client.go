package llm

import (
	"context"
	"fmt"

	"github.com/Jurkyy/project-pilot/internal/credential"
)

// Role tags a prompt segment
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one role-tagged prompt segment
type Message struct {
	Role    Role
	Content string
}

// Query is a composed prompt, sent as-is on every attempt
type Query struct {
	Messages []Message
}

// Status classifies the outcome of a Send
type Status string

const (
	StatusSuccess           Status = "success"
	StatusRateLimited       Status = "rate_limited"
	StatusTimeout           Status = "timeout"
	StatusTransportError    Status = "transport_error"
	StatusInvalidCredential Status = "invalid_credential"
)

// Response is the raw model text plus how it was obtained
type Response struct {
	Text      string
	Status    Status
	Attempts  int
	Retryable bool
	// Truncated is set when the model stopped on its token limit
	Truncated bool
	Model     string
	Usage     Usage
	Err       error
}

// OK reports whether the response carries usable text
func (r Response) OK() bool {
	return r.Status == StatusSuccess
}

// Error returns a descriptive error for a failed response, nil otherwise
func (r Response) Error() error {
	if r.OK() {
		return nil
	}
	return &TransportError{Status: r.Status, Attempts: r.Attempts, Retryable: r.Retryable, Err: r.Err}
}

// Usage reports token accounting when the provider returns it
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is a single successful transport exchange
type Completion struct {
	Text         string
	FinishReason string
	Model        string
	Usage        Usage
}

// Transport performs one request against the model endpoint
type Transport interface {
	Complete(ctx context.Context, key credential.Key, q Query) (Completion, error)
	// Name returns the provider name, for logs
	Name() string
}

// TransportError is the error form of a failed Response
type TransportError struct {
	Status    Status
	Attempts  int
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("llm request failed (%s) after %d attempt(s)", e.Status, e.Attempts)
	}
	return fmt.Sprintf("llm request failed (%s) after %d attempt(s): %v", e.Status, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
