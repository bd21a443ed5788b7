package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyCompletion is returned when the provider answered without any text.
var ErrEmptyCompletion = errors.New("empty completion")

// APIError represents an error returned by an LLM provider API.
type APIError struct {
	// Provider is the name of the LLM provider (e.g., "openai").
	Provider string
	// StatusCode is the HTTP status code returned by the API.
	StatusCode int
	// Message is the error message from the API.
	Message string
	// Type is the error type classification from the API.
	Type string
	// Code is the provider-specific error code (if available).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient returns true if the error is a transient error that may succeed
// on retry: rate limiting (429), server errors (5xx), and network errors
// (StatusCode 0 means no HTTP response was received).
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// isTransientError reports whether err wraps a transient *APIError.
func isTransientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	return false
}

// CompletionError is returned by InstrumentedCompleter and carries the
// provider, model and workflow step of the failed call.
type CompletionError struct {
	Provider string
	Model    string
	Step     string
	Err      error
}

// Error implements the error interface.
func (e *CompletionError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("completion failed (provider %s, model %s, step %s): %v", e.Provider, e.Model, e.Step, e.Err)
	}
	return fmt.Sprintf("completion failed (provider %s, model %s): %v", e.Provider, e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompletionError) Unwrap() error {
	return e.Err
}

// errorType classifies err for the failure metric label.
func errorType(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == 0 {
			return "transport"
		}
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return "rate_limited"
		}
		if apiErr.StatusCode >= 500 {
			return "server"
		}
		return "client"
	case errors.Is(err, ErrEmptyCompletion):
		return "empty"
	case isContextError(err):
		return "timeout"
	default:
		return "transport"
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
