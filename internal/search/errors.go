package search

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingAPIKey is returned when the primary provider has no credentials.
var ErrMissingAPIKey = errors.New("search API key not configured")

// SearchError describes a failed call to a search provider.
type SearchError struct {
	// Provider is the search backend name (e.g., "tavily").
	Provider string
	// StatusCode is the HTTP status returned, or 0 when no response was received.
	StatusCode int
	// Message is the provider's error text, if any.
	Message string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: search failed (status %d): %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: search failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: search failed: %s", e.Provider, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *SearchError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether the provider rejected or lacked credentials.
func (e *SearchError) IsAuth() bool {
	return errors.Is(e.Err, ErrMissingAPIKey) ||
		e.StatusCode == http.StatusUnauthorized ||
		e.StatusCode == http.StatusForbidden
}
