package devin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ServiceName identifies this integration in [APIError] messages.
const ServiceName = "devin"

// Sentinel errors returned (wrapped) by [Client] methods.
var (
	// ErrUnauthorized indicates invalid or missing authentication.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrMissingAPIKey is returned before any request when no key is configured.
	ErrMissingAPIKey = fmt.Errorf("DEVIN_API_KEY is required: %w", ErrUnauthorized)

	// ErrForbidden indicates the key lacks permission for the operation.
	ErrForbidden = errors.New("permission denied")

	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("bad request")

	// ErrServerError indicates a server-side error occurred.
	ErrServerError = errors.New("server error")
)

// APIError is a non-2xx response from the session API.
type APIError struct {
	// Service is always [ServiceName] for errors from this package.
	Service string

	// StatusCode is the HTTP status code returned.
	StatusCode int

	// Message is the error detail from the response body.
	Message string

	// Endpoint is the path that was called.
	Endpoint string

	// RequestID is the X-Request-Id response header, if present.
	RequestID string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s API error (%d) at %s [%s]: %s",
			e.Service, e.StatusCode, e.Endpoint, e.RequestID, e.Message)
	}
	return fmt.Sprintf("%s API error (%d) at %s: %s",
		e.Service, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap returns the sentinel error matching the status code.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if e.StatusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// IsFatal reports whether a polling read error should end polling at once.
//
// Authentication and permission failures cannot heal between polls.
// Everything else, including not-found (sessions can lag behind creation),
// is treated as transient. Context errors are not fatal here; the poller
// reports them as a stop.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsNotFound reports whether the error indicates the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited reports whether the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
