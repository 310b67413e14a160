package xclient

import (
	"errors"
	"fmt"

	"reputest/internal/logging"
)

var (
	// ErrAuthUnavailable is a 401 with no refresh credentials configured.
	ErrAuthUnavailable = errors.New("unauthorized, no refresh available")
	// ErrRefreshFailed is a rejected token exchange.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrUpstream is any other non-success status.
	ErrUpstream = errors.New("upstream error")
)

// APIError describes a failed call. Body holds the raw response; Error()
// only embeds a truncated summary of it.
type APIError struct {
	Op      string
	Status  int
	Summary string
	Body    []byte
	kind    error
}

func newAPIError(kind error, op string, status int, body []byte) *APIError {
	return &APIError{Op: op, Status: status, Summary: logging.SanitizeBody(body), Body: body, kind: kind}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.kind, e.Status, e.Summary)
}

func (e *APIError) Unwrap() error { return e.kind }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
