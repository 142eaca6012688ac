package api

import (
	"errors"
	"fmt"
)

// APIError is a response the server answered with a non-success status.
// Message is the server-supplied message when present, the HTTP status text
// otherwise. Detail carries the parsed response body, if any.
type APIError struct {
	Status  int
	Message string
	Detail  map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// ErrAuthExpired is returned when a 401 survives the one refresh-and-retry
// cycle. The session has been cleared by the time the caller sees it; the
// only recovery is signing in again.
var ErrAuthExpired = errors.New("api: authentication expired")

// IsAuthExpired reports whether err indicates an exhausted authentication.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// StatusOf returns the HTTP status of an APIError, or 0 for other errors
// (including transport failures, which never received a response).
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
