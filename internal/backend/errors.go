package backend

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the backend has no game with the requested id.
var ErrNotFound = errors.New("backend: game not found")

// HTTPError is any non-success response not covered by a more specific error.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend: HTTP %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying later could succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// AuthError indicates the bearer token was missing, expired or rejected.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("backend: authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}
