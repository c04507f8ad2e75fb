package errors

import (
	"errors"
	"fmt"
)

// Sync errors - these classify failures of the realtime subsystem
var (
	// Channel
	ErrAuthRejected     = errors.New("channel authentication rejected")
	ErrTransportFailure = errors.New("channel transport failure")
	ErrNotConnected     = errors.New("channel not connected")
	ErrNoCredential     = errors.New("no access token available")

	// REST collaborator
	ErrRequestFailed = errors.New("request failed")
	ErrUnauthorized  = errors.New("unauthorized")

	// Events & ledger
	ErrUnknownEvent      = errors.New("unknown event type")
	ErrMalformedEvent    = errors.New("malformed event payload")
	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrEntityIDRequired  = errors.New("entity ID is required")
)

// RequestError describes a non-2xx response from the REST collaborator.
type RequestError struct {
	Op         string // e.g. "list notifications"
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

func (e *RequestError) Unwrap() error {
	if e.StatusCode == 401 {
		return ErrUnauthorized
	}
	return ErrRequestFailed
}

// IsAuthRejected reports whether err means the current credential must not be reused.
func IsAuthRejected(err error) bool {
	return errors.Is(err, ErrAuthRejected) || errors.Is(err, ErrUnauthorized)
}
