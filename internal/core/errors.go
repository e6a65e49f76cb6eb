package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPlaylistReference is returned when a playlist URL or ID cannot be parsed.
	ErrInvalidPlaylistReference = errors.New("invalid playlist reference")

	// ErrUnauthorized is returned when the source platform rejects the bearer token.
	// Callers use it to trigger a token refresh or re-authorization flow.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a requested record does not exist or is not
	// owned by the acting user.
	ErrNotFound = errors.New("not found")
)

// UpstreamError reports a non-401 failure from an external API.
type UpstreamError struct {
	Service string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Service, e.Status)
}

// ValidationError reports one or more field-level violations in an inbound payload.
// No database work happens once a payload fails validation.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + strings.Join(e.Violations, "; ")
}

// PersistenceError wraps a transactional database failure. The transaction has
// been rolled back; ImportID is the generated identifier for log correlation.
type PersistenceError struct {
	ImportID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist import %s: %v", e.ImportID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
