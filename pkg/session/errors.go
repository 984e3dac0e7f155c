package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession reports that no usable session exists for an identifier.
	// Stale sessions and failed default-session creation both surface as ErrNoSession.
	ErrNoSession = errors.New("no session available")

	// ErrSessionExists is returned by Create when a live session already uses the identifier.
	ErrSessionExists = errors.New("session already exists")

	// ErrCleanupInProgress is returned by Create while the identifier is being torn down.
	ErrCleanupInProgress = errors.New("session cleanup in progress")

	// ErrCreationInProgress is returned by Create while another Create for the
	// same identifier has not finished.
	ErrCreationInProgress = errors.New("session creation in progress")

	// ErrDefaultID is returned by Create for the default identifier, which only
	// GetOrCreate may create.
	ErrDefaultID = errors.New("default session is created implicitly")
)

// ConfigurationError reports missing required settings, such as credentials.
// A creation attempt that fails with a ConfigurationError is never retried.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is required", e.Field)
}

// CreationError reports a failed remote session creation.
type CreationError struct {
	ID      string
	Attempt int
	Cause   error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to create/connect session %s (attempt %d): %v", e.ID, e.Attempt, e.Cause)
}

func (e *CreationError) Unwrap() error {
	return e.Cause
}

func isConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
