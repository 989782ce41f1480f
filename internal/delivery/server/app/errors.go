package app

import (
	"errors"
	"fmt"
)

// Domain error sentinels for the lifecycle services.
// These enable consistent HTTP status mapping via errors.Is().

var (
	// ErrAuth indicates the shared secret did not match.
	ErrAuth = errors.New("invalid secret")

	// ErrNotFound indicates the requested task, repository or result does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input from the caller.
	ErrValidation = errors.New("validation error")

	// ErrConflict indicates the same (task, round) is already in flight.
	ErrConflict = errors.New("conflict")

	// ErrGeneration indicates the code generation collaborator failed.
	ErrGeneration = errors.New("generation failed")

	// ErrPublish indicates the hosting collaborator failed, possibly after a
	// partial write.
	ErrPublish = errors.New("publish failed")

	// ErrPartialUpdate marks a revision where some files were replaced
	// before a later write failed.
	ErrPartialUpdate = errors.New("partial update")

	// ErrUnavailable indicates a required dependency is not configured or ready.
	ErrUnavailable = errors.New("service unavailable")
)

// AuthError wraps ErrAuth with a descriptive message.
func AuthError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrAuth)
}

// NotFoundError wraps ErrNotFound with a descriptive message.
func NotFoundError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrNotFound)
}

// ValidationError wraps ErrValidation with a descriptive message.
func ValidationError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrValidation)
}

// ConflictError wraps ErrConflict with a descriptive message.
func ConflictError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrConflict)
}

// GenerationError wraps ErrGeneration and the collaborator's cause.
func GenerationError(msg string, cause error) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrGeneration, cause)
}

// PublishError wraps ErrPublish and the collaborator's cause.
func PublishError(msg string, cause error) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrPublish, cause)
}

// UnavailableError wraps ErrUnavailable with a descriptive message.
func UnavailableError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrUnavailable)
}
