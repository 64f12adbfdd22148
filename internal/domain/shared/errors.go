// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR TAXONOMY
// ══════════════════════════════════════════════════════════════════════════════

// Base error kinds. Every error the engine surfaces maps to exactly one of
// these five kinds, which drives retry and propagation policy:
//
//   - NotFound:      surfaced immediately, never retried
//   - AlreadyExists: duplicate start is idempotent success, not a failure
//   - Validation:    malformed input, never retried
//   - Transient:     storage/network failure, retried with backoff
//   - Fatal:         unexpected internal failure, logged and surfaced
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")
	ErrTransient     = errors.New("transient failure")
	ErrFatal         = errors.New("fatal internal error")

	// Validation sub-kinds.
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("empty value")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrStateTransition = errors.New("invalid state transition")

	// Concurrency errors. Optimistic lock failures are transient: the
	// caller re-reads and retries.
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External collaborator errors.
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "badge", "streak"
	Op      string // Operation that failed, e.g., "StartModule", "Award"
	Kind    error  // Base error kind for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Content collaborator errors.
var (
	ErrModuleNotFound = NewDomainError("content", "GetModule", ErrNotFound, "module not found")
	ErrLessonNotFound = NewDomainError("content", "GetLesson", ErrNotFound, "lesson not found")
)

// Progress domain errors.
var (
	ErrProgressNotFound       = NewDomainError("progress", "Find", ErrNotFound, "no progress found")
	ErrLessonProgressNotFound = NewDomainError("progress", "FindLesson", ErrNotFound, "lesson progress not found: module must be started first")
	ErrProgressAlreadyExists  = NewDomainError("progress", "StartModule", ErrAlreadyExists, "module already started")
	ErrLessonStateTransition  = NewDomainError("progress", "Transition", ErrStateTransition, "lesson status cannot move backward")
)

// Badge domain errors.
var (
	ErrBadgeNotFound       = NewDomainError("badge", "Find", ErrNotFound, "badge not found in catalog")
	ErrBadgeAlreadyAwarded = NewDomainError("badge", "Award", ErrAlreadyExists, "badge already awarded to user")
	ErrUnknownCriteria     = NewDomainError("badge", "Evaluate", ErrInvalidInput, "no criteria registered for badge")
)

// Streak domain errors.
var (
	ErrStreakNotFound = NewDomainError("streak", "Find", ErrNotFound, "streak record not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFIERS
// ══════════════════════════════════════════════════════════════════════════════

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
// Callers treat this as idempotent success on start/award paths.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrStateTransition)
}

// IsTransient checks if the operation can be retried safely.
// Retry exhaustion surfaces the error unchanged, signaling "state may or
// may not have changed, retry is safe".
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrOptimisticLock)
}

// IsFatal checks if the error is an unexpected internal failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
