// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Business outcomes
	ErrPreconditionFailed = errors.New("precondition failed")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "quiz", "family", "notification"
	Op      string // Operation that failed, e.g., "Create", "Generate"
	Kind    error  // Base error type for errors.Is() checking
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
	if e == target {
		return true
	}
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

// Pipeline error taxonomy. Each daily-generation failure mode maps to exactly
// one of these, so callers decide batch behavior with errors.Is().
var (
	// ErrConfigFetch means the active quiz configurations could not be loaded.
	// Fatal to the whole batch run: nothing can be processed safely.
	ErrConfigFetch = NewDomainError("quiz", "ListConfigs", ErrServiceUnavailable, "failed to fetch quiz configurations")

	// ErrGeneration means the content service returned an error, timed out, or
	// produced output that failed structural validation. Fatal to one child's
	// run only.
	ErrGeneration = NewDomainError("quiz", "Generate", ErrExternalService, "quiz generation failed")

	// ErrInsufficientBalance means the parent's balance does not cover the
	// reward. An expected business outcome, not a system fault.
	ErrInsufficientBalance = NewDomainError("family", "Reserve", ErrPreconditionFailed, "insufficient parent balance")

	// ErrPersistence means the transactional quiz-set write failed and was
	// rolled back. Fatal to one child's run only.
	ErrPersistence = NewDomainError("quiz", "Create", ErrInvalidState, "failed to persist quiz set")

	// ErrSetExistsToday means an automatic quiz set already exists for the
	// child today. The pipeline treats this as a successful no-op.
	ErrSetExistsToday = NewDomainError("quiz", "Create", ErrAlreadyExists, "automatic quiz set already exists for today")

	// ErrNotification means the outbound message could not be delivered.
	// Never affects quiz-set success.
	ErrNotification = NewDomainError("notification", "Send", ErrExternalService, "failed to send notification")
)

// Family domain errors
var (
	ErrChildNotFound  = NewDomainError("family", "Find", ErrNotFound, "child not found")
	ErrParentNotFound = NewDomainError("family", "Find", ErrNotFound, "parent account not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
