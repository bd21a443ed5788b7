package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState indicates that an operation is not allowed in the
	// thread's current state (for example a decision on a finished thread).
	ErrInvalidState = errors.New("invalid state")

	// ErrThreadBusy indicates that another caller holds the execution lease
	// for the thread.
	ErrThreadBusy = errors.New("thread busy")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// InvalidStateError describes an operation rejected because of the thread's
// pending step.
type InvalidStateError struct {
	ThreadID string
	Pending  PendingStep
	Op       string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: cannot %s thread %s (pending: %s)", e.Op, e.ThreadID, e.Pending)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// ThreadBusyError is returned when the execution lease for a thread is held
// elsewhere.
type ThreadBusyError struct {
	ThreadID string
}

// Error implements the error interface.
func (e *ThreadBusyError) Error() string {
	return fmt.Sprintf("thread busy: %s", e.ThreadID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ThreadBusyError) Unwrap() error {
	return ErrThreadBusy
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewInvalidStateError creates a new InvalidStateError.
func NewInvalidStateError(threadID string, pending PendingStep, op string) *InvalidStateError {
	return &InvalidStateError{
		ThreadID: threadID,
		Pending:  pending,
		Op:       op,
	}
}

// NewThreadBusyError creates a new ThreadBusyError.
func NewThreadBusyError(threadID string) *ThreadBusyError {
	return &ThreadBusyError{ThreadID: threadID}
}
