// Package services provides the rule store, execution history, auxiliary records and template catalog.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrTriggerTypeRequired  = errors.New("workflow trigger type is required")
	ErrActionTypeRequired   = errors.New("workflow action type is required")
	ErrInvalidSchedule      = errors.New("invalid schedule trigger")
	ErrRecordNil            = errors.New("record cannot be nil")

	// Lookup Errors (404 Not Found). The rule store itself reports absence
	// through boolean results; these are used by callers that need an error.
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrRecordNotFound   = errors.New("record not found")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowInactive = errors.New("workflow is not active")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrTriggerTypeRequired) ||
		errors.Is(err, ErrActionTypeRequired) ||
		errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrRecordNil)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowInactive)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
