package actions

import "errors"

// Configuration and lookup failures. They fail the action, never the execution.
var (
	ErrMissingTask     = errors.New("action requires a task")
	ErrMissingBoard    = errors.New("action requires a board")
	ErrMissingField    = errors.New("required configuration field is missing")
	ErrTaskNotFound    = errors.New("task not found on board")
	ErrColumnNotFound  = errors.New("column not found on board")
	ErrSameColumn      = errors.New("task is already in the target column")
	ErrActionTimeout   = errors.New("action timed out")
	ErrAssigneeUnknown = errors.New("assignee could not be resolved")
)
