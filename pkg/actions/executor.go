// Package actions applies workflow actions to boards, tasks and notifications.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
)

// DefaultTimeout bounds a single action execution.
const DefaultTimeout = 10 * time.Second

// Status is the outcome of one action.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusUnhandled marks an action type with no handler. It is not a
	// failure, but it is reported separately from success.
	StatusUnhandled Status = "unhandled"
)

// Result reports what happened to one action.
type Result struct {
	Status  Status
	Message string
	Err     error
}

// Succeeded reports whether the action counts as executed.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded || r.Status == StatusUnhandled
}

// Context is the triggering context an action runs in. Task is a snapshot;
// handlers use its id as a handle and mutate through the board repository.
type Context struct {
	BoardID string
	Task    *models.Task
	ActorID string
}

type handlerFunc func(ctx context.Context, config models.ActionConfig, actx Context) (string, error)

// Executor dispatches actions to their handlers.
type Executor struct {
	boards    protocol.BoardRepository
	directory protocol.UserDirectory
	notifier  protocol.Notifier
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	handlers map[models.ActionType]handlerFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates an executor over the given collaborators.
func NewExecutor(
	boards protocol.BoardRepository,
	directory protocol.UserDirectory,
	notifier protocol.Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Executor {
	e := &Executor{
		boards:    boards,
		directory: directory,
		notifier:  notifier,
		logger:    logger.With("module", "action_executor"),
		timeout:   DefaultTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	e.handlers = map[models.ActionType]handlerFunc{
		models.ActionAssignTask:       e.assignTask,
		models.ActionSendNotification: e.sendNotification,
		models.ActionMoveTask:         e.moveTask,
		models.ActionSetPriority:      e.setPriority,
		models.ActionAddComment:       e.addComment,
		models.ActionCreateTask:       e.createTask,
	}

	return e
}

// Execute runs one action under the executor's timeout.
func (e *Executor) Execute(ctx context.Context, action models.Action, actx Context) Result {
	handler, ok := e.handlers[action.Type]
	if !ok {
		e.logger.WarnContext(ctx, "Unhandled action type", "action_id", action.ID, "action_type", action.Type)

		return Result{Status: StatusUnhandled, Message: fmt.Sprintf("unhandled action type %q", action.Type)}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		message string
		err     error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("action panicked: %v", r)}
			}
		}()

		message, err := handler(ctx, action.Config, actx)
		done <- outcome{message: message, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Result{Status: StatusFailed, Message: out.err.Error(), Err: out.err}
		}

		return Result{Status: StatusSucceeded, Message: out.message}
	case <-ctx.Done():
		err := fmt.Errorf("%w after %s: %w", ErrActionTimeout, e.timeout, ctx.Err())

		return Result{Status: StatusFailed, Message: err.Error(), Err: err}
	}
}

func requireTaskAndBoard(actx Context) error {
	if actx.Task == nil {
		return ErrMissingTask
	}

	if actx.BoardID == "" {
		return ErrMissingBoard
	}

	return nil
}

// updateTask runs fn against the live task identified by the context's task handle.
func (e *Executor) updateTask(ctx context.Context, actx Context, fn func(task *models.Task) error) error {
	return e.boards.UpdateBoard(ctx, actx.BoardID, func(board *models.Board) error {
		task, _, ok := board.FindTask(actx.Task.ID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, actx.Task.ID)
		}

		return fn(task)
	})
}

// currentTask returns the latest stored version of the context task, falling
// back to the snapshot when the board cannot be read.
func (e *Executor) currentTask(ctx context.Context, actx Context) *models.Task {
	if actx.Task == nil {
		return nil
	}

	if actx.BoardID != "" {
		if board, err := e.boards.Board(ctx, actx.BoardID); err == nil {
			if task, _, ok := board.FindTask(actx.Task.ID); ok {
				return task
			}
		}
	}

	return actx.Task
}
