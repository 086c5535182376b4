// Package workflow matches trigger events to workflows, evaluates their
// conditions and runs their actions.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/taskflow/pkg/actions"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/metrics"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/dukex/taskflow/pkg/services"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotScheduled is returned by RunScheduled for workflows without a schedule trigger.
var ErrNotScheduled = errors.New("workflow does not have a schedule trigger")

// SystemActor is recorded as TriggeredBy when an event has no actor.
const SystemActor = "system"

// SchedulerActor is the actor of scheduler driven runs.
const SchedulerActor = "scheduler"

// WorkflowStore is the part of the rule store the executor needs.
type WorkflowStore interface {
	List(ctx context.Context) []*models.Workflow
	Get(ctx context.Context, id string) (*models.Workflow, bool)
	RecordExecution(ctx context.Context, id string, at time.Time) (bool, error)
}

// ExecutionHistory stores finished executions.
type ExecutionHistory interface {
	Append(ctx context.Context, execution *models.WorkflowExecution) error
	All(ctx context.Context) []*models.WorkflowExecution
}

// ActionRunner executes a single action.
type ActionRunner interface {
	Execute(ctx context.Context, action models.Action, actx actions.Context) actions.Result
}

// Executor is the execution orchestrator. The workflows matched by one event
// run one after another in match order; runs of the same workflow triggered by
// concurrent events are serialized.
type Executor struct {
	workflows WorkflowStore
	history   ExecutionHistory
	actions   ActionRunner
	boards    protocol.BoardRepository
	matcher   *TriggerMatcher
	logger    *slog.Logger

	publisher protocol.Publisher
	tracer    trace.Tracer
	metrics   *metrics.Registry
	now       func() time.Time

	locks *keyedMutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithPublisher publishes a lifecycle event for every finished execution.
func WithPublisher(publisher protocol.Publisher) Option {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

// WithTracer records a span per execution and per action.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithMetrics counts executions and action outcomes.
func WithMetrics(registry *metrics.Registry) Option {
	return func(e *Executor) {
		e.metrics = registry
	}
}

// WithClock overrides the clock used for execution timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates the orchestrator.
func NewExecutor(
	workflows WorkflowStore,
	history ExecutionHistory,
	runner ActionRunner,
	boards protocol.BoardRepository,
	logger *slog.Logger,
	opts ...Option,
) *Executor {
	e := &Executor{
		workflows: workflows,
		history:   history,
		actions:   runner,
		boards:    boards,
		matcher:   NewTriggerMatcher(logger),
		logger:    logger.With("module", "workflow_executor"),
		tracer:    otelhelper.NoopTracer(),
		now:       func() time.Time { return time.Now().UTC() },
		locks:     newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Emit runs every active workflow whose trigger accepts the event and returns
// the finished executions in match order. Failures are reported through the
// executions, never as errors.
func (e *Executor) Emit(ctx context.Context, event models.TriggerEvent) []*models.WorkflowExecution {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}

	event, columnID := e.locate(ctx, event)
	matched := e.matcher.MatchWorkflows(event, columnID, e.workflows.List(ctx))

	e.logger.InfoContext(ctx, "Event received",
		"trigger_type", event.Type,
		"board_id", event.BoardID,
		"matched", len(matched))

	results := make([]*models.WorkflowExecution, 0, len(matched))

	for _, workflow := range matched {
		results = append(results, e.run(ctx, workflow, event, columnID))
	}

	return results
}

// RunManual runs one workflow regardless of its trigger type. The event
// provides the optional task and board context.
func (e *Executor) RunManual(ctx context.Context, workflowID string, event models.TriggerEvent) (*models.WorkflowExecution, error) {
	workflow, ok := e.workflows.Get(ctx, workflowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", services.ErrWorkflowNotFound, workflowID)
	}

	if !workflow.IsActive {
		return nil, fmt.Errorf("%w: %s", services.ErrWorkflowInactive, workflowID)
	}

	event.Type = models.TriggerManual
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}

	event, columnID := e.locate(ctx, event)

	return e.run(ctx, workflow, event, columnID), nil
}

// RunScheduled runs a schedule-triggered workflow for one scheduler tick.
func (e *Executor) RunScheduled(ctx context.Context, workflowID string) (*models.WorkflowExecution, error) {
	workflow, ok := e.workflows.Get(ctx, workflowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", services.ErrWorkflowNotFound, workflowID)
	}

	if workflow.Trigger.Type != models.TriggerSchedule {
		return nil, fmt.Errorf("%w: %s", ErrNotScheduled, workflowID)
	}

	if !workflow.IsActive {
		return nil, fmt.Errorf("%w: %s", services.ErrWorkflowInactive, workflowID)
	}

	cfg, _ := workflow.Trigger.Config.(models.ScheduleConfig)
	event := models.TriggerEvent{
		Type:       models.TriggerSchedule,
		BoardID:    cfg.BoardID,
		ActorID:    SchedulerActor,
		OccurredAt: e.now(),
	}

	return e.run(ctx, workflow, event, ""), nil
}

// locate fills in the board of the event task when the caller left it out
// and returns the column currently holding the task.
func (e *Executor) locate(ctx context.Context, event models.TriggerEvent) (models.TriggerEvent, string) {
	if event.Task == nil || e.boards == nil {
		return event, ""
	}

	if event.BoardID != "" {
		board, err := e.boards.Board(ctx, event.BoardID)
		if err != nil {
			e.logger.DebugContext(ctx, "Event board not found", "board_id", event.BoardID, "error", err)

			return event, ""
		}

		if _, column, ok := board.FindTask(event.Task.ID); ok {
			return event, column.ID
		}

		return event, ""
	}

	boards, err := e.boards.Boards(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to list boards", "error", err)

		return event, ""
	}

	for _, board := range boards {
		if _, column, ok := board.FindTask(event.Task.ID); ok {
			event.BoardID = board.ID

			return event, column.ID
		}
	}

	return event, ""
}

func (e *Executor) run(
	ctx context.Context,
	workflow *models.Workflow,
	event models.TriggerEvent,
	columnID string,
) *models.WorkflowExecution {
	unlock := e.locks.Lock(workflow.ID)
	defer unlock()

	start := e.now()
	triggeredBy := event.ActorID

	if triggeredBy == "" {
		triggeredBy = SystemActor
	}

	execution := &models.WorkflowExecution{
		ID:           uuid.New().String(),
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		TriggerType:  event.Type,
		TriggeredBy:  triggeredBy,
		TriggeredAt:  start,
		Status:       models.ExecutionRunning,
		TotalActions: len(workflow.Actions),
		Logs:         []models.ExecutionLogEntry{},
	}

	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
		"trigger_type", event.Type,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.TriggerTypeKey, string(event.Type)),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.BoardIDKey, event.BoardID),
	)
	defer span.End()

	e.metrics.ExecutionStarted()
	defer e.metrics.ExecutionFinished()

	logger.InfoContext(ctx, "Starting workflow execution")

	if err := e.execute(ctx, logger, workflow, event, columnID, execution); err != nil {
		execution.Status = models.ExecutionFailed
		execution.Error = err.Error()
		execution.Log(models.LogError, "", err.Error())
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Workflow execution failed", "error", err)
	}

	elapsed := e.now().Sub(start)
	execution.ExecutionTime = elapsed.Milliseconds()

	span.SetAttributes(
		attribute.String("taskflow.execution.status", string(execution.Status)),
		attribute.Int("taskflow.execution.actions_executed", execution.ActionsExecuted),
	)

	e.metrics.ObserveExecution(string(event.Type), string(execution.Status), elapsed)

	if err := e.history.Append(ctx, execution); err != nil {
		e.metrics.ObserveHistoryFailure()
		logger.ErrorContext(ctx, "Failed to store execution", "error", err)
	}

	e.publish(ctx, logger, execution)

	logger.InfoContext(ctx, "Finished workflow execution",
		"status", execution.Status,
		"actions_executed", execution.ActionsExecuted,
		"total_actions", execution.TotalActions,
		"duration_ms", execution.ExecutionTime)

	return execution
}

// execute drives one execution to a terminal state. A returned error means
// the execution failed outside of action execution.
func (e *Executor) execute(
	ctx context.Context,
	logger *slog.Logger,
	workflow *models.Workflow,
	event models.TriggerEvent,
	columnID string,
	execution *models.WorkflowExecution,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow execution panicked: %v", r)
		}
	}()

	if !Evaluate(workflow.Conditions, BuildContext(event, columnID)) {
		execution.Log(models.LogInfo, "", "conditions not met")
		execution.Status = models.ExecutionCompleted

		return nil
	}

	steps := slices.Clone(workflow.Actions)
	slices.SortStableFunc(steps, func(a, b models.Action) int { return a.Order - b.Order })

	actx := actions.Context{BoardID: event.BoardID, Task: event.Task, ActorID: event.ActorID}

	for _, action := range steps {
		result := e.runAction(ctx, action, actx)
		e.metrics.ObserveAction(string(action.Type), string(result.Status))

		if !result.Succeeded() {
			execution.Log(models.LogError, action.ID, fmt.Sprintf("%s failed: %s", action.Type, result.Message))
			logger.WarnContext(ctx, "Action failed", "action_id", action.ID, "action_type", action.Type, "error", result.Err)

			continue
		}

		execution.ActionsExecuted++

		if result.Status == actions.StatusUnhandled {
			execution.Log(models.LogWarn, action.ID, result.Message)
		} else {
			execution.Log(models.LogInfo, action.ID, fmt.Sprintf("%s: %s", action.Type, result.Message))
		}
	}

	recorded, err := e.workflows.RecordExecution(ctx, workflow.ID, e.now())
	if err != nil {
		return err
	}

	if !recorded {
		logger.WarnContext(ctx, "Workflow removed during execution, counters not updated")
	}

	execution.Status = models.ExecutionCompleted

	return nil
}

func (e *Executor) runAction(ctx context.Context, action models.Action, actx actions.Context) actions.Result {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.action",
		attribute.String(otelhelper.ActionIDKey, action.ID),
		attribute.String(otelhelper.ActionTypeKey, string(action.Type)),
	)
	defer span.End()

	result := e.actions.Execute(ctx, action, actx)
	if result.Status == actions.StatusFailed && result.Err != nil {
		otelhelper.SetError(span, result.Err)
	}

	return result
}

func (e *Executor) publish(ctx context.Context, logger *slog.Logger, execution *models.WorkflowExecution) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, execution.WorkflowID, events.NewExecutionEvent(execution)); err != nil {
		logger.ErrorContext(ctx, "Failed to publish execution event", "error", err)
	}
}
