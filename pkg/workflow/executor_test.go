package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dukex/taskflow/pkg/actions"
	"github.com/dukex/taskflow/pkg/boards/memory"
	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/metrics"
	"github.com/dukex/taskflow/pkg/models"
	persistmemory "github.com/dukex/taskflow/pkg/persistence/memory"
	"github.com/dukex/taskflow/pkg/services"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[string][]string
}

func (n *recordingNotifier) Notify(_ context.Context, userID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.messages == nil {
		n.messages = make(map[string][]string)
	}

	n.messages[userID] = append(n.messages[userID], message)

	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.keys = append(p.keys, key)
	p.events = append(p.events, event)

	return nil
}

type panicRunner struct{}

func (panicRunner) Execute(context.Context, models.Action, actions.Context) actions.Result {
	panic("runner exploded")
}

type engine struct {
	persistence *persistmemory.Persistence
	store       *services.Workflow
	history     *services.History
	boards      *memory.Repository
	notifier    *recordingNotifier
	publisher   *recordingPublisher
	metrics     *metrics.Registry
	executor    *Executor
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	logger := testLogger()
	p := persistmemory.NewPersistence()

	store, err := services.NewWorkflow(t.Context(), p, logger)
	require.NoError(t, err)

	history, err := services.NewHistory(t.Context(), p, logger, 0)
	require.NoError(t, err)

	e := &engine{
		persistence: p,
		store:       store,
		history:     history,
		boards: memory.NewRepository(&models.Board{
			ID: "board-1",
			Columns: []models.Column{
				{ID: "todo", Title: "To Do", Tasks: []models.Task{
					{ID: "task-1", Title: "Draft roadmap", Priority: models.PriorityMedium},
					{ID: "task-2", Title: "Fix outage", Priority: models.PriorityHigh, Members: []string{"u-member"}},
				}},
				{ID: "done", Title: "Done"},
			},
		}),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		metrics:   metrics.NewRegistry(),
	}

	users := memory.NewDirectory(
		models.User{ID: "u-member", Role: models.RoleMember},
		models.User{ID: "u-admin", Role: models.RoleAdmin},
	)

	runner := actions.NewExecutor(e.boards, users, e.notifier, logger)
	e.executor = NewExecutor(store, history, runner, e.boards, logger,
		WithPublisher(e.publisher),
		WithMetrics(e.metrics),
	)

	return e
}

func (e *engine) create(t *testing.T, workflow *models.Workflow) *models.Workflow {
	t.Helper()

	created, err := e.store.Create(t.Context(), workflow)
	require.NoError(t, err)

	return created
}

func (e *engine) task(t *testing.T, taskID string) *models.Task {
	t.Helper()

	board, err := e.boards.Board(t.Context(), "board-1")
	require.NoError(t, err)

	task, _, ok := board.FindTask(taskID)
	require.True(t, ok)

	return task
}

func (e *engine) taskEvent(t *testing.T, triggerType models.TriggerType, taskID string) models.TriggerEvent {
	return models.TriggerEvent{Type: triggerType, BoardID: "board-1", Task: e.task(t, taskID), ActorID: "u-member"}
}

func assignHighPriority() *models.Workflow {
	return &models.Workflow{
		Name:     "Assign high priority to PM",
		IsActive: true,
		Trigger:  models.Trigger{Type: models.TriggerTaskCreated, Config: models.TaskFilter{}},
		Conditions: []models.Condition{
			{Field: "priority", Operator: models.OperatorEquals, Value: "High"},
		},
		Actions: []models.Action{
			{Type: models.ActionAssignTask, Order: 1, Config: models.AssignTaskConfig{AssigneeID: models.ProjectManagerAssignee}},
		},
	}
}

func TestExecutor_AssignHighPriorityScenario(t *testing.T) {
	e := newEngine(t)
	wf := e.create(t, assignHighPriority())

	results := e.executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskCreated, "task-1"))
	require.Len(t, results, 1)
	assert.Equal(t, models.ExecutionCompleted, results[0].Status)
	assert.Equal(t, 0, results[0].ActionsExecuted)
	require.Len(t, results[0].Logs, 1)
	assert.Equal(t, "conditions not met", results[0].Logs[0].Message)
	assert.Nil(t, e.task(t, "task-1").Members)

	stored, _ := e.store.Get(t.Context(), wf.ID)
	assert.Equal(t, 0, stored.ExecutionCount)

	results = e.executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskCreated, "task-2"))
	require.Len(t, results, 1)
	assert.Equal(t, models.ExecutionCompleted, results[0].Status)
	assert.Equal(t, 1, results[0].ActionsExecuted)
	assert.Equal(t, 1, results[0].TotalActions)
	assert.Equal(t, "u-member", results[0].TriggeredBy)
	assert.Equal(t, []string{"u-member", "u-admin"}, e.task(t, "task-2").Members)

	stored, _ = e.store.Get(t.Context(), wf.ID)
	assert.Equal(t, 1, stored.ExecutionCount)
	assert.NotNil(t, stored.LastExecuted)

	assert.Len(t, e.history.All(t.Context()), 2)
}

func TestExecutor_FailedActionDoesNotStopLaterActions(t *testing.T) {
	e := newEngine(t)
	e.create(t, &models.Workflow{
		Name:     "Best effort",
		IsActive: true,
		Trigger:  models.Trigger{Type: models.TriggerTaskUpdated},
		Actions: []models.Action{
			{ID: "move", Type: models.ActionMoveTask, Order: 1, Config: models.MoveTaskConfig{}},
			{ID: "prio", Type: models.ActionSetPriority, Order: 2, Config: models.SetPriorityConfig{Priority: models.PriorityUrgent}},
		},
	})

	results := e.executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskUpdated, "task-1"))
	require.Len(t, results, 1)

	execution := results[0]
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, 1, execution.ActionsExecuted)
	assert.Equal(t, 2, execution.TotalActions)

	require.Len(t, execution.Logs, 2)
	assert.Equal(t, models.LogError, execution.Logs[0].Level)
	assert.Equal(t, "move", execution.Logs[0].ActionID)
	assert.Equal(t, models.LogInfo, execution.Logs[1].Level)
	assert.Equal(t, "prio", execution.Logs[1].ActionID)

	assert.Equal(t, models.PriorityUrgent, e.task(t, "task-1").Priority)
	assert.InDelta(t, 1, testutil.ToFloat64(e.metrics.ActionsTotal.WithLabelValues("move_task", "failed")), 0)
}

func TestExecutor_ActionsRunInAscendingOrder(t *testing.T) {
	e := newEngine(t)
	e.create(t, &models.Workflow{
		Name:     "Ordered comments",
		IsActive: true,
		Trigger:  models.Trigger{Type: models.TriggerTaskUpdated},
		Actions: []models.Action{
			{ID: "third", Type: models.ActionAddComment, Order: 3, Config: models.AddCommentConfig{Text: "3"}},
			{ID: "first", Type: models.ActionAddComment, Order: 1, Config: models.AddCommentConfig{Text: "1"}},
			{ID: "second", Type: models.ActionAddComment, Order: 2, Config: models.AddCommentConfig{Text: "2"}},
		},
	})

	results := e.executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskUpdated, "task-1"))
	require.Len(t, results, 1)

	ids := make([]string, 0, 3)
	for _, entry := range results[0].Logs {
		ids = append(ids, entry.ActionID)
	}

	assert.Equal(t, []string{"first", "second", "third"}, ids)

	activity := e.task(t, "task-1").Activity
	require.Len(t, activity, 3)
	assert.Equal(t, "1", activity[0].Message)
	assert.Equal(t, "3", activity[2].Message)
}

func TestExecutor_InactiveWorkflowsNeverRun(t *testing.T) {
	e := newEngine(t)

	triggerTypes := []models.TriggerType{
		models.TriggerTaskCreated, models.TriggerTaskUpdated, models.TriggerTaskCompleted,
		models.TriggerTaskOverdue, models.TriggerTaskAssigned, models.TriggerDueDateApproaching,
		models.TriggerSchedule, models.TriggerManual,
	}

	ids := make([]string, 0, len(triggerTypes))

	for _, triggerType := range triggerTypes {
		wf := assignHighPriority()
		wf.IsActive = false
		wf.Conditions = nil
		wf.Trigger = models.Trigger{Type: triggerType}

		if triggerType == models.TriggerSchedule {
			wf.Trigger.Config = models.ScheduleConfig{Recurrence: models.RecurrenceDaily}
		}

		ids = append(ids, e.create(t, wf).ID)
	}

	for _, triggerType := range triggerTypes {
		assert.Empty(t, e.executor.Emit(t.Context(), e.taskEvent(t, triggerType, "task-2")))
	}

	for _, id := range ids {
		stored, ok := e.store.Get(t.Context(), id)
		require.True(t, ok)
		assert.Equal(t, 0, stored.ExecutionCount)
	}

	assert.Empty(t, e.history.All(t.Context()))
}

func TestExecutor_PersistenceFailureFailsExecution(t *testing.T) {
	e := newEngine(t)
	wf := e.create(t, &models.Workflow{
		Name:     "Comment",
		IsActive: true,
		Trigger:  models.Trigger{Type: models.TriggerTaskUpdated},
		Actions:  []models.Action{{Type: models.ActionAddComment, Config: models.AddCommentConfig{Text: "hi"}}},
	})

	e.persistence.FailSaves(errors.New("disk full"))

	results := e.executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskUpdated, "task-1"))
	require.Len(t, results, 1)

	assert.Equal(t, models.ExecutionFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "disk full")
	assert.Equal(t, 1, results[0].ActionsExecuted)

	stored, _ := e.store.Get(t.Context(), wf.ID)
	assert.Equal(t, 0, stored.ExecutionCount)
	assert.Nil(t, stored.LastExecuted)

	require.Len(t, e.publisher.events, 1)
	assert.Equal(t, events.WorkflowExecutionFailedEvent, e.publisher.events[0].GetType())
}

func TestExecutor_PanicFailsExecution(t *testing.T) {
	e := newEngine(t)
	wf := e.create(t, &models.Workflow{
		Name:     "Explodes",
		IsActive: true,
		Trigger:  models.Trigger{Type: models.TriggerTaskUpdated},
		Actions:  []models.Action{{Type: models.ActionAddComment, Config: models.AddCommentConfig{Text: "hi"}}},
	})

	executor := NewExecutor(e.store, e.history, panicRunner{}, e.boards, testLogger())

	results := executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskUpdated, "task-1"))
	require.Len(t, results, 1)
	assert.Equal(t, models.ExecutionFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "runner exploded")

	stored, _ := e.store.Get(t.Context(), wf.ID)
	assert.Equal(t, 0, stored.ExecutionCount)

	history := e.history.All(t.Context())
	require.Len(t, history, 1)
	assert.Equal(t, models.ExecutionFailed, history[0].Status)
}

func TestExecutor_UnhandledActionIsObservable(t *testing.T) {
	e := newEngine(t)
	e.create(t, &models.Workflow{
		Name:     "Future action",
		IsActive: true,
		Trigger:  models.Trigger{Type: models.TriggerTaskCompleted},
		Actions: []models.Action{
			{ID: "sms", Type: "send_sms", Config: models.UnknownActionConfig{Type: "send_sms"}},
		},
	})

	results := e.executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskCompleted, "task-1"))
	require.Len(t, results, 1)

	assert.Equal(t, models.ExecutionCompleted, results[0].Status)
	assert.Equal(t, 1, results[0].ActionsExecuted)
	require.Len(t, results[0].Logs, 1)
	assert.Equal(t, models.LogWarn, results[0].Logs[0].Level)
	assert.Contains(t, results[0].Logs[0].Message, "send_sms")
}

func TestExecutor_EmitRunsAllMatchesInOrder(t *testing.T) {
	e := newEngine(t)

	first := e.create(t, &models.Workflow{
		Name: "Notify members", IsActive: true,
		Trigger: models.Trigger{Type: models.TriggerTaskAssigned},
		Actions: []models.Action{{Type: models.ActionSendNotification, Config: models.SendNotificationConfig{Message: "{task.title} assigned"}}},
	})
	second := e.create(t, &models.Workflow{
		Name: "Bump priority", IsActive: true,
		Trigger: models.Trigger{Type: models.TriggerTaskAssigned, Config: models.TaskFilter{Priority: "High"}},
		Actions: []models.Action{{Type: models.ActionSetPriority, Config: models.SetPriorityConfig{Priority: models.PriorityUrgent}}},
	})
	e.create(t, &models.Workflow{
		Name: "Other board", IsActive: true,
		Trigger: models.Trigger{Type: models.TriggerTaskAssigned, Config: models.TaskFilter{BoardID: "board-9"}},
	})

	results := e.executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskAssigned, "task-2"))
	require.Len(t, results, 2)
	assert.Equal(t, first.ID, results[0].WorkflowID)
	assert.Equal(t, second.ID, results[1].WorkflowID)

	assert.Equal(t, []string{"Fix outage assigned"}, e.notifier.messages["u-member"])
	assert.Equal(t, models.PriorityUrgent, e.task(t, "task-2").Priority)

	assert.Len(t, e.publisher.events, 2)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, e.publisher.keys)
	assert.InDelta(t, 2, testutil.ToFloat64(e.metrics.ExecutionsTotal.WithLabelValues("task_assigned", "completed")), 0)
}

func TestExecutor_EmitRunsMatchesSequentially(t *testing.T) {
	e := newEngine(t)

	e.create(t, &models.Workflow{
		Name: "Escalate", IsActive: true,
		Trigger: models.Trigger{Type: models.TriggerTaskUpdated},
		Actions: []models.Action{{Type: models.ActionSetPriority, Config: models.SetPriorityConfig{Priority: models.PriorityUrgent}}},
	})
	e.create(t, &models.Workflow{
		Name: "Announce priority", IsActive: true,
		Trigger: models.Trigger{Type: models.TriggerTaskUpdated},
		Actions: []models.Action{{Type: models.ActionAddComment, Config: models.AddCommentConfig{Text: "now {task.priority}"}}},
	})

	results := e.executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskUpdated, "task-1"))
	require.Len(t, results, 2)

	task := e.task(t, "task-1")
	require.Len(t, task.Activity, 1)
	assert.Equal(t, "now Urgent", task.Activity[0].Message)
}

type failingHistory struct {
	*services.History
}

func (failingHistory) Append(context.Context, *models.WorkflowExecution) error {
	return errors.New("history unavailable")
}

func TestExecutor_HistoryFailureIsCounted(t *testing.T) {
	e := newEngine(t)
	e.create(t, &models.Workflow{
		Name:     "Comment",
		IsActive: true,
		Trigger:  models.Trigger{Type: models.TriggerTaskUpdated},
		Actions:  []models.Action{{Type: models.ActionAddComment, Config: models.AddCommentConfig{Text: "hi"}}},
	})

	runner := actions.NewExecutor(e.boards, memory.NewDirectory(), e.notifier, testLogger())
	executor := NewExecutor(e.store, failingHistory{e.history}, runner, e.boards, testLogger(), WithMetrics(e.metrics))

	results := executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskUpdated, "task-1"))
	require.Len(t, results, 1)
	assert.Equal(t, models.ExecutionCompleted, results[0].Status)

	assert.Empty(t, e.history.All(t.Context()))
	assert.InDelta(t, 1, testutil.ToFloat64(e.metrics.HistoryFailures), 0)
}

func TestExecutor_EmitLocatesBoardOfTask(t *testing.T) {
	e := newEngine(t)
	e.create(t, &models.Workflow{
		Name: "Only todo column", IsActive: true,
		Trigger: models.Trigger{Type: models.TriggerTaskUpdated, Config: models.TaskFilter{ColumnID: "todo"}},
		Conditions: []models.Condition{
			{Field: "board_id", Operator: models.OperatorEquals, Value: "board-1"},
		},
		Actions: []models.Action{{Type: models.ActionMoveTask, Config: models.MoveTaskConfig{TargetColumnID: "done"}}},
	})

	event := e.taskEvent(t, models.TriggerTaskUpdated, "task-1")
	event.BoardID = ""

	results := e.executor.Emit(t.Context(), event)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ActionsExecuted)

	board, err := e.boards.Board(t.Context(), "board-1")
	require.NoError(t, err)

	_, column, ok := board.FindTask("task-1")
	require.True(t, ok)
	assert.Equal(t, "done", column.ID)

	assert.Empty(t, e.executor.Emit(t.Context(), event), "task left the filtered column")
}

func TestExecutor_RunManual(t *testing.T) {
	e := newEngine(t)

	wf := e.create(t, &models.Workflow{
		Name: "Manual escalation", IsActive: true,
		Trigger: models.Trigger{Type: models.TriggerTaskCreated},
		Actions: []models.Action{{Type: models.ActionSetPriority, Config: models.SetPriorityConfig{Priority: models.PriorityUrgent}}},
	})

	execution, err := e.executor.RunManual(t.Context(), wf.ID, models.TriggerEvent{BoardID: "board-1", Task: e.task(t, "task-1")})
	require.NoError(t, err)
	assert.Equal(t, models.TriggerManual, execution.TriggerType)
	assert.Equal(t, SystemActor, execution.TriggeredBy)
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, models.PriorityUrgent, e.task(t, "task-1").Priority)

	_, err = e.executor.RunManual(t.Context(), "missing", models.TriggerEvent{})
	require.ErrorIs(t, err, services.ErrWorkflowNotFound)

	_, err = e.store.ToggleActive(t.Context(), wf.ID)
	require.NoError(t, err)

	_, err = e.executor.RunManual(t.Context(), wf.ID, models.TriggerEvent{})
	require.ErrorIs(t, err, services.ErrWorkflowInactive)
}

func TestExecutor_RunScheduled(t *testing.T) {
	e := newEngine(t)

	scheduled := e.create(t, &models.Workflow{
		Name: "Weekly review", IsActive: true,
		Trigger: models.Trigger{Type: models.TriggerSchedule, Config: models.ScheduleConfig{
			Recurrence: models.RecurrenceWeekly, Time: "09:00", Weekday: 1, BoardID: "board-1",
		}},
		Actions: []models.Action{{Type: models.ActionCreateTask, Config: models.CreateTaskConfig{Title: "Weekly review"}}},
	})
	manual := e.create(t, &models.Workflow{Name: "Manual", IsActive: true, Trigger: models.Trigger{Type: models.TriggerManual}})

	execution, err := e.executor.RunScheduled(t.Context(), scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, SchedulerActor, execution.TriggeredBy)
	assert.Equal(t, 1, execution.ActionsExecuted)

	board, err := e.boards.Board(t.Context(), "board-1")
	require.NoError(t, err)
	require.Len(t, board.Columns[0].Tasks, 3)
	assert.Equal(t, "Weekly review", board.Columns[0].Tasks[2].Title)

	_, err = e.executor.RunScheduled(t.Context(), manual.ID)
	require.ErrorIs(t, err, ErrNotScheduled)
}

func TestExecutor_SerializesRunsOfSameWorkflow(t *testing.T) {
	e := newEngine(t)
	wf := e.create(t, &models.Workflow{
		Name: "Counter", IsActive: true,
		Trigger: models.Trigger{Type: models.TriggerManual},
		Actions: []models.Action{{Type: models.ActionAddComment, Config: models.AddCommentConfig{Text: "tick"}}},
	})

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := e.executor.RunManual(t.Context(), wf.ID, models.TriggerEvent{BoardID: "board-1", Task: &models.Task{ID: "task-1"}})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	stored, _ := e.store.Get(t.Context(), wf.ID)
	assert.Equal(t, 10, stored.ExecutionCount)
	assert.Len(t, e.task(t, "task-1").Activity, 10)
	assert.Equal(t, 0, e.executor.locks.size())
}

func TestExecutor_Stats(t *testing.T) {
	e := newEngine(t)

	e.create(t, assignHighPriority())
	e.create(t, &models.Workflow{Name: "Second", IsActive: true, Trigger: models.Trigger{Type: models.TriggerTaskCreated}})
	e.create(t, &models.Workflow{Name: "Third", Trigger: models.Trigger{Type: models.TriggerManual}})

	for range 2 {
		e.executor.Emit(t.Context(), e.taskEvent(t, models.TriggerTaskCreated, "task-2"))
	}

	now := time.Now().UTC()
	require.NoError(t, e.history.Append(t.Context(), &models.WorkflowExecution{ID: "x", Status: models.ExecutionFailed, TriggeredAt: now}))

	stats := e.executor.Stats(t.Context())
	assert.Equal(t, 3, stats.TotalWorkflows)
	assert.Equal(t, 2, stats.ActiveWorkflows)
	assert.Equal(t, 5, stats.TotalExecutions)
	assert.Equal(t, 4, stats.SuccessfulExecutions)
	assert.Equal(t, 1, stats.FailedExecutions)
	assert.Equal(t, models.TriggerTaskCreated, stats.MostUsedTrigger)
	assert.Equal(t, models.ActionAssignTask, stats.MostUsedAction)
}
