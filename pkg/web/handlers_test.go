package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/dukex/taskflow/pkg/actions"
	"github.com/dukex/taskflow/pkg/boards/memory"
	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/metrics"
	"github.com/dukex/taskflow/pkg/mocks"
	"github.com/dukex/taskflow/pkg/models"
	persistmemory "github.com/dukex/taskflow/pkg/persistence/memory"
	"github.com/dukex/taskflow/pkg/services"
	"github.com/dukex/taskflow/pkg/web"
	"github.com/dukex/taskflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string) error { return nil }

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

type testEnv struct {
	app       *fiber.App
	services  web.Services
	boards    *memory.Repository
	publisher *recordingPublisher
}

func setupTestApp(t *testing.T, withPublisher bool) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := persistmemory.NewPersistence()

	workflows, err := services.NewWorkflow(t.Context(), p, logger)
	require.NoError(t, err)

	history, err := services.NewHistory(t.Context(), p, logger, 0)
	require.NoError(t, err)

	customFields, err := services.NewCustomFields(t.Context(), p, logger)
	require.NoError(t, err)

	rules, err := services.NewAutomationRules(t.Context(), p, logger)
	require.NoError(t, err)

	boards := memory.NewRepository(&models.Board{
		ID: "board-1",
		Columns: []models.Column{
			{ID: "todo", Title: "To Do", Tasks: []models.Task{
				{ID: "task-1", Title: "Fix outage", Priority: models.PriorityHigh},
			}},
			{ID: "done", Title: "Done"},
		},
	})
	users := memory.NewDirectory(
		models.User{ID: "u-admin", Role: models.RoleAdmin},
	)

	registry := metrics.NewRegistry()
	runner := actions.NewExecutor(boards, users, nopNotifier{}, logger)
	executor := workflow.NewExecutor(workflows, history, runner, boards, logger, workflow.WithMetrics(registry))

	env := &testEnv{
		boards:    boards,
		publisher: &recordingPublisher{},
		services: web.Services{
			Workflows:       workflows,
			History:         history,
			Catalog:         services.NewCatalog(workflows),
			CustomFields:    customFields,
			AutomationRules: rules,
			Executor:        executor,
			Boards:          boards,
			Persistence:     p,
		},
	}

	if withPublisher {
		env.services.Publisher = env.publisher
	}

	handlers := web.NewAPIHandlers(env.services, validator.New(validator.WithRequiredStructEnabled()))
	env.app = web.NewApp(handlers, web.AppConfig{Gatherer: registry.Gatherer})

	return env
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, data
}

func highPriorityWorkflow() map[string]any {
	return map[string]any{
		"name":    "Assign urgent work",
		"trigger": map[string]any{"type": "task_created"},
		"conditions": []map[string]any{
			{"field": "priority", "operator": "equals", "value": "High"},
		},
		"actions": []map[string]any{
			{"type": "assign_task", "order": 1, "config": map[string]any{"assignee_id": "project-manager"}},
		},
	}
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "successful creation",
			requestBody:    highPriorityWorkflow(),
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid json",
			requestBody:    "{not json",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "missing trigger type",
			requestBody:    map[string]any{"name": "No trigger", "trigger": map[string]any{}},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "name too short",
			requestBody:    map[string]any{"name": "ab", "trigger": map[string]any{"type": "manual"}},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name: "invalid schedule",
			requestBody: map[string]any{
				"name":    "Broken schedule",
				"trigger": map[string]any{"type": "schedule", "config": map[string]any{"recurrence": "hourly"}},
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t, false)
			resp, body := doRequest(t, env.app, http.MethodPost, "/workflows", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedType != "" {
				var problem map[string]any
				require.NoError(t, json.Unmarshal(body, &problem))
				assert.Equal(t, tt.expectedType, problem["type"])

				return
			}

			var created models.Workflow
			require.NoError(t, json.Unmarshal(body, &created))
			assert.NotEmpty(t, created.ID)
			assert.True(t, created.IsActive)
			assert.Equal(t, 0, created.ExecutionCount)
			require.Len(t, created.Actions, 1)
			assert.Equal(t, models.AssignTaskConfig{AssigneeID: "project-manager"}, created.Actions[0].Config)
		})
	}
}

func TestAPIHandlers_WorkflowLifecycle(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	resp, body := doRequest(t, env.app, http.MethodPost, "/workflows", highPriorityWorkflow())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = doRequest(t, env.app, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Workflow
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.Name, fetched.Name)

	resp, body = doRequest(t, env.app, http.MethodPatch, "/workflows/"+created.ID, map[string]any{"name": "Renamed workflow"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, "Renamed workflow", fetched.Name)

	resp, body = doRequest(t, env.app, http.MethodPost, "/workflows/"+created.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.False(t, fetched.IsActive)

	resp, body = doRequest(t, env.app, http.MethodGet, "/workflows?active=false", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Workflows  []models.Workflow `json:"workflows"`
		TotalCount int               `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.TotalCount)

	resp, _ = doRequest(t, env.app, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doRequest(t, env.app, http.MethodGet, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, env.app, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, env.app, http.MethodPatch, "/workflows/missing", map[string]any{"name": "Whatever"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_PostEventRunsMatchingWorkflows(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	resp, _ := doRequest(t, env.app, http.MethodPost, "/workflows", highPriorityWorkflow())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doRequest(t, env.app, http.MethodPost, "/events", map[string]any{
		"type":     "task_created",
		"board_id": "board-1",
		"task_id":  "task-1",
		"actor_id": "u-admin",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Executions []models.WorkflowExecution `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Executions, 1)
	assert.Equal(t, models.ExecutionCompleted, result.Executions[0].Status)
	assert.Equal(t, 1, result.Executions[0].ActionsExecuted)

	board, err := env.boards.Board(t.Context(), "board-1")
	require.NoError(t, err)

	task, _, ok := board.FindTask("task-1")
	require.True(t, ok)
	assert.Equal(t, []string{"u-admin"}, task.Members)

	resp, body = doRequest(t, env.app, http.MethodGet, "/executions?status=completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Executions, 1)

	resp, _ = doRequest(t, env.app, http.MethodGet, "/executions/"+result.Executions[0].ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doRequest(t, env.app, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.TotalWorkflows)
	assert.Equal(t, 1, stats.SuccessfulExecutions)
}

func TestAPIHandlers_PostEventErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    map[string]any
		expectedStatus int
	}{
		{"missing type", map[string]any{"board_id": "board-1"}, http.StatusBadRequest},
		{"task without board", map[string]any{"type": "task_created", "task_id": "task-1"}, http.StatusBadRequest},
		{"unknown board", map[string]any{"type": "task_created", "board_id": "nope", "task_id": "task-1"}, http.StatusNotFound},
		{"unknown task", map[string]any{"type": "task_created", "board_id": "board-1", "task_id": "nope"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t, false)
			resp, _ := doRequest(t, env.app, http.MethodPost, "/events", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestAPIHandlers_PostEventWithPublisher(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, true)

	resp, body := doRequest(t, env.app, http.MethodPost, "/events", map[string]any{
		"type":     "task_updated",
		"board_id": "board-1",
		"task_id":  "task-1",
		"changes":  map[string]any{"priority": "High"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted web.EventAccepted
	require.NoError(t, json.Unmarshal(body, &accepted))
	assert.NotEmpty(t, accepted.EventID)

	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, []string{"board-1"}, env.publisher.keys)

	taskEvent, ok := env.publisher.events[0].(events.TaskEvent)
	require.True(t, ok)
	assert.Equal(t, models.TriggerTaskUpdated, taskEvent.Event.Type)
	assert.Equal(t, "task-1", taskEvent.Event.Task.ID)
}

func TestAPIHandlers_RunWorkflow(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	created, err := env.services.Workflows.Create(t.Context(), &models.Workflow{
		Name:     "Bump priority",
		IsActive: true,
		Trigger:  models.Trigger{Type: models.TriggerManual, Config: models.ManualConfig{}},
		Actions: []models.Action{
			{Type: models.ActionSetPriority, Order: 1, Config: models.SetPriorityConfig{Priority: models.PriorityUrgent}},
		},
	})
	require.NoError(t, err)

	resp, body := doRequest(t, env.app, http.MethodPost, "/workflows/"+created.ID+"/run", map[string]any{
		"board_id": "board-1",
		"task_id":  "task-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var execution models.WorkflowExecution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, models.TriggerManual, execution.TriggerType)

	resp, _ = doRequest(t, env.app, http.MethodPost, "/workflows/missing/run", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = env.services.Workflows.ToggleActive(t.Context(), created.ID)
	require.NoError(t, err)

	resp, _ = doRequest(t, env.app, http.MethodPost, "/workflows/"+created.ID+"/run", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_ImportWorkflows(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	resp, body := doRequest(t, env.app, http.MethodPost, "/workflows/import", []map[string]any{
		highPriorityWorkflow(),
		{"name": "Manual cleanup", "trigger": map[string]any{"type": "manual"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 2, result.TotalCount)
	assert.Len(t, env.services.Workflows.List(t.Context()), 2)

	resp, _ = doRequest(t, env.app, http.MethodPost, "/workflows/import", map[string]any{"name": "No trigger"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_Templates(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	resp, body := doRequest(t, env.app, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Templates []models.WorkflowTemplate `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.NotEmpty(t, list.Templates)

	resp, body = doRequest(t, env.app, http.MethodPost, "/templates/"+services.TemplateAutoAssignHighPriority+"/instantiate",
		map[string]any{"created_by": "u-admin"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "u-admin", created.CreatedBy)
	assert.NotEmpty(t, created.ID)

	resp, _ = doRequest(t, env.app, http.MethodPost, "/templates/unknown/instantiate", map[string]any{"created_by": "u-admin"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, env.app, http.MethodPost, "/templates/"+services.TemplateAutoAssignHighPriority+"/instantiate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_CustomFields(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	resp, _ := doRequest(t, env.app, http.MethodPost, "/custom-fields", map[string]any{
		"board_id": "board-1", "name": "Size", "type": "select",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doRequest(t, env.app, http.MethodPost, "/custom-fields", map[string]any{
		"board_id": "board-1", "name": "Size", "type": "select", "options": []string{"S", "M", "L"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var field models.CustomField
	require.NoError(t, json.Unmarshal(body, &field))

	resp, body = doRequest(t, env.app, http.MethodGet, "/custom-fields?board_id=board-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total_count":1`)

	resp, _ = doRequest(t, env.app, http.MethodDelete, "/custom-fields/"+field.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doRequest(t, env.app, http.MethodDelete, "/custom-fields/"+field.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_AutomationRules(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	resp, body := doRequest(t, env.app, http.MethodPost, "/automation-rules", map[string]any{
		"board_id": "board-1", "name": "Archive done", "trigger": "task_completed", "action": "archive",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule models.AutomationRule
	require.NoError(t, json.Unmarshal(body, &rule))
	assert.True(t, rule.Enabled)

	resp, body = doRequest(t, env.app, http.MethodPatch, "/automation-rules/"+rule.ID, map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &rule))
	assert.False(t, rule.Enabled)

	resp, _ = doRequest(t, env.app, http.MethodPatch, "/automation-rules/missing", map[string]any{"enabled": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doRequest(t, env.app, http.MethodGet, "/automation-rules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total_count":1`)

	resp, _ = doRequest(t, env.app, http.MethodDelete, "/automation-rules/"+rule.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPIHandlers_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	resp, body := doRequest(t, env.app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"healthy"`)

	resp, body = doRequest(t, env.app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

type countingSyncer struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSyncer) Sync(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	return nil
}

func TestAPIHandlers_ResyncsSchedulesOnChange(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)
	syncer := &countingSyncer{}

	svc := env.services
	svc.Schedules = syncer
	app := web.NewApp(web.NewAPIHandlers(svc, validator.New(validator.WithRequiredStructEnabled())), web.AppConfig{})

	resp, body := doRequest(t, app, http.MethodPost, "/workflows", map[string]any{
		"name":    "Weekly review",
		"trigger": map[string]any{"type": "schedule", "config": map[string]any{"recurrence": "weekly", "weekday": 1, "time": "09:00"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ = doRequest(t, app, http.MethodPost, "/workflows/"+created.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 3, syncer.calls)
}

func TestAPIHandlers_HealthCheckUnhealthy(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	store := &mocks.MockPersistence{}
	store.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	svc := env.services
	svc.Persistence = store
	app := web.NewApp(web.NewAPIHandlers(svc, validator.New()), web.AppConfig{})

	resp, body := doRequest(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "connection refused")
	store.AssertExpectations(t)
}

func TestAPIHandlers_PostEventPublishFailure(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, false)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "board-1", mock.AnythingOfType("events.TaskEvent")).Return(errors.New("broker down"))

	svc := env.services
	svc.Publisher = bus
	app := web.NewApp(web.NewAPIHandlers(svc, validator.New()), web.AppConfig{})

	resp, body := doRequest(t, app, http.MethodPost, "/events", map[string]any{"type": "task_created", "board_id": "board-1"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "internal_error")
	bus.AssertExpectations(t)
}
