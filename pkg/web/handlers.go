// Package web provides the HTTP API of the automation engine.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/taskflow/pkg/actions"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/dukex/taskflow/pkg/schema"
	"github.com/dukex/taskflow/pkg/services"
	"github.com/dukex/taskflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Services groups the stores and engine the handlers work on.
type Services struct {
	Workflows       *services.Workflow
	History         *services.History
	Catalog         *services.Catalog
	CustomFields    *services.CustomFields
	AutomationRules *services.AutomationRules
	Executor        *workflow.Executor
	Boards          protocol.BoardRepository
	Persistence     persistence.Persistence
	// Publisher is optional. When set, posted events go through the bus
	// instead of being run in the request.
	Publisher protocol.Publisher
	// Schedules is optional. It is resynced after every workflow change.
	Schedules ScheduleSyncer
}

// ScheduleSyncer reconciles cron jobs with the stored workflows.
type ScheduleSyncer interface {
	Sync(ctx context.Context) error
}

type APIHandlers struct {
	Services

	validator *validator.Validate
}

func NewAPIHandlers(svc Services, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{Services: svc, validator: validator}
}

// workflowsChanged resyncs the scheduler. Failures only concern invalid
// schedules, which were already rejected on write, so they are not surfaced.
func (h *APIHandlers) workflowsChanged(ctx context.Context) {
	if h.Schedules == nil {
		return
	}

	_ = h.Schedules.Sync(ctx)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Taskflow API is healthy"
	httpStatus := http.StatusOK
	check := "ok"

	if err := h.Persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Taskflow API is unhealthy"
		httpStatus = http.StatusInternalServerError
		check = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"persistence": check,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows := h.Workflows.List(c.Context())

	if active := c.Query("active"); active != "" {
		want, err := strconv.ParseBool(active)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		filtered := make([]*models.Workflow, 0, len(workflows))
		for _, wf := range workflows {
			if wf.IsActive == want {
				filtered = append(filtered, wf)
			}
		}

		workflows = filtered
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	wf, ok := h.Workflows.Get(c.Context(), c.Params("id"))
	if !ok {
		return notFound(c, "workflow_not_found", "workflow not found")
	}

	return c.JSON(wf)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.Workflows.Create(c.Context(), req.Workflow())
	if err != nil {
		return handleServiceError(c, err)
	}

	h.workflowsChanged(c.Context())

	return c.Status(fiber.StatusCreated).JSON(created)
}

// ImportWorkflows creates every workflow of a JSON document after checking it
// against the workflow schema. The body is a single workflow or an array.
func (h *APIHandlers) ImportWorkflows(c fiber.Ctx) error {
	workflows, err := schema.Decode(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	created := make([]*models.Workflow, 0, len(workflows))

	for _, wf := range workflows {
		stored, err := h.Workflows.Create(c.Context(), wf)
		if err != nil {
			return handleServiceError(c, err)
		}

		created = append(created, stored)
	}

	h.workflowsChanged(c.Context())

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"workflows":   created,
		"total_count": len(created),
	})
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	ok, err := h.Workflows.Update(c.Context(), id, req.Patch())
	if err != nil {
		return handleServiceError(c, err)
	}

	if !ok {
		return notFound(c, "workflow_not_found", "workflow not found")
	}

	h.workflowsChanged(c.Context())

	updated, _ := h.Workflows.Get(c.Context(), id)

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	ok, err := h.Workflows.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if !ok {
		return notFound(c, "workflow_not_found", "workflow not found")
	}

	h.workflowsChanged(c.Context())

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ToggleWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	ok, err := h.Workflows.ToggleActive(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !ok {
		return notFound(c, "workflow_not_found", "workflow not found")
	}

	h.workflowsChanged(c.Context())

	wf, _ := h.Workflows.Get(c.Context(), id)

	return c.JSON(wf)
}

// RunWorkflow runs a workflow manually. The body is optional.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	var req RunWorkflowRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event, err := h.triggerEvent(c.Context(), models.TriggerManual, req.BoardID, req.TaskID, req.ActorID, nil)
	if err != nil {
		return handleServiceError(c, err)
	}

	execution, err := h.Executor.RunManual(c.Context(), c.Params("id"), event)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// PostEvent accepts a domain event from the task layer. With a publisher the
// event is queued on the bus; otherwise it is run before responding.
func (h *APIHandlers) PostEvent(c fiber.Ctx) error {
	var req EventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event, err := h.triggerEvent(c.Context(), req.Type, req.BoardID, req.TaskID, req.ActorID, req.Changes)
	if err != nil {
		return handleServiceError(c, err)
	}

	if h.Publisher != nil {
		taskEvent := events.NewTaskEvent(event)
		if err := h.Publisher.Publish(c.Context(), req.BoardID, taskEvent); err != nil {
			return internalError(c, err)
		}

		return c.Status(fiber.StatusAccepted).JSON(EventAccepted{EventID: taskEvent.ID})
	}

	executions := h.Executor.Emit(c.Context(), event)

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

// triggerEvent resolves the task referenced by a request into a trigger event.
func (h *APIHandlers) triggerEvent(
	ctx context.Context,
	triggerType models.TriggerType,
	boardID, taskID, actorID string,
	changes map[string]any,
) (models.TriggerEvent, error) {
	event := models.TriggerEvent{
		Type:       triggerType,
		BoardID:    boardID,
		ActorID:    actorID,
		Changes:    changes,
		OccurredAt: time.Now().UTC(),
	}

	if taskID == "" {
		return event, nil
	}

	board, err := h.Boards.Board(ctx, boardID)
	if err != nil {
		return event, err
	}

	task, _, ok := board.FindTask(taskID)
	if !ok {
		return event, fmt.Errorf("%w: %s", actions.ErrTaskNotFound, taskID)
	}

	event.Task = task.Clone()

	return event, nil
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	templates := h.Catalog.ListTemplates()

	if category := c.Query("category"); category != "" {
		filtered := make([]models.WorkflowTemplate, 0, len(templates))
		for _, tmpl := range templates {
			if tmpl.Category == category {
				filtered = append(filtered, tmpl)
			}
		}

		templates = filtered
	}

	return c.JSON(fiber.Map{
		"templates":   templates,
		"total_count": len(templates),
	})
}

func (h *APIHandlers) InstantiateTemplate(c fiber.Ctx) error {
	var req InstantiateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, ok, err := h.Catalog.Instantiate(c.Context(), c.Params("id"), req.CreatedBy)
	if !ok {
		return notFound(c, "template_not_found", "template not found")
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	h.workflowsChanged(c.Context())

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	filter := services.ExecutionFilter{
		WorkflowID: c.Query("workflow_id"),
		Status:     models.ExecutionStatus(c.Query("status")),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return badRequest(c, "Invalid query parameters: limit must be a non-negative integer")
		}

		filter.Limit = limit
	}

	executions := h.History.List(c.Context(), filter)

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, ok := h.History.Get(c.Context(), c.Params("id"))
	if !ok {
		return notFound(c, "execution_not_found", "execution not found")
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetStats(c fiber.Ctx) error {
	return c.JSON(h.Executor.Stats(c.Context()))
}

func (h *APIHandlers) GetCustomFields(c fiber.Ctx) error {
	fields := h.CustomFields.List(c.Context(), c.Query("board_id"))

	return c.JSON(fiber.Map{
		"custom_fields": fields,
		"total_count":   len(fields),
	})
}

func (h *APIHandlers) CreateCustomField(c fiber.Ctx) error {
	var req CreateCustomFieldRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.CustomFields.Create(c.Context(), models.CustomField{
		BoardID:  req.BoardID,
		Name:     req.Name,
		Type:     req.Type,
		Options:  req.Options,
		Required: req.Required,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) DeleteCustomField(c fiber.Ctx) error {
	ok, err := h.CustomFields.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if !ok {
		return notFound(c, "custom_field_not_found", "custom field not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetAutomationRules(c fiber.Ctx) error {
	rules := h.AutomationRules.List(c.Context(), c.Query("board_id"))

	return c.JSON(fiber.Map{
		"automation_rules": rules,
		"total_count":      len(rules),
	})
}

func (h *APIHandlers) CreateAutomationRule(c fiber.Ctx) error {
	var req CreateAutomationRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	created, err := h.AutomationRules.Create(c.Context(), models.AutomationRule{
		BoardID: req.BoardID,
		Name:    req.Name,
		Trigger: req.Trigger,
		Action:  req.Action,
		Enabled: enabled,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateAutomationRule(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateAutomationRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	ok, err := h.AutomationRules.Update(c.Context(), id, services.AutomationRulePatch{
		Name:    req.Name,
		Trigger: req.Trigger,
		Action:  req.Action,
		Enabled: req.Enabled,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	if !ok {
		return notFound(c, "automation_rule_not_found", "automation rule not found")
	}

	rule, _ := h.AutomationRules.Get(c.Context(), id)

	return c.JSON(rule)
}

func (h *APIHandlers) DeleteAutomationRule(c fiber.Ctx) error {
	ok, err := h.AutomationRules.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if !ok {
		return notFound(c, "automation_rule_not_found", "automation rule not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
