// Package web provides HTTP request and response types for the automation API.
package web

import (
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/services"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string             `json:"name"        validate:"required,min=3"`
	Description string             `json:"description"`
	IsActive    *bool              `json:"is_active"`
	Trigger     models.Trigger     `json:"trigger"     validate:"required"`
	Conditions  []models.Condition `json:"conditions"  validate:"dive"`
	Actions     []models.Action    `json:"actions"     validate:"dive"`
	CreatedBy   string             `json:"created_by"`
}

// Workflow converts the request into a workflow. New workflows are active
// unless the request says otherwise.
func (r CreateWorkflowRequest) Workflow() *models.Workflow {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}

	return &models.Workflow{
		Name:        r.Name,
		Description: r.Description,
		IsActive:    active,
		Trigger:     r.Trigger,
		Conditions:  r.Conditions,
		Actions:     r.Actions,
		CreatedBy:   r.CreatedBy,
	}
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string             `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string             `json:"description,omitempty"`
	IsActive    *bool               `json:"is_active,omitempty"`
	Trigger     *models.Trigger     `json:"trigger,omitempty"`
	Conditions  *[]models.Condition `json:"conditions,omitempty"`
	Actions     *[]models.Action    `json:"actions,omitempty"`
}

func (r UpdateWorkflowRequest) Patch() services.WorkflowPatch {
	return services.WorkflowPatch{
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		Trigger:     r.Trigger,
		Conditions:  r.Conditions,
		Actions:     r.Actions,
	}
}

// EventRequest represents a domain event posted by the task layer. TaskID
// refers to a task on BoardID.
type EventRequest struct {
	Type    models.TriggerType `json:"type"     validate:"required"`
	BoardID string             `json:"board_id" validate:"required_with=TaskID"`
	TaskID  string             `json:"task_id"`
	ActorID string             `json:"actor_id"`
	Changes map[string]any     `json:"changes"`
}

// RunWorkflowRequest represents the optional context of a manual run.
type RunWorkflowRequest struct {
	BoardID string `json:"board_id" validate:"required_with=TaskID"`
	TaskID  string `json:"task_id"`
	ActorID string `json:"actor_id"`
}

// InstantiateTemplateRequest represents the request body for creating a workflow from a template.
type InstantiateTemplateRequest struct {
	CreatedBy string `json:"created_by" validate:"required"`
}

// CreateCustomFieldRequest represents the request body for creating a custom field.
type CreateCustomFieldRequest struct {
	BoardID  string                 `json:"board_id" validate:"required"`
	Name     string                 `json:"name"     validate:"required"`
	Type     models.CustomFieldType `json:"type"     validate:"required,oneof=text number date select"`
	Options  []string               `json:"options"  validate:"required_if=Type select"`
	Required bool                   `json:"required"`
}

// CreateAutomationRuleRequest represents the request body for creating an automation rule.
type CreateAutomationRuleRequest struct {
	BoardID string `json:"board_id" validate:"required"`
	Name    string `json:"name"     validate:"required"`
	Trigger string `json:"trigger"  validate:"required"`
	Action  string `json:"action"   validate:"required"`
	Enabled *bool  `json:"enabled"`
}

// UpdateAutomationRuleRequest represents a partial automation rule update.
type UpdateAutomationRuleRequest struct {
	Name    *string `json:"name,omitempty"    validate:"omitempty,min=1"`
	Trigger *string `json:"trigger,omitempty" validate:"omitempty,min=1"`
	Action  *string `json:"action,omitempty"  validate:"omitempty,min=1"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// EventAccepted is returned when an event was handed to the event bus.
type EventAccepted struct {
	EventID string `json:"event_id"`
}
