package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowPatch holds the fields of a partial workflow update. Nil fields are left unchanged.
type WorkflowPatch struct {
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	IsActive    *bool               `json:"is_active,omitempty"`
	Trigger     *models.Trigger     `json:"trigger,omitempty"`
	Conditions  *[]models.Condition `json:"conditions,omitempty"`
	Actions     *[]models.Action    `json:"actions,omitempty"`
}

// Workflow is the rule store. Lookups report absence through boolean results;
// the error return only carries validation and persistence failures.
type Workflow struct {
	workflows *collection[*models.Workflow]
	logger    *slog.Logger
	now       func() time.Time
}

// NewWorkflow creates a new workflow service and loads the stored snapshot.
func NewWorkflow(ctx context.Context, p persistence.Persistence, logger *slog.Logger) (*Workflow, error) {
	workflows, err := loadCollection(ctx, p, persistence.KeyWorkflows, (*models.Workflow).Clone)
	if err != nil {
		return nil, err
	}

	return &Workflow{
		workflows: workflows,
		logger:    logger.With("module", "workflow_service"),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// List returns every workflow in creation order.
func (w *Workflow) List(_ context.Context) []*models.Workflow {
	return w.workflows.snapshot()
}

// Get returns the workflow with the given id.
func (w *Workflow) Get(_ context.Context, id string) (*models.Workflow, bool) {
	return w.workflows.find(func(wf *models.Workflow) bool { return wf.ID == id })
}

// Create assigns an id and timestamps, resets the execution counters and stores the workflow.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	created := workflow.Clone()
	if err := validateWorkflow(created); err != nil {
		return nil, err
	}

	now := w.now()
	created.ID = uuid.New().String()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.ExecutionCount = 0
	created.LastExecuted = nil

	normalizeWorkflow(created)

	_, err := w.workflows.mutate(ctx, func(items []*models.Workflow) ([]*models.Workflow, bool) {
		return append(items, created.Clone()), true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow created", "workflow_id", created.ID, "trigger", created.Trigger.Type)

	return created, nil
}

// Update merges the non-nil fields of patch into the workflow and bumps UpdatedAt.
func (w *Workflow) Update(ctx context.Context, id string, patch WorkflowPatch) (bool, error) {
	var validationErr error

	updated, err := w.workflows.mutate(ctx, func(items []*models.Workflow) ([]*models.Workflow, bool) {
		idx := indexOf(items, func(wf *models.Workflow) bool { return wf.ID == id })
		if idx < 0 {
			return items, false
		}

		wf := items[idx]
		applyPatch(wf, patch)

		if validationErr = validateWorkflow(wf); validationErr != nil {
			return items, false
		}

		normalizeWorkflow(wf)
		wf.UpdatedAt = w.now()

		return items, true
	})
	if validationErr != nil {
		return false, validationErr
	}

	if err != nil {
		return false, fmt.Errorf("failed to update workflow: %w", err)
	}

	return updated, nil
}

// Delete removes the workflow. Execution history keeps its own copy of the id.
func (w *Workflow) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := w.workflows.mutate(ctx, func(items []*models.Workflow) ([]*models.Workflow, bool) {
		idx := indexOf(items, func(wf *models.Workflow) bool { return wf.ID == id })
		if idx < 0 {
			return items, false
		}

		return append(items[:idx], items[idx+1:]...), true
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete workflow: %w", err)
	}

	if deleted {
		w.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id)
	}

	return deleted, nil
}

// ToggleActive flips the workflow's active flag.
func (w *Workflow) ToggleActive(ctx context.Context, id string) (bool, error) {
	toggled, err := w.workflows.mutate(ctx, func(items []*models.Workflow) ([]*models.Workflow, bool) {
		idx := indexOf(items, func(wf *models.Workflow) bool { return wf.ID == id })
		if idx < 0 {
			return items, false
		}

		items[idx].IsActive = !items[idx].IsActive
		items[idx].UpdatedAt = w.now()

		return items, true
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle workflow: %w", err)
	}

	return toggled, nil
}

// RecordExecution increments the execution counter and stamps LastExecuted.
// Nothing changes in memory when the snapshot cannot be saved.
func (w *Workflow) RecordExecution(ctx context.Context, id string, at time.Time) (bool, error) {
	recorded, err := w.workflows.mutate(ctx, func(items []*models.Workflow) ([]*models.Workflow, bool) {
		idx := indexOf(items, func(wf *models.Workflow) bool { return wf.ID == id })
		if idx < 0 {
			return items, false
		}

		executedAt := at.UTC()
		items[idx].ExecutionCount++
		items[idx].LastExecuted = &executedAt

		return items, true
	})
	if err != nil {
		return false, fmt.Errorf("failed to record execution: %w", err)
	}

	return recorded, nil
}

func applyPatch(wf *models.Workflow, patch WorkflowPatch) {
	if patch.Name != nil {
		wf.Name = *patch.Name
	}

	if patch.Description != nil {
		wf.Description = *patch.Description
	}

	if patch.IsActive != nil {
		wf.IsActive = *patch.IsActive
	}

	if patch.Trigger != nil {
		wf.Trigger = *patch.Trigger
	}

	if patch.Conditions != nil {
		wf.Conditions = append([]models.Condition(nil), (*patch.Conditions)...)
	}

	if patch.Actions != nil {
		wf.Actions = append([]models.Action(nil), (*patch.Actions)...)
	}
}

func validateWorkflow(wf *models.Workflow) error {
	if strings.TrimSpace(wf.Name) == "" {
		return ErrWorkflowNameRequired
	}

	if wf.Trigger.Type == "" {
		return ErrTriggerTypeRequired
	}

	if wf.Trigger.Type == models.TriggerSchedule {
		cfg, _ := wf.Trigger.Config.(models.ScheduleConfig)
		if _, err := cfg.CronSpec(); err != nil {
			return NewValidationError("validateWorkflow", "INVALID_SCHEDULE", err.Error(), ErrInvalidSchedule)
		}
	}

	for _, action := range wf.Actions {
		if action.Type == "" {
			return ErrActionTypeRequired
		}
	}

	return nil
}

func normalizeWorkflow(wf *models.Workflow) {
	if wf.Conditions == nil {
		wf.Conditions = []models.Condition{}
	}

	if wf.Actions == nil {
		wf.Actions = []models.Action{}
	}

	for i := range wf.Actions {
		if wf.Actions[i].ID == "" {
			wf.Actions[i].ID = uuid.New().String()
		}
	}
}
