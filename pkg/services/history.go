package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
)

// DefaultHistoryLimit is the number of executions retained when no limit is configured.
const DefaultHistoryLimit = 1000

// ExecutionFilter narrows History.List results.
type ExecutionFilter struct {
	WorkflowID string
	Status     models.ExecutionStatus
	Limit      int
}

// History is the append-only execution store. When it grows past its limit
// the oldest executions are dropped.
type History struct {
	executions *collection[*models.WorkflowExecution]
	logger     *slog.Logger
	limit      int
}

// NewHistory loads the stored executions. A limit <= 0 selects DefaultHistoryLimit.
func NewHistory(ctx context.Context, p persistence.Persistence, logger *slog.Logger, limit int) (*History, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	executions, err := loadCollection(ctx, p, persistence.KeyWorkflowExecutions, (*models.WorkflowExecution).Clone)
	if err != nil {
		return nil, err
	}

	return &History{
		executions: executions,
		logger:     logger.With("module", "execution_history"),
		limit:      limit,
	}, nil
}

// Append stores a finished execution.
func (h *History) Append(ctx context.Context, execution *models.WorkflowExecution) error {
	if execution == nil {
		return ErrRecordNil
	}

	stored := execution.Clone()

	var trimmed int

	_, err := h.executions.mutate(ctx, func(items []*models.WorkflowExecution) ([]*models.WorkflowExecution, bool) {
		items = append(items, stored)
		if over := len(items) - h.limit; over > 0 {
			trimmed = over
			items = append([]*models.WorkflowExecution(nil), items[over:]...)
		}

		return items, true
	})
	if err != nil {
		return fmt.Errorf("failed to append execution: %w", err)
	}

	if trimmed > 0 {
		h.logger.DebugContext(ctx, "Trimmed execution history", "dropped", trimmed, "limit", h.limit)
	}

	return nil
}

// All returns every retained execution, oldest first.
func (h *History) All(_ context.Context) []*models.WorkflowExecution {
	return h.executions.snapshot()
}

// List returns matching executions, newest first.
func (h *History) List(_ context.Context, filter ExecutionFilter) []*models.WorkflowExecution {
	all := h.executions.snapshot()
	out := make([]*models.WorkflowExecution, 0, len(all))

	for i := len(all) - 1; i >= 0; i-- {
		execution := all[i]

		if filter.WorkflowID != "" && execution.WorkflowID != filter.WorkflowID {
			continue
		}

		if filter.Status != "" && execution.Status != filter.Status {
			continue
		}

		out = append(out, execution)

		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}

	return out
}

// Get returns the execution with the given id.
func (h *History) Get(_ context.Context, id string) (*models.WorkflowExecution, bool) {
	return h.executions.find(func(e *models.WorkflowExecution) bool { return e.ID == id })
}
