package actions

import (
	"context"
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
)

func (e *Executor) setPriority(ctx context.Context, config models.ActionConfig, actx Context) (string, error) {
	if err := requireTaskAndBoard(actx); err != nil {
		return "", err
	}

	cfg, _ := config.(models.SetPriorityConfig)
	if cfg.Priority == "" {
		return "", fmt.Errorf("%w: priority", ErrMissingField)
	}

	err := e.updateTask(ctx, actx, func(task *models.Task) error {
		task.Priority = cfg.Priority
		task.UpdatedAt = e.now()

		return nil
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("set priority of task %s to %s", actx.Task.ID, cfg.Priority), nil
}
