package actions

import (
	"context"
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
)

func (e *Executor) moveTask(ctx context.Context, config models.ActionConfig, actx Context) (string, error) {
	if err := requireTaskAndBoard(actx); err != nil {
		return "", err
	}

	cfg, _ := config.(models.MoveTaskConfig)
	if cfg.TargetColumnID == "" {
		return "", fmt.Errorf("%w: target_column_id", ErrMissingField)
	}

	var from string

	err := e.boards.UpdateBoard(ctx, actx.BoardID, func(board *models.Board) error {
		task, source, ok := board.FindTask(actx.Task.ID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, actx.Task.ID)
		}

		target, ok := board.Column(cfg.TargetColumnID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrColumnNotFound, cfg.TargetColumnID)
		}

		if source.ID == target.ID {
			return fmt.Errorf("%w: %s", ErrSameColumn, target.ID)
		}

		moved := *task
		moved.UpdatedAt = e.now()
		from = source.ID

		for i := range source.Tasks {
			if source.Tasks[i].ID == moved.ID {
				source.Tasks = append(source.Tasks[:i], source.Tasks[i+1:]...)

				break
			}
		}

		target.Tasks = append(target.Tasks, moved)

		return nil
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("moved task %s from %s to %s", actx.Task.ID, from, cfg.TargetColumnID), nil
}
