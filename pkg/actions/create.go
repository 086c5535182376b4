package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/google/uuid"
)

func (e *Executor) createTask(ctx context.Context, config models.ActionConfig, actx Context) (string, error) {
	if actx.BoardID == "" {
		return "", ErrMissingBoard
	}

	cfg, _ := config.(models.CreateTaskConfig)
	if cfg.Title == "" {
		return "", fmt.Errorf("%w: title", ErrMissingField)
	}

	source := e.currentTask(ctx, actx)
	now := e.now()

	task := models.Task{
		ID:          uuid.New().String(),
		Title:       Render(cfg.Title, source),
		Description: Render(cfg.Description, source),
		Priority:    cfg.Priority,
		Members:     append([]string{}, cfg.Assignees...),
		Labels:      []string{},
		Activity: []models.ActivityEntry{{
			ID:        uuid.New().String(),
			Type:      models.ActivityCreated,
			UserID:    AutomationUserID,
			Message:   "created by automation",
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if cfg.DueInDays > 0 {
		due := now.Add(time.Duration(cfg.DueInDays) * 24 * time.Hour)
		task.DueDate = &due
	}

	err := e.boards.UpdateBoard(ctx, actx.BoardID, func(board *models.Board) error {
		if len(board.Columns) == 0 {
			return fmt.Errorf("%w: board %s has no columns", ErrColumnNotFound, actx.BoardID)
		}

		board.Columns[0].Tasks = append(board.Columns[0].Tasks, task)

		return nil
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("created task %s", task.ID), nil
}
