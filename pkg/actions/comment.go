package actions

import (
	"context"
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/google/uuid"
)

// AutomationUserID is the author recorded on activity entries when no actor is known.
const AutomationUserID = "automation"

func (e *Executor) addComment(ctx context.Context, config models.ActionConfig, actx Context) (string, error) {
	if err := requireTaskAndBoard(actx); err != nil {
		return "", err
	}

	cfg, _ := config.(models.AddCommentConfig)
	if cfg.Text == "" {
		return "", fmt.Errorf("%w: text", ErrMissingField)
	}

	author := actx.ActorID
	if author == "" {
		author = AutomationUserID
	}

	err := e.updateTask(ctx, actx, func(task *models.Task) error {
		now := e.now()

		task.Activity = append(task.Activity, models.ActivityEntry{
			ID:        uuid.New().String(),
			Type:      models.ActivityComment,
			UserID:    author,
			Message:   Render(cfg.Text, task),
			Timestamp: now,
		})
		task.UpdatedAt = now

		return nil
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("commented on task %s", actx.Task.ID), nil
}
