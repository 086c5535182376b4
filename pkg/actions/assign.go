package actions

import (
	"context"
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
)

func (e *Executor) assignTask(ctx context.Context, config models.ActionConfig, actx Context) (string, error) {
	cfg, _ := config.(models.AssignTaskConfig)
	if cfg.AssigneeID == "" {
		return "", fmt.Errorf("%w: assignee_id", ErrMissingField)
	}

	if err := requireTaskAndBoard(actx); err != nil {
		return "", err
	}

	assignee, err := e.resolveUser(ctx, cfg.AssigneeID)
	if err != nil {
		return "", err
	}

	alreadyMember := false

	err = e.updateTask(ctx, actx, func(task *models.Task) error {
		if task.HasMember(assignee.ID) {
			alreadyMember = true

			return nil
		}

		task.Members = append(task.Members, assignee.ID)
		task.UpdatedAt = e.now()

		return nil
	})
	if err != nil {
		return "", err
	}

	if alreadyMember {
		return fmt.Sprintf("%s is already assigned to task %s", assignee.ID, actx.Task.ID), nil
	}

	return fmt.Sprintf("assigned %s to task %s", assignee.ID, actx.Task.ID), nil
}

// resolveUser maps the project-manager sentinel to the first admin and
// verifies any other id against the directory.
func (e *Executor) resolveUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == models.ProjectManagerAssignee {
		admin, err := e.directory.FirstAdmin(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAssigneeUnknown, err)
		}

		return admin, nil
	}

	user, err := e.directory.User(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssigneeUnknown, err)
	}

	return user, nil
}
