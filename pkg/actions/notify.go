package actions

import (
	"context"
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
)

func (e *Executor) sendNotification(ctx context.Context, config models.ActionConfig, actx Context) (string, error) {
	cfg, _ := config.(models.SendNotificationConfig)
	if cfg.Message == "" {
		return "", fmt.Errorf("%w: message", ErrMissingField)
	}

	task := e.currentTask(ctx, actx)
	recipients := e.recipients(ctx, cfg.Recipients, task)
	message := Render(cfg.Message, task)
	sent := 0

	for _, userID := range recipients {
		if err := e.notifier.Notify(ctx, userID, message); err != nil {
			e.logger.WarnContext(ctx, "Notification delivery failed", "user_id", userID, "error", err)

			continue
		}

		sent++
	}

	return fmt.Sprintf("sent %d of %d notifications", sent, len(recipients)), nil
}

// recipients resolves the explicit list, else the task members, else every
// admin when there is no task. Recipients that cannot be resolved are logged
// and skipped.
func (e *Executor) recipients(ctx context.Context, explicit []string, task *models.Task) []string {
	if len(explicit) > 0 {
		out := make([]string, 0, len(explicit))

		for _, userID := range explicit {
			if userID == models.ProjectManagerAssignee {
				admin, err := e.directory.FirstAdmin(ctx)
				if err != nil {
					e.logger.WarnContext(ctx, "Skipping notification recipient", "recipient", userID, "error", err)

					continue
				}

				userID = admin.ID
			}

			out = append(out, userID)
		}

		return out
	}

	if task != nil {
		return append([]string(nil), task.Members...)
	}

	users, err := e.directory.Users(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to list notification recipients", "error", err)

		return nil
	}

	admins := make([]string, 0)

	for _, user := range users {
		if user.Role == models.RoleAdmin {
			admins = append(admins, user.ID)
		}
	}

	return admins
}
