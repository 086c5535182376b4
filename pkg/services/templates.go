package services

import "github.com/dukex/taskflow/pkg/models"

// Template identifiers.
const (
	TemplateAutoAssignHighPriority = "auto-assign-high-priority"
	TemplateCompletionNotice       = "task-completion-notification"
	TemplateOverdueEscalation      = "overdue-task-escalation"
	TemplateDueDateReminder        = "due-date-reminder"
	TemplateWeeklyReview           = "weekly-review"
	TemplateMoveCompletedToDone    = "move-completed-to-done"
)

func builtinTemplates() []models.WorkflowTemplate {
	return []models.WorkflowTemplate{
		{
			ID:          TemplateAutoAssignHighPriority,
			Category:    "assignment",
			Icon:        "user-plus",
			Name:        "Auto-assign high priority tasks",
			Description: "Assign new high priority tasks to the project manager.",
			Workflow: models.Workflow{
				Name:        "Auto-assign high priority tasks",
				Description: "Assign new high priority tasks to the project manager.",
				IsActive:    true,
				Trigger:     models.Trigger{Type: models.TriggerTaskCreated, Config: models.TaskFilter{}},
				Conditions: []models.Condition{
					{Type: "field", Field: "priority", Operator: models.OperatorEquals, Value: models.PriorityHigh},
				},
				Actions: []models.Action{
					{Type: models.ActionAssignTask, Order: 1, Config: models.AssignTaskConfig{AssigneeID: models.ProjectManagerAssignee}},
				},
			},
		},
		{
			ID:          TemplateCompletionNotice,
			Category:    "notification",
			Icon:        "check-circle",
			Name:        "Task completion notification",
			Description: "Notify task members when a task is completed.",
			Workflow: models.Workflow{
				Name:        "Task completion notification",
				Description: "Notify task members when a task is completed.",
				IsActive:    true,
				Trigger:     models.Trigger{Type: models.TriggerTaskCompleted, Config: models.TaskFilter{}},
				Conditions:  []models.Condition{},
				Actions: []models.Action{
					{Type: models.ActionSendNotification, Order: 1, Config: models.SendNotificationConfig{
						Message: `Task "{task.title}" has been completed.`,
					}},
				},
			},
		},
		{
			ID:          TemplateOverdueEscalation,
			Category:    "escalation",
			Icon:        "alert-triangle",
			Name:        "Overdue task escalation",
			Description: "Raise overdue tasks to urgent and alert the admins.",
			Workflow: models.Workflow{
				Name:        "Overdue task escalation",
				Description: "Raise overdue tasks to urgent and alert the admins.",
				IsActive:    true,
				Trigger:     models.Trigger{Type: models.TriggerTaskOverdue, Config: models.TaskFilter{}},
				Conditions:  []models.Condition{},
				Actions: []models.Action{
					{Type: models.ActionSetPriority, Order: 1, Config: models.SetPriorityConfig{Priority: models.PriorityUrgent}},
					{Type: models.ActionAddComment, Order: 2, Config: models.AddCommentConfig{
						Text: "Escalated automatically: this task was due {task.dueDate}.",
					}},
					{Type: models.ActionSendNotification, Order: 3, Config: models.SendNotificationConfig{
						Message: `Task "{task.title}" is overdue and was escalated to {task.priority}.`,
					}},
				},
			},
		},
		{
			ID:          TemplateDueDateReminder,
			Category:    "reminder",
			Icon:        "clock",
			Name:        "Due date reminder",
			Description: "Remind task members one day before a task is due.",
			Workflow: models.Workflow{
				Name:        "Due date reminder",
				Description: "Remind task members one day before a task is due.",
				IsActive:    true,
				Trigger: models.Trigger{
					Type:   models.TriggerDueDateApproaching,
					Config: models.DueDateConfig{WithinHours: models.DefaultDueWithinHours},
				},
				Conditions: []models.Condition{},
				Actions: []models.Action{
					{Type: models.ActionSendNotification, Order: 1, Config: models.SendNotificationConfig{
						Message: `Reminder: "{task.title}" is due {task.dueDate}.`,
					}},
				},
			},
		},
		{
			ID:          TemplateWeeklyReview,
			Category:    "planning",
			Icon:        "calendar",
			Name:        "Weekly review",
			Description: "Create a review task every Monday morning.",
			Workflow: models.Workflow{
				Name:        "Weekly review",
				Description: "Create a review task every Monday morning.",
				IsActive:    true,
				Trigger: models.Trigger{
					Type:   models.TriggerSchedule,
					Config: models.ScheduleConfig{Recurrence: models.RecurrenceWeekly, Time: "09:00", Weekday: 1},
				},
				Conditions: []models.Condition{},
				Actions: []models.Action{
					{Type: models.ActionCreateTask, Order: 1, Config: models.CreateTaskConfig{
						Title:       "Weekly review",
						Description: "Review progress and plan the coming week.",
						Priority:    models.PriorityMedium,
						DueInDays:   1,
					}},
				},
			},
		},
		{
			ID:          TemplateMoveCompletedToDone,
			Category:    "organization",
			Icon:        "arrow-right",
			Name:        "Move completed tasks to Done",
			Description: "Move completed tasks into the Done column.",
			Workflow: models.Workflow{
				Name:        "Move completed tasks to Done",
				Description: "Move completed tasks into the Done column.",
				IsActive:    true,
				Trigger:     models.Trigger{Type: models.TriggerTaskCompleted, Config: models.TaskFilter{}},
				Conditions:  []models.Condition{},
				Actions: []models.Action{
					{Type: models.ActionMoveTask, Order: 1, Config: models.MoveTaskConfig{TargetColumnID: "done"}},
				},
			},
		},
	}
}
