package actions

import (
	"strings"

	"github.com/dukex/taskflow/pkg/models"
)

// DueDateLayout is how {task.dueDate} is rendered.
const DueDateLayout = "2006-01-02"

// Render substitutes {task.title}, {task.priority} and {task.dueDate} in
// template. Without a task the template is returned unchanged.
func Render(template string, task *models.Task) string {
	if task == nil {
		return template
	}

	dueDate := ""
	if task.DueDate != nil {
		dueDate = task.DueDate.Format(DueDateLayout)
	}

	return strings.NewReplacer(
		"{task.title}", task.Title,
		"{task.priority}", task.Priority,
		"{task.dueDate}", dueDate,
	).Replace(template)
}
