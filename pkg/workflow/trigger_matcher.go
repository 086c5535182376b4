package workflow

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/taskflow/pkg/models"
)

// TriggerMatcher selects the workflows a trigger event should run.
type TriggerMatcher struct {
	logger *slog.Logger
}

// NewTriggerMatcher creates a new trigger matcher.
func NewTriggerMatcher(logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// MatchWorkflows returns the active workflows whose trigger accepts the
// event, in the order given. Schedule triggers never match events; they are
// run by the scheduler through RunScheduled.
func (tm *TriggerMatcher) MatchWorkflows(event models.TriggerEvent, columnID string, workflows []*models.Workflow) []*models.Workflow {
	matched := make([]*models.Workflow, 0)

	for _, workflow := range workflows {
		if tm.Matches(workflow, event, columnID) {
			matched = append(matched, workflow)
		}
	}

	tm.logger.Debug("Completed trigger matching",
		"trigger_type", event.Type,
		"workflows_count", len(workflows),
		"matches_found", len(matched))

	return matched
}

// Matches reports whether a single workflow accepts the event.
func (tm *TriggerMatcher) Matches(workflow *models.Workflow, event models.TriggerEvent, columnID string) bool {
	if workflow == nil || !workflow.IsActive {
		return false
	}

	if workflow.Trigger.Type != event.Type || event.Type == models.TriggerSchedule {
		return false
	}

	switch cfg := workflow.Trigger.Config.(type) {
	case models.TaskFilter:
		return matchTaskFilter(cfg, event, columnID)
	case models.DueDateConfig:
		return matchDueDate(cfg, event)
	default:
		return true
	}
}

func matchTaskFilter(filter models.TaskFilter, event models.TriggerEvent, columnID string) bool {
	if filter.BoardID != "" && filter.BoardID != event.BoardID {
		return false
	}

	if filter.ColumnID != "" && filter.ColumnID != columnID {
		return false
	}

	if filter.Priority != "" {
		if event.Task == nil || !strings.EqualFold(filter.Priority, event.Task.Priority) {
			return false
		}
	}

	return true
}

// matchDueDate accepts tasks due between the event time and the end of the
// configured window.
func matchDueDate(cfg models.DueDateConfig, event models.TriggerEvent) bool {
	if cfg.BoardID != "" && cfg.BoardID != event.BoardID {
		return false
	}

	if event.WindowHours > 0 && event.WindowHours != cfg.Window() {
		return false
	}

	if event.Task == nil || event.Task.DueDate == nil {
		return false
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	until := event.Task.DueDate.Sub(at)

	return until >= 0 && until <= time.Duration(cfg.Window())*time.Hour
}
