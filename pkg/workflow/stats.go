package workflow

import (
	"context"

	"github.com/dukex/taskflow/pkg/models"
)

// Stats derives the engine counters from the rule store and the history.
func (e *Executor) Stats(ctx context.Context) models.Stats {
	return ComputeStats(e.workflows.List(ctx), e.history.All(ctx))
}

// ComputeStats aggregates workflows and executions. Successful executions are
// the completed ones; the average covers finished executions only. Ties for
// the most used trigger or action go to the alphabetically first name.
func ComputeStats(workflows []*models.Workflow, executions []*models.WorkflowExecution) models.Stats {
	stats := models.Stats{TotalWorkflows: len(workflows)}

	triggers := make(map[models.TriggerType]int)
	actionTypes := make(map[models.ActionType]int)

	for _, workflow := range workflows {
		if workflow.IsActive {
			stats.ActiveWorkflows++
		}

		if workflow.Trigger.Type != "" {
			triggers[workflow.Trigger.Type]++
		}

		for _, action := range workflow.Actions {
			if action.Type != "" {
				actionTypes[action.Type]++
			}
		}
	}

	var (
		totalTime int64
		finished  int
	)

	for _, execution := range executions {
		stats.TotalExecutions++

		switch execution.Status {
		case models.ExecutionCompleted:
			stats.SuccessfulExecutions++
		case models.ExecutionFailed:
			stats.FailedExecutions++
		}

		if execution.Finished() {
			finished++
			totalTime += execution.ExecutionTime
		}
	}

	if finished > 0 {
		stats.AverageExecutionTime = float64(totalTime) / float64(finished)
	}

	stats.MostUsedTrigger = mostUsed(triggers)
	stats.MostUsedAction = mostUsed(actionTypes)

	return stats
}

func mostUsed[K ~string](counts map[K]int) K {
	var (
		best      K
		bestCount int
	)

	for key, count := range counts {
		if count > bestCount || (count == bestCount && key < best) {
			best = key
			bestCount = count
		}
	}

	return best
}
