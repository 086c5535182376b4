package models

// Stats aggregates workflow and execution counters.
type Stats struct {
	TotalWorkflows       int         `json:"total_workflows"`
	ActiveWorkflows      int         `json:"active_workflows"`
	TotalExecutions      int         `json:"total_executions"`
	SuccessfulExecutions int         `json:"successful_executions"`
	FailedExecutions     int         `json:"failed_executions"`
	AverageExecutionTime float64     `json:"average_execution_time"` // milliseconds
	MostUsedTrigger      TriggerType `json:"most_used_trigger,omitempty"`
	MostUsedAction       ActionType  `json:"most_used_action,omitempty"`
}
