package models

import "time"

// ExecutionStatus is the state of one workflow execution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// LogLevel is the severity of an execution log entry.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn" // unhandled action types only
	LogError LogLevel = "error"
)

// ExecutionLogEntry is one line of an execution's audit log.
type ExecutionLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	ActionID  string    `json:"action_id,omitempty"`
}

// WorkflowExecution records one attempt to run a workflow for one event.
// It is immutable once Status leaves running.
type WorkflowExecution struct {
	ID              string              `json:"id"`
	WorkflowID      string              `json:"workflow_id"`
	WorkflowName    string              `json:"workflow_name,omitempty"`
	TriggerType     TriggerType         `json:"trigger_type"`
	TriggeredBy     string              `json:"triggered_by"`
	TriggeredAt     time.Time           `json:"triggered_at"`
	Status          ExecutionStatus     `json:"status"`
	ActionsExecuted int                 `json:"actions_executed"`
	TotalActions    int                 `json:"total_actions"`
	ExecutionTime   int64               `json:"execution_time"` // milliseconds
	Error           string              `json:"error,omitempty"`
	Logs            []ExecutionLogEntry `json:"logs"`
}

// Finished reports whether the execution reached a terminal state.
func (e *WorkflowExecution) Finished() bool {
	return e.Status == ExecutionCompleted || e.Status == ExecutionFailed
}

// Log appends an entry stamped with the current time.
func (e *WorkflowExecution) Log(level LogLevel, actionID, message string) {
	e.Logs = append(e.Logs, ExecutionLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		ActionID:  actionID,
	})
}

// Clone returns a deep copy of the execution.
func (e *WorkflowExecution) Clone() *WorkflowExecution {
	if e == nil {
		return nil
	}

	clone := *e
	clone.Logs = append([]ExecutionLogEntry(nil), e.Logs...)

	return &clone
}
