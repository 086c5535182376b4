package models

import "time"

// TriggerEvent is a domain event offered to the engine: a task lifecycle
// change, a scheduler tick or a manual run request.
type TriggerEvent struct {
	Type       TriggerType    `json:"type"`
	BoardID    string         `json:"board_id,omitempty"`
	Task       *Task          `json:"task,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Changes    map[string]any `json:"changes,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	// WindowHours narrows a due_date_approaching event to the workflows
	// whose look-ahead window is exactly this many hours. Zero matches any.
	WindowHours int `json:"window_hours,omitempty"`
}
