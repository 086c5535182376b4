// Package events defines the messages carried by the event bus.
package events

import (
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic is the single topic all events are published on.
const Topic = "taskflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Domain events consumed by the engine.
	TaskEventType EventType = "task.event"

	// Workflow execution lifecycle events.
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"

	// Notification delivery.
	NotificationSentEvent EventType = "notification.sent"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a fresh id and the current time.
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// TaskEvent carries a domain event from the task layer to the engine.
type TaskEvent struct {
	BaseEvent

	Event models.TriggerEvent `json:"event"`
}

func (e TaskEvent) GetType() EventType {
	return TaskEventType
}

// NewTaskEvent wraps a trigger event for the bus.
func NewTaskEvent(event models.TriggerEvent) TaskEvent {
	return TaskEvent{BaseEvent: NewBaseEvent(TaskEventType), Event: event}
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	WorkflowID      string             `json:"workflow_id"`
	ExecutionID     string             `json:"execution_id"`
	TriggerType     models.TriggerType `json:"trigger_type"`
	ActionsExecuted int                `json:"actions_executed"`
	TotalActions    int                `json:"total_actions"`
	DurationMs      int64              `json:"duration_ms"`
}

func (e WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	WorkflowID  string             `json:"workflow_id"`
	ExecutionID string             `json:"execution_id"`
	TriggerType models.TriggerType `json:"trigger_type"`
	Error       string             `json:"error"`
	DurationMs  int64              `json:"duration_ms"`
}

func (e WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

// NewExecutionEvent returns the lifecycle event matching the execution's terminal status.
func NewExecutionEvent(execution *models.WorkflowExecution) interface{ GetType() EventType } {
	if execution.Status == models.ExecutionFailed {
		return WorkflowExecutionFailed{
			BaseEvent:   NewBaseEvent(WorkflowExecutionFailedEvent),
			WorkflowID:  execution.WorkflowID,
			ExecutionID: execution.ID,
			TriggerType: execution.TriggerType,
			Error:       execution.Error,
			DurationMs:  execution.ExecutionTime,
		}
	}

	return WorkflowExecutionCompleted{
		BaseEvent:       NewBaseEvent(WorkflowExecutionCompletedEvent),
		WorkflowID:      execution.WorkflowID,
		ExecutionID:     execution.ID,
		TriggerType:     execution.TriggerType,
		ActionsExecuted: execution.ActionsExecuted,
		TotalActions:    execution.TotalActions,
		DurationMs:      execution.ExecutionTime,
	}
}

// NotificationSent records one notification handed to the bus for delivery.
type NotificationSent struct {
	BaseEvent

	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (e NotificationSent) GetType() EventType {
	return NotificationSentEvent
}
