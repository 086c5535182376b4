// Package models defines the core domain models for board workflow automation.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Workflow is a trigger -> conditions -> actions automation rule.
type Workflow struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"            validate:"required,min=3"`
	Description    string      `json:"description"`
	IsActive       bool        `json:"is_active"`
	Trigger        Trigger     `json:"trigger"`
	Conditions     []Condition `json:"conditions"`
	Actions        []Action    `json:"actions"`
	ExecutionCount int         `json:"execution_count"`
	LastExecuted   *time.Time  `json:"last_executed,omitempty"`
	CreatedBy      string      `json:"created_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone := *w
	clone.Trigger = w.Trigger.clone()

	if w.Conditions != nil {
		clone.Conditions = make([]Condition, len(w.Conditions))
		copy(clone.Conditions, w.Conditions)
	}

	if w.Actions != nil {
		clone.Actions = make([]Action, len(w.Actions))
		for i, action := range w.Actions {
			clone.Actions[i] = action.clone()
		}
	}

	if w.LastExecuted != nil {
		last := *w.LastExecuted
		clone.LastExecuted = &last
	}

	return &clone
}

// ConditionOperator compares a context value against a condition value.
type ConditionOperator string

const (
	OperatorEquals         ConditionOperator = "equals"
	OperatorNotEquals      ConditionOperator = "not_equals"
	OperatorGreaterThan    ConditionOperator = "greater_than"
	OperatorLessThan       ConditionOperator = "less_than"
	OperatorGreaterOrEqual ConditionOperator = "greater_or_equal"
	OperatorLessOrEqual    ConditionOperator = "less_or_equal"
	OperatorContains       ConditionOperator = "contains"
	OperatorNotContains    ConditionOperator = "not_contains"
	OperatorIn             ConditionOperator = "in"
	OperatorIsEmpty        ConditionOperator = "is_empty"
	OperatorIsNotEmpty     ConditionOperator = "is_not_empty"
)

// Condition is a predicate evaluated against the triggering context.
type Condition struct {
	Type     string            `json:"type,omitempty"`
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required"`
	Value    any               `json:"value,omitempty"`
}

// ActionType identifies the handler an action is dispatched to.
type ActionType string

const (
	ActionAssignTask       ActionType = "assign_task"
	ActionSendNotification ActionType = "send_notification"
	ActionMoveTask         ActionType = "move_task"
	ActionSetPriority      ActionType = "set_priority"
	ActionAddComment       ActionType = "add_comment"
	ActionCreateTask       ActionType = "create_task"
)

// ProjectManagerAssignee resolves to the first admin of the user directory.
const ProjectManagerAssignee = "project-manager"

// ActionConfig is the type specific configuration of an action.
type ActionConfig interface {
	ActionType() ActionType
}

// AssignTaskConfig configures assign_task.
type AssignTaskConfig struct {
	AssigneeID string `json:"assignee_id"`
}

func (AssignTaskConfig) ActionType() ActionType { return ActionAssignTask }

// SendNotificationConfig configures send_notification.
type SendNotificationConfig struct {
	Recipients []string `json:"recipients,omitempty"`
	Message    string   `json:"message"`
}

func (SendNotificationConfig) ActionType() ActionType { return ActionSendNotification }

// MoveTaskConfig configures move_task.
type MoveTaskConfig struct {
	TargetColumnID string `json:"target_column_id"`
}

func (MoveTaskConfig) ActionType() ActionType { return ActionMoveTask }

// SetPriorityConfig configures set_priority.
type SetPriorityConfig struct {
	Priority string `json:"priority"`
}

func (SetPriorityConfig) ActionType() ActionType { return ActionSetPriority }

// AddCommentConfig configures add_comment.
type AddCommentConfig struct {
	Text string `json:"text"`
}

func (AddCommentConfig) ActionType() ActionType { return ActionAddComment }

// CreateTaskConfig configures create_task.
type CreateTaskConfig struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Assignees   []string `json:"assignees,omitempty"`
	DueInDays   int      `json:"due_in_days,omitempty"`
}

func (CreateTaskConfig) ActionType() ActionType { return ActionCreateTask }

// UnknownActionConfig keeps the raw configuration of an action type this
// build does not know about, so it survives a load/save cycle.
type UnknownActionConfig struct {
	Type ActionType
	Raw  json.RawMessage
}

func (c UnknownActionConfig) ActionType() ActionType { return c.Type }

// Action is one ordered step performed when a workflow fires.
type Action struct {
	ID     string       `json:"id"`
	Type   ActionType   `json:"type"  validate:"required"`
	Order  int          `json:"order"`
	Config ActionConfig `json:"config"`
}

type actionJSON struct {
	ID     string          `json:"id"`
	Type   ActionType      `json:"type"`
	Order  int             `json:"order"`
	Config json.RawMessage `json:"config,omitempty"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	var (
		raw json.RawMessage
		err error
	)

	switch cfg := a.Config.(type) {
	case nil:
	case UnknownActionConfig:
		raw = cfg.Raw
	case *UnknownActionConfig:
		raw = cfg.Raw
	default:
		raw, err = json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s action config: %w", a.Type, err)
		}
	}

	return json.Marshal(actionJSON{ID: a.ID, Type: a.Type, Order: a.Order, Config: raw})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var aux actionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	config, err := decodeActionConfig(aux.Type, aux.Config)
	if err != nil {
		return err
	}

	*a = Action{ID: aux.ID, Type: aux.Type, Order: aux.Order, Config: config}

	return nil
}

func decodeActionConfig(actionType ActionType, raw json.RawMessage) (ActionConfig, error) {
	var config ActionConfig

	switch actionType {
	case ActionAssignTask:
		config = &AssignTaskConfig{}
	case ActionSendNotification:
		config = &SendNotificationConfig{}
	case ActionMoveTask:
		config = &MoveTaskConfig{}
	case ActionSetPriority:
		config = &SetPriorityConfig{}
	case ActionAddComment:
		config = &AddCommentConfig{}
	case ActionCreateTask:
		config = &CreateTaskConfig{}
	default:
		return UnknownActionConfig{Type: actionType, Raw: raw}, nil
	}

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, config); err != nil {
			return nil, fmt.Errorf("invalid %s action config: %w", actionType, err)
		}
	}

	return derefActionConfig(config), nil
}

func derefActionConfig(config ActionConfig) ActionConfig {
	switch cfg := config.(type) {
	case *AssignTaskConfig:
		return *cfg
	case *SendNotificationConfig:
		return *cfg
	case *MoveTaskConfig:
		return *cfg
	case *SetPriorityConfig:
		return *cfg
	case *AddCommentConfig:
		return *cfg
	case *CreateTaskConfig:
		return *cfg
	default:
		return config
	}
}

func (a Action) clone() Action {
	clone := a

	switch cfg := a.Config.(type) {
	case SendNotificationConfig:
		cfg.Recipients = append([]string(nil), cfg.Recipients...)
		clone.Config = cfg
	case CreateTaskConfig:
		cfg.Assignees = append([]string(nil), cfg.Assignees...)
		clone.Config = cfg
	case UnknownActionConfig:
		cfg.Raw = append(json.RawMessage(nil), cfg.Raw...)
		clone.Config = cfg
	}

	return clone
}
