package models

import (
	"encoding/json"
	"fmt"
)

// TriggerType is the kind of event that makes a workflow eligible to run.
type TriggerType string

const (
	TriggerTaskCreated        TriggerType = "task_created"
	TriggerTaskUpdated        TriggerType = "task_updated"
	TriggerTaskCompleted      TriggerType = "task_completed"
	TriggerTaskOverdue        TriggerType = "task_overdue"
	TriggerTaskAssigned       TriggerType = "task_assigned"
	TriggerDueDateApproaching TriggerType = "due_date_approaching"
	TriggerSchedule           TriggerType = "schedule"
	TriggerManual             TriggerType = "manual"
)

// TriggerConfig is the type specific configuration of a trigger. The set of
// implementations is closed; unrecognised types decode to UnknownTriggerConfig.
type TriggerConfig interface {
	triggerConfig()
}

// TaskFilter narrows task_* triggers. Empty fields match any task.
type TaskFilter struct {
	Priority string `json:"priority,omitempty"`
	BoardID  string `json:"board_id,omitempty"`
	ColumnID string `json:"column_id,omitempty"`
}

func (TaskFilter) triggerConfig() {}

// DefaultDueWithinHours is the due_date_approaching window when none is configured.
const DefaultDueWithinHours = 24

// DueDateConfig configures due_date_approaching.
type DueDateConfig struct {
	WithinHours int    `json:"within_hours,omitempty"`
	BoardID     string `json:"board_id,omitempty"`
}

func (DueDateConfig) triggerConfig() {}

// Window returns the configured look-ahead in hours.
func (c DueDateConfig) Window() int {
	if c.WithinHours <= 0 {
		return DefaultDueWithinHours
	}

	return c.WithinHours
}

// ManualConfig configures manual triggers.
type ManualConfig struct{}

func (ManualConfig) triggerConfig() {}

// UnknownTriggerConfig keeps the raw configuration of an unrecognised trigger type.
type UnknownTriggerConfig struct {
	Type TriggerType
	Raw  json.RawMessage
}

func (UnknownTriggerConfig) triggerConfig() {}

// Trigger selects the events a workflow reacts to.
type Trigger struct {
	Type   TriggerType   `json:"type"   validate:"required"`
	Config TriggerConfig `json:"config"`
}

type triggerJSON struct {
	Type   TriggerType     `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// IsTaskTrigger reports whether the trigger type is fired by task events.
func IsTaskTrigger(t TriggerType) bool {
	switch t {
	case TriggerTaskCreated, TriggerTaskUpdated, TriggerTaskCompleted, TriggerTaskOverdue, TriggerTaskAssigned:
		return true
	default:
		return false
	}
}

func (t Trigger) MarshalJSON() ([]byte, error) {
	var (
		raw json.RawMessage
		err error
	)

	switch cfg := t.Config.(type) {
	case nil:
	case UnknownTriggerConfig:
		raw = cfg.Raw
	default:
		raw, err = json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s trigger config: %w", t.Type, err)
		}
	}

	return json.Marshal(triggerJSON{Type: t.Type, Config: raw})
}

func (t *Trigger) UnmarshalJSON(data []byte) error {
	var aux triggerJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	config, err := decodeTriggerConfig(aux.Type, aux.Config)
	if err != nil {
		return err
	}

	*t = Trigger{Type: aux.Type, Config: config}

	return nil
}

func decodeTriggerConfig(triggerType TriggerType, raw json.RawMessage) (TriggerConfig, error) {
	empty := len(raw) == 0 || string(raw) == "null"

	switch {
	case IsTaskTrigger(triggerType):
		filter := TaskFilter{}
		if !empty {
			if err := json.Unmarshal(raw, &filter); err != nil {
				return nil, fmt.Errorf("invalid %s trigger config: %w", triggerType, err)
			}
		}

		return filter, nil
	case triggerType == TriggerDueDateApproaching:
		config := DueDateConfig{}
		if !empty {
			if err := json.Unmarshal(raw, &config); err != nil {
				return nil, fmt.Errorf("invalid %s trigger config: %w", triggerType, err)
			}
		}

		return config, nil
	case triggerType == TriggerSchedule:
		config := ScheduleConfig{}
		if !empty {
			if err := json.Unmarshal(raw, &config); err != nil {
				return nil, fmt.Errorf("invalid %s trigger config: %w", triggerType, err)
			}
		}

		return config, nil
	case triggerType == TriggerManual:
		return ManualConfig{}, nil
	default:
		return UnknownTriggerConfig{Type: triggerType, Raw: raw}, nil
	}
}

func (t Trigger) clone() Trigger {
	if cfg, ok := t.Config.(UnknownTriggerConfig); ok {
		cfg.Raw = append(json.RawMessage(nil), cfg.Raw...)
		t.Config = cfg
	}

	return t
}
