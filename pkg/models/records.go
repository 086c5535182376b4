package models

import "time"

// CustomFieldType is the value type of a board custom field.
type CustomFieldType string

const (
	CustomFieldText   CustomFieldType = "text"
	CustomFieldNumber CustomFieldType = "number"
	CustomFieldDate   CustomFieldType = "date"
	CustomFieldSelect CustomFieldType = "select"
)

// CustomField defines an extra per-task attribute on a board. Task values are
// addressable in conditions as "custom.<name>".
type CustomField struct {
	ID        string          `json:"id"`
	BoardID   string          `json:"board_id"           validate:"required"`
	Name      string          `json:"name"               validate:"required"`
	Type      CustomFieldType `json:"type"               validate:"required,oneof=text number date select"`
	Options   []string        `json:"options,omitempty"`
	Required  bool            `json:"required"`
	CreatedAt time.Time       `json:"created_at"`
}

// AutomationRule is a lightweight board-level rule kept alongside workflows.
type AutomationRule struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"   validate:"required"`
	Name      string    `json:"name"       validate:"required"`
	Trigger   string    `json:"trigger"    validate:"required"`
	Action    string    `json:"action"     validate:"required"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
