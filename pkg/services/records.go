package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/google/uuid"
)

func cloneCustomField(f models.CustomField) models.CustomField {
	f.Options = append([]string(nil), f.Options...)

	return f
}

func cloneAutomationRule(r models.AutomationRule) models.AutomationRule {
	return r
}

// CustomFields stores board custom field definitions.
type CustomFields struct {
	fields *collection[models.CustomField]
	logger *slog.Logger
}

// NewCustomFields loads the stored custom field definitions.
func NewCustomFields(ctx context.Context, p persistence.Persistence, logger *slog.Logger) (*CustomFields, error) {
	fields, err := loadCollection(ctx, p, persistence.KeyCustomFields, cloneCustomField)
	if err != nil {
		return nil, err
	}

	return &CustomFields{fields: fields, logger: logger.With("module", "custom_fields")}, nil
}

// List returns the custom fields of a board, or of every board when boardID is empty.
func (s *CustomFields) List(_ context.Context, boardID string) []models.CustomField {
	all := s.fields.snapshot()
	if boardID == "" {
		return all
	}

	out := make([]models.CustomField, 0, len(all))

	for _, field := range all {
		if field.BoardID == boardID {
			out = append(out, field)
		}
	}

	return out
}

// Get returns the custom field with the given id.
func (s *CustomFields) Get(_ context.Context, id string) (models.CustomField, bool) {
	return s.fields.find(func(f models.CustomField) bool { return f.ID == id })
}

// Create stores a new custom field definition.
func (s *CustomFields) Create(ctx context.Context, field models.CustomField) (models.CustomField, error) {
	if strings.TrimSpace(field.Name) == "" || field.BoardID == "" {
		return models.CustomField{}, NewValidationError("CreateCustomField", "INVALID_CUSTOM_FIELD",
			"custom field requires a board id and a name", ErrInvalidRequest)
	}

	field.ID = uuid.New().String()
	field.CreatedAt = time.Now().UTC()
	field = cloneCustomField(field)

	_, err := s.fields.mutate(ctx, func(items []models.CustomField) ([]models.CustomField, bool) {
		return append(items, field), true
	})
	if err != nil {
		return models.CustomField{}, fmt.Errorf("failed to create custom field: %w", err)
	}

	return cloneCustomField(field), nil
}

// Delete removes a custom field definition.
func (s *CustomFields) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.fields.mutate(ctx, func(items []models.CustomField) ([]models.CustomField, bool) {
		idx := indexOf(items, func(f models.CustomField) bool { return f.ID == id })
		if idx < 0 {
			return items, false
		}

		return append(items[:idx], items[idx+1:]...), true
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete custom field: %w", err)
	}

	return deleted, nil
}

// AutomationRulePatch holds the fields of a partial automation rule update.
type AutomationRulePatch struct {
	Name    *string `json:"name,omitempty"`
	Trigger *string `json:"trigger,omitempty"`
	Action  *string `json:"action,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// AutomationRules stores board level automation rules.
type AutomationRules struct {
	rules  *collection[models.AutomationRule]
	logger *slog.Logger
}

// NewAutomationRules loads the stored automation rules.
func NewAutomationRules(ctx context.Context, p persistence.Persistence, logger *slog.Logger) (*AutomationRules, error) {
	rules, err := loadCollection(ctx, p, persistence.KeyAutomationRules, cloneAutomationRule)
	if err != nil {
		return nil, err
	}

	return &AutomationRules{rules: rules, logger: logger.With("module", "automation_rules")}, nil
}

// List returns the rules of a board, or of every board when boardID is empty.
func (s *AutomationRules) List(_ context.Context, boardID string) []models.AutomationRule {
	all := s.rules.snapshot()
	if boardID == "" {
		return all
	}

	out := make([]models.AutomationRule, 0, len(all))

	for _, rule := range all {
		if rule.BoardID == boardID {
			out = append(out, rule)
		}
	}

	return out
}

// Get returns the rule with the given id.
func (s *AutomationRules) Get(_ context.Context, id string) (models.AutomationRule, bool) {
	return s.rules.find(func(r models.AutomationRule) bool { return r.ID == id })
}

// Create stores a new automation rule.
func (s *AutomationRules) Create(ctx context.Context, rule models.AutomationRule) (models.AutomationRule, error) {
	if strings.TrimSpace(rule.Name) == "" || rule.BoardID == "" {
		return models.AutomationRule{}, NewValidationError("CreateAutomationRule", "INVALID_AUTOMATION_RULE",
			"automation rule requires a board id and a name", ErrInvalidRequest)
	}

	now := time.Now().UTC()
	rule.ID = uuid.New().String()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err := s.rules.mutate(ctx, func(items []models.AutomationRule) ([]models.AutomationRule, bool) {
		return append(items, rule), true
	})
	if err != nil {
		return models.AutomationRule{}, fmt.Errorf("failed to create automation rule: %w", err)
	}

	return rule, nil
}

// Update merges the non-nil patch fields into the rule.
func (s *AutomationRules) Update(ctx context.Context, id string, patch AutomationRulePatch) (bool, error) {
	updated, err := s.rules.mutate(ctx, func(items []models.AutomationRule) ([]models.AutomationRule, bool) {
		idx := indexOf(items, func(r models.AutomationRule) bool { return r.ID == id })
		if idx < 0 {
			return items, false
		}

		rule := &items[idx]

		if patch.Name != nil {
			rule.Name = *patch.Name
		}

		if patch.Trigger != nil {
			rule.Trigger = *patch.Trigger
		}

		if patch.Action != nil {
			rule.Action = *patch.Action
		}

		if patch.Enabled != nil {
			rule.Enabled = *patch.Enabled
		}

		rule.UpdatedAt = time.Now().UTC()

		return items, true
	})
	if err != nil {
		return false, fmt.Errorf("failed to update automation rule: %w", err)
	}

	return updated, nil
}

// Delete removes an automation rule.
func (s *AutomationRules) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.rules.mutate(ctx, func(items []models.AutomationRule) ([]models.AutomationRule, bool) {
		idx := indexOf(items, func(r models.AutomationRule) bool { return r.ID == id })
		if idx < 0 {
			return items, false
		}

		return append(items[:idx], items[idx+1:]...), true
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete automation rule: %w", err)
	}

	return deleted, nil
}
