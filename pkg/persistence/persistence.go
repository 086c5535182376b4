// Package persistence provides the snapshot storage abstraction for workflows and auxiliary records.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
)

// Fixed snapshot keys. Each key holds the full JSON document of its collection.
const (
	KeyWorkflows          = "workflows"
	KeyWorkflowExecutions = "workflow_executions"
	KeyAutomationRules    = "automation_rules"
	KeyCustomFields       = "custom_fields"
)

// Keys lists every snapshot key in a stable order.
var Keys = []string{KeyWorkflows, KeyWorkflowExecutions, KeyAutomationRules, KeyCustomFields}

// Persistence stores whole-collection snapshots under fixed keys. Writes
// replace the previous snapshot; there are no partial updates.
type Persistence interface {
	// Load returns the snapshot stored under key, or ErrSnapshotNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// LoadJSON decodes the snapshot under key into a value of type T. A missing
// snapshot yields the zero value and no error.
func LoadJSON[T any](ctx context.Context, p Persistence, key string) (T, error) {
	var value T

	data, err := p.Load(ctx, key)
	if err != nil {
		if IsSnapshotNotFound(err) {
			return value, nil
		}

		return value, err
	}

	if err := json.Unmarshal(data, &value); err != nil {
		return value, NewSnapshotError("Load", key, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err))
	}

	return value, nil
}

// SaveJSON encodes value and stores it under key.
func SaveJSON(ctx context.Context, p Persistence, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return NewSnapshotError("Save", key, err)
	}

	return p.Save(ctx, key, data)
}

// ValidateKey rejects keys outside the fixed key set.
func ValidateKey(key string) error {
	for _, known := range Keys {
		if key == known {
			return nil
		}
	}

	return NewSnapshotError("ValidateKey", key, ErrUnknownKey)
}
