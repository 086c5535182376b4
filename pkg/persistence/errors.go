package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrSnapshotNotFound indicates no snapshot has been stored under the key yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrUnknownKey indicates a key outside the fixed snapshot key set.
	ErrUnknownKey = errors.New("unknown snapshot key")

	// ErrCorruptSnapshot indicates a stored snapshot could not be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// SnapshotError wraps snapshot errors with the operation and key involved.
type SnapshotError struct {
	Op  string // Operation being performed (e.g., "Load", "Save")
	Key string // Snapshot key
	Err error  // Underlying error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("%s operation failed for snapshot %s: %v", e.Op, e.Key, e.Err)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for snapshot errors.
func (e *SnapshotError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewSnapshotError creates a new snapshot error with context.
func NewSnapshotError(op, key string, err error) *SnapshotError {
	return &SnapshotError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// IsSnapshotNotFound checks if an error indicates a snapshot was not stored yet.
func IsSnapshotNotFound(err error) bool {
	return errors.Is(err, ErrSnapshotNotFound)
}

// IsCorruptSnapshot checks if an error indicates an undecodable snapshot.
func IsCorruptSnapshot(err error) bool {
	return errors.Is(err, ErrCorruptSnapshot)
}
