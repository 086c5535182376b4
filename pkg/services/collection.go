package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/taskflow/pkg/persistence"
)

// collection is an ordered, snapshot-persisted list of records. Mutations
// work on a copy that only replaces the live list once it has been saved, so
// a failed save leaves memory and storage in agreement.
type collection[T any] struct {
	key         string
	persistence persistence.Persistence
	clone       func(T) T

	mu    sync.RWMutex
	items []T
}

func loadCollection[T any](ctx context.Context, p persistence.Persistence, key string, clone func(T) T) (*collection[T], error) {
	items, err := persistence.LoadJSON[[]T](ctx, p, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}

	return &collection[T]{
		key:         key,
		persistence: p,
		clone:       clone,
		items:       items,
	}, nil
}

// snapshot returns deep copies of all records.
func (c *collection[T]) snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.items))
	for i, item := range c.items {
		out[i] = c.clone(item)
	}

	return out
}

// find returns a deep copy of the first record matching pred.
func (c *collection[T]) find(pred func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, item := range c.items {
		if pred(item) {
			return c.clone(item), true
		}
	}

	var zero T

	return zero, false
}

// mutate applies fn to a deep copy of the records. When fn reports a change
// the copy is persisted and becomes the live list.
func (c *collection[T]) mutate(ctx context.Context, fn func(items []T) ([]T, bool)) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]T, len(c.items))
	for i, item := range c.items {
		next[i] = c.clone(item)
	}

	next, changed := fn(next)
	if !changed {
		return false, nil
	}

	if err := persistence.SaveJSON(ctx, c.persistence, c.key, next); err != nil {
		return false, fmt.Errorf("failed to persist %s: %w", c.key, err)
	}

	c.items = next

	return true, nil
}

func indexOf[T any](items []T, pred func(T) bool) int {
	for i, item := range items {
		if pred(item) {
			return i
		}
	}

	return -1
}
