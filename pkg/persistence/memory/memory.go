// Package memory provides an in-process snapshot persistence used by tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/dukex/taskflow/pkg/persistence"
)

// Persistence keeps snapshots in a map guarded by a mutex.
type Persistence struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	failSave  error
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{snapshots: make(map[string][]byte)}
}

// FailSaves makes every subsequent Save return err. A nil err restores normal behavior.
func (p *Persistence) FailSaves(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failSave = err
}

func (p *Persistence) Load(_ context.Context, key string) ([]byte, error) {
	if err := persistence.ValidateKey(key); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	data, ok := p.snapshots[key]
	if !ok {
		return nil, persistence.NewSnapshotError("Load", key, persistence.ErrSnapshotNotFound)
	}

	return append([]byte(nil), data...), nil
}

func (p *Persistence) Save(_ context.Context, key string, data []byte) error {
	if err := persistence.ValidateKey(key); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSave != nil {
		return persistence.NewSnapshotError("Save", key, p.failSave)
	}

	p.snapshots[key] = append([]byte(nil), data...)

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
