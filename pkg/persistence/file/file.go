// Package file provides file-based snapshot persistence.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/taskflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file
// system. Each key is stored as <root>/<key>.json.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Load reads the snapshot file for key.
func (fp *Persistence) Load(_ context.Context, key string) ([]byte, error) {
	if err := persistence.ValidateKey(key); err != nil {
		return nil, err
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	data, err := os.ReadFile(fp.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewSnapshotError("Load", key, persistence.ErrSnapshotNotFound)
		}

		return nil, persistence.NewSnapshotError("Load", key, err)
	}

	return data, nil
}

// Save writes the snapshot for key through a temporary file and a rename, so
// readers never observe a half written snapshot.
func (fp *Persistence) Save(_ context.Context, key string, data []byte) error {
	if err := persistence.ValidateKey(key); err != nil {
		return err
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := os.MkdirAll(fp.root, 0o750); err != nil {
		return persistence.NewSnapshotError("Save", key, fmt.Errorf("failed to create root directory: %w", err))
	}

	tmp, err := os.CreateTemp(fp.root, key+".*.tmp")
	if err != nil {
		return persistence.NewSnapshotError("Save", key, err)
	}

	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpName)

		return persistence.NewSnapshotError("Save", key, err)
	}

	if err := os.Rename(tmpName, fp.path(key)); err != nil {
		_ = os.Remove(tmpName)

		return persistence.NewSnapshotError("Save", key, err)
	}

	return nil
}

func (fp *Persistence) path(key string) string {
	return filepath.Join(fp.root, key+".json")
}
