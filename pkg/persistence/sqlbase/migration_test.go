package sqlbase

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationManager_PendingVersions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	m := NewMigrationManager(logger, nil, map[int]string{3: "c", 1: "a", 2: "b"})

	assert.Equal(t, 3, m.LatestVersion())
	assert.Equal(t, []int{1, 2, 3}, m.pendingVersions(0))
	assert.Equal(t, []int{3}, m.pendingVersions(2))
	assert.Empty(t, m.pendingVersions(3))
}

func TestMigrationManager_LatestVersionEmpty(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	m := NewMigrationManager(logger, nil, map[int]string{})

	assert.Equal(t, 0, m.LatestVersion())
}
