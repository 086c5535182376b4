// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/file"
	"github.com/dukex/taskflow/pkg/persistence/memory"
	"github.com/dukex/taskflow/pkg/persistence/postgresql"
	"github.com/dukex/taskflow/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "memory", "postgres", "postgresql", "redis", "rediss"}

// NewPersistence opens the snapshot store selected by the URL scheme. A URL
// without a known scheme is treated as a directory for the file backend.
func NewPersistence(ctx context.Context, databaseURL string, logger *slog.Logger) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "memory":
		return memory.NewPersistence(), nil
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}

		return p, nil
	case "redis", "rediss":
		p, err := redis.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")
	if len(parts) < 2 {
		return "file"
	}

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
