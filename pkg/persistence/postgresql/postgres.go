// Package postgresql provides PostgreSQL snapshot persistence.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL. Snapshots live
// in the config_snapshots table, one row per key.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger.With("module", "postgres_persistence"),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Load returns the snapshot stored under key.
func (p *Persistence) Load(ctx context.Context, key string) ([]byte, error) {
	if err := persistence.ValidateKey(key); err != nil {
		return nil, err
	}

	var data []byte

	err := p.db.QueryRowContext(ctx, selectSnapshotSQL, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewSnapshotError("Load", key, persistence.ErrSnapshotNotFound)
		}

		return nil, persistence.NewSnapshotError("Load", key, err)
	}

	return data, nil
}

// Save upserts the snapshot stored under key.
func (p *Persistence) Save(ctx context.Context, key string, data []byte) error {
	if err := persistence.ValidateKey(key); err != nil {
		return err
	}

	_, err := p.db.ExecContext(ctx, upsertSnapshotSQL, key, string(data))
	if err != nil {
		return persistence.NewSnapshotError("Save", key, err)
	}

	p.logger.DebugContext(ctx, "Saved snapshot", "key", key, "bytes", len(data))

	return nil
}
