// Package redis provides Redis-backed snapshot persistence.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces snapshot keys inside a shared Redis database.
const DefaultKeyPrefix = "taskflow:"

// Persistence stores each snapshot as one Redis string value.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// NewPersistence connects to the Redis server described by databaseURL
// (redis:// or rediss://) and verifies the connection.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	options, err := redis.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	options.DialTimeout = 5 * time.Second
	options.ReadTimeout = 3 * time.Second
	options.WriteTimeout = 3 * time.Second

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.InfoContext(ctx, "Redis connection established", "addr", options.Addr, "db", options.DB)

	return NewPersistenceWithClient(client, logger, DefaultKeyPrefix), nil
}

// NewPersistenceWithClient wraps an existing client.
func NewPersistenceWithClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *Persistence {
	return &Persistence{
		client: client,
		logger: logger.With("module", "redis_persistence"),
		prefix: prefix,
	}
}

func (p *Persistence) Load(ctx context.Context, key string) ([]byte, error) {
	if err := persistence.ValidateKey(key); err != nil {
		return nil, err
	}

	data, err := p.client.Get(ctx, p.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewSnapshotError("Load", key, persistence.ErrSnapshotNotFound)
		}

		return nil, persistence.NewSnapshotError("Load", key, err)
	}

	return data, nil
}

func (p *Persistence) Save(ctx context.Context, key string, data []byte) error {
	if err := persistence.ValidateKey(key); err != nil {
		return err
	}

	if err := p.client.Set(ctx, p.redisKey(key), data, 0).Err(); err != nil {
		return persistence.NewSnapshotError("Save", key, err)
	}

	p.logger.DebugContext(ctx, "Saved snapshot", "key", key, "bytes", len(data))

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}

	return nil
}

func (p *Persistence) redisKey(key string) string {
	return p.prefix + key
}
