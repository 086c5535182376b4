package redis

import (
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/taskflow/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewPersistence_InvalidURL(t *testing.T) {
	p, err := NewPersistence(t.Context(), testLogger(), "not-a-redis-url")
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestPersistence_RedisKey(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { _ = client.Close() })

	p := NewPersistenceWithClient(client, testLogger(), DefaultKeyPrefix)
	assert.Equal(t, "taskflow:workflows", p.redisKey(persistence.KeyWorkflows))
}

func TestPersistence_UnknownKey(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { _ = client.Close() })

	p := NewPersistenceWithClient(client, testLogger(), DefaultKeyPrefix)

	_, err := p.Load(t.Context(), "boards")
	assert.ErrorIs(t, err, persistence.ErrUnknownKey)
}

func TestPersistence_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := t.Context()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	p, err := NewPersistence(ctx, testLogger(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	require.NoError(t, p.HealthCheck(ctx))

	_, err = p.Load(ctx, persistence.KeyWorkflows)
	assert.True(t, persistence.IsSnapshotNotFound(err))

	require.NoError(t, p.Save(ctx, persistence.KeyWorkflows, []byte(`[{"id":"wf-1"}]`)))

	data, err := p.Load(ctx, persistence.KeyWorkflows)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"wf-1"}]`, string(data))
}
