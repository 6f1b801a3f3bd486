package auth

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Запуск:
//   GO_TEST_INTEGRATION=1 go test ./internal/devserver/auth -run Redis -v -count=1

func startRedis(t *testing.T) string {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestIntegration_RedisCache(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	c, err := NewRedisCache(ctx, url, "test:rt:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	// Отзыв отсутствующего ключа не создаёт запись.
	require.NoError(t, c.MarkRevoked(ctx, "missing"))
	_, ok, _ = c.Get(ctx, "missing")
	require.False(t, ok)

	exp := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	require.NoError(t, c.Set(ctx, "h1", &RefreshEntry{UserID: "u1", ExpiresAt: exp}, time.Hour))

	e, ok, err := c.Get(ctx, "h1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u1", e.UserID)
	require.False(t, e.Revoked)
	require.True(t, exp.Equal(e.ExpiresAt))

	require.NoError(t, c.MarkRevoked(ctx, "h1"))
	e, _, _ = c.Get(ctx, "h1")
	require.True(t, e.Revoked)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisCache(context.Background(), "://bad", "")
	require.Error(t, err)
}
