package testsupport

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"tradegate/internal/adapters/config"
)

// NewRedisClient connects to the integration redis and flushes its database
// before and after the test.
func NewRedisClient(t *testing.T, cfg config.RedisConfig) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err(), "connect to redis")
	require.NoError(t, client.FlushDB(ctx).Err(), "flush redis before test")

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return client
}
