package testsupport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClientIsCleanedBetweenTests(t *testing.T) {
	client := NewRedisClient(t, LoadRedisConfigFromEnv(t))
	require.NoError(t, client.Set(context.Background(), "integration-key", "value", 0).Err())

	val, err := client.Get(context.Background(), "integration-key").Result()
	require.NoError(t, err)
	assert.Equal(t, "value", val)
}
