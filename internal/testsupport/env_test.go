package testsupport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")

	cfg := LoadRedisConfigFromEnv(t)

	assert.Equal(t, "redis", cfg.Host)
	assert.Equal(t, 6380, cfg.Port)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, "redis:6380", cfg.Addr())
}

func TestIntValueFallsBack(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-number")
	assert.Equal(t, 6379, intValue("REDIS_PORT", 6379))
}
