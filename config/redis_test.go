package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_URI", "")
	t.Setenv("REDIS_URL", "")
	_, err := redisOptions()
	require.Error(t, err)

	t.Setenv("REDIS_URL", "redis://:pw@cache:6380/3")
	opt, err := redisOptions()
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opt.Addr)
	require.Equal(t, "pw", opt.Password)
	require.Equal(t, 3, opt.DB)

	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	opt, err = redisOptions()
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opt.Addr)
	require.Equal(t, 2, opt.DB)

	t.Setenv("REDIS_DB", "two")
	_, err = redisOptions()
	require.Error(t, err)
}
