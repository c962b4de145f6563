//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feeconfig "cairn/internal/fee/config"
	feemodels "cairn/internal/fee/models"
	"cairn/internal/membership/lock"
	"cairn/internal/platform/config"
	"cairn/internal/platform/redis"
	"cairn/pkg/platform/sentinel"
	"cairn/pkg/testutil/containers"
)

func TestStackAgainstRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	require.NoError(t, rc.FlushAll(ctx))

	inner := feeconfig.NewInMemory()
	inner.PutNational(&feemodels.NationalConfig{ValidFrom: 2024})

	cfg := config.Store{Redis: config.RedisConfig{URL: rc.Addr, PoolSize: 4}}
	st, err := redis.NewStack(cfg, inner)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	require.NotNil(t, st.Client)
	require.NoError(t, st.Client.Health(ctx))
	assert.IsType(t, &lock.Redis{}, st.Locks)
	assert.IsType(t, &feeconfig.RedisCache{}, st.Configs)

	t.Run("household locks are exclusive", func(t *testing.T) {
		release, err := st.Locks.Acquire(ctx, "household:stack")
		require.NoError(t, err)

		_, err = st.Locks.Acquire(ctx, "household:stack")
		assert.ErrorIs(t, err, sentinel.ErrLocked)

		release()
		release2, err := st.Locks.Acquire(ctx, "household:stack")
		require.NoError(t, err)
		release2()
	})

	t.Run("configuration lookups are cached", func(t *testing.T) {
		nat, err := st.Configs.NationalConfig(ctx, 2025)
		require.NoError(t, err)
		assert.Equal(t, 2024, nat.ValidFrom)

		// A later version in the backing store is not seen until the
		// cached entry expires.
		inner.PutNational(&feemodels.NationalConfig{ValidFrom: 2025})
		nat, err = st.Configs.NationalConfig(ctx, 2025)
		require.NoError(t, err)
		assert.Equal(t, 2024, nat.ValidFrom)
	})
}
