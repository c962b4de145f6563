//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cairn/internal/membership/lock"
	"cairn/pkg/platform/sentinel"
	"cairn/pkg/testutil"
	"cairn/pkg/testutil/containers"
)

func TestRedisLock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	require.NoError(t, rc.FlushAll(ctx))

	locker := lock.NewRedis(rc.Client, 30*time.Second)

	testutil.Given(t, "a held household lock", func(t *testing.T) {
		release, err := locker.Acquire(ctx, "hh-1")
		require.NoError(t, err)
		defer release()

		testutil.Then(t, "a second acquire on the same household is refused", func(t *testing.T) {
			_, err := locker.Acquire(ctx, "hh-1")
			assert.ErrorIs(t, err, sentinel.ErrLocked)
		})

		testutil.Then(t, "a different household is not affected", func(t *testing.T) {
			releaseOther, err := locker.Acquire(ctx, "hh-2")
			require.NoError(t, err)
			releaseOther()
		})
	})

	testutil.When(t, "the lock is released", func(t *testing.T) {
		release, err := locker.Acquire(ctx, "hh-3")
		require.NoError(t, err)
		release()

		testutil.Then(t, "the household can be locked again", func(t *testing.T) {
			release, err := locker.Acquire(ctx, "hh-3")
			require.NoError(t, err)
			release()
		})
	})

	testutil.When(t, "the lease expires before release", func(t *testing.T) {
		short := lock.NewRedis(rc.Client, 100*time.Millisecond)
		staleRelease, err := short.Acquire(ctx, "hh-4")
		require.NoError(t, err)
		time.Sleep(200 * time.Millisecond)

		successorRelease, err := locker.Acquire(ctx, "hh-4")
		require.NoError(t, err, "expired lease must be reclaimable")

		testutil.Then(t, "the stale release does not free the successor's lease", func(t *testing.T) {
			staleRelease()
			_, err := locker.Acquire(ctx, "hh-4")
			assert.ErrorIs(t, err, sentinel.ErrLocked)
		})
		successorRelease()
	})
}
