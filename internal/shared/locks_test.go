package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *PeriodLocker {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPeriodLocker(client, time.Minute)
}

func TestPeriodLockerExclusive(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, 7)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, 7)
	require.ErrorIs(t, err, ErrLockHeld)

	// A different period is an independent critical section.
	release2, err := locker.Acquire(ctx, 8)
	require.NoError(t, err)
	release2()

	release()
	release3, err := locker.Acquire(ctx, 7)
	require.NoError(t, err)
	release3()
}

func TestPeriodLockerNilClientNoops(t *testing.T) {
	var locker *PeriodLocker
	release, err := locker.Acquire(context.Background(), 1)
	require.NoError(t, err)
	release()
}
