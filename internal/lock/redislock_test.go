package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerialisesRegister(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		order        []string
		mu           sync.Mutex
		firstDone    = make(chan struct{})
		releaseFirst = make(chan struct{})
	)

	go func() {
		err := locker.WithLock(ctx, "pos:lock:checkout:front", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
		assert.NoError(t, err)
	}()

	<-firstDone

	go func() {
		err := locker.WithLock(ctx, "pos:lock:checkout:front", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
		assert.NoError(t, err)
	}()

	close(releaseFirst)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockReleasesOnError(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client}
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "pos:lock:checkout:back", time.Minute, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("pos:lock:checkout:back"))
}

func TestWithLockMaxWait(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set("pos:lock:checkout:busy", "someone-else"))
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}

	called := false
	err := locker.WithLock(context.Background(), "pos:lock:checkout:busy", time.Minute, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.False(t, called)

	got, err := mr.Get("pos:lock:checkout:busy")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestLeaseReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client}
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "pos:lock:checkout:side", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "pos:lock:checkout:side", lease.Key())

	// Simulate expiry followed by another register taking the lock.
	require.NoError(t, mr.Set("pos:lock:checkout:side", "other-token"))
	require.NoError(t, lease.Release(ctx))

	got, err := mr.Get("pos:lock:checkout:side")
	require.NoError(t, err)
	require.Equal(t, "other-token", got)
}
