package lock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/wrun/internal/lock"
)

func TestKeyedMutexSameKeyMutualExclusion(t *testing.T) {
	assert := assert.New(t)

	km := lock.NewKeyedMutex()
	ctx := context.Background()

	var inFlight, maxInFlight int64
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := km.WithLock(ctx, "same-key", func() error {
				cur := atomic.AddInt64(&inFlight, 1)
				for {
					max := atomic.LoadInt64(&maxInFlight)
					if cur <= max || atomic.CompareAndSwapInt64(&maxInFlight, max, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
			assert.NoError(err)
		}()
	}
	wg.Wait()

	assert.Equal(int64(1), atomic.LoadInt64(&maxInFlight))
}

func TestKeyedMutexDistinctKeysDontBlock(t *testing.T) {
	require := require.New(t)

	km := lock.NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := km.Lock(ctx, "key-a")
	require.NoError(err)
	defer unlockA()

	// A different key must be acquirable while key-a is held.
	acquired := make(chan struct{})
	go func() {
		unlockB, err := km.Lock(ctx, "key-b")
		if err == nil {
			unlockB()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		require.Fail("acquiring a distinct key blocked behind an unrelated holder")
	}
}

func TestKeyedMutexCancelledAcquisition(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	km := lock.NewKeyedMutex()

	unlock, err := km.Lock(context.Background(), "busy")
	require.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = km.Lock(ctx, "busy")
	assert.ErrorIs(err, context.DeadlineExceeded)

	// The holder is unaffected and can release and reacquire.
	unlock()
	unlock2, err := km.Lock(context.Background(), "busy")
	require.NoError(err)
	unlock2()
}

func TestKeyedMutexUnlockIsIdempotent(t *testing.T) {
	require := require.New(t)

	km := lock.NewKeyedMutex()

	unlock, err := km.Lock(context.Background(), "key")
	require.NoError(err)
	unlock()
	unlock() // Second call must be a no-op, not a double release.

	unlock2, err := km.Lock(context.Background(), "key")
	require.NoError(err)
	unlock2()
}

func TestKeyedMutexWithLockPropagatesError(t *testing.T) {
	km := lock.NewKeyedMutex()

	expErr := errors.New("boom")
	err := km.WithLock(context.Background(), "key", func() error {
		return expErr
	})
	assert.ErrorIs(t, err, expErr)

	// The lock must be released after the failing critical section.
	err = km.WithLock(context.Background(), "key", func() error { return nil })
	assert.NoError(t, err)
}
