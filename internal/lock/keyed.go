// Package lock provides a keyed mutual-exclusion primitive used to serialize
// mutations of shared logical resources (memory files, patch-artifact
// bookkeeping files, workspace metadata) identified by an opaque string key.
package lock

import (
	"context"
	"sync"
)

// KeyedMutex guarantees at most one in-flight critical section per key.
// Operations on distinct keys never block each other. There is no ordering
// guarantee among waiters beyond mutual exclusion.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	// sem is a 1-slot semaphore so acquisition can honor context cancellation.
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates a new keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		entries: map[string]*entry{},
	}
}

// Lock acquires the mutex for the given key, blocking until it is available
// or the context is done. On success it returns the unlock function, which
// must be called exactly once.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (unlock func(), err error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.release(key, e)
		})
	}, nil
}

// WithLock runs fn while holding the mutex for the given key.
func (k *KeyedMutex) WithLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := k.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	return fn()
}

// release drops a reference to the key entry, removing it once no in-flight
// operation references it anymore. Locks live only as long as someone holds
// or waits on them.
func (k *KeyedMutex) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}
