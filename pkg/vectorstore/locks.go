package vectorstore

import (
	"context"
	"sync"
	"time"
)

// lockTable hands out one exclusive writer lock per partition. Acquisition is
// bounded so a stuck writer surfaces as ErrLockTimeout instead of a pile-up.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]chan struct{})}
}

func (t *lockTable) get(partition string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.locks[partition]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[partition] = ch
	}
	return ch
}

// acquire takes the partition's writer lock, waiting up to wait. The returned
// release function must be called exactly once.
func (t *lockTable) acquire(ctx context.Context, partition string, wait time.Duration) (func(), error) {
	ch := t.get(partition)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
