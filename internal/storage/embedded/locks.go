package embedded

import (
	"context"
	"sync"
)

// lockTable hands out one exclusive lock per key. Entries are dropped once
// nobody holds or waits for them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*keyLock)}
}

// acquire blocks until key is free or ctx is done.
func (t *lockTable) acquire(ctx context.Context, key string) error {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		t.unref(key, l)
		t.mu.Unlock()
		return ctx.Err()
	}
}

func (t *lockTable) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		return
	}
	<-l.sem
	t.unref(key, l)
}

func (t *lockTable) unref(key string, l *keyLock) {
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
