package loyalty

import (
	"context"
	"slices"
	"sync"
)

// KeyedMutex is the in-process Locker. Waiting honours context cancellation.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (m *KeyedMutex) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = SortedKeys(keys)
	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			m.unlock(held[i])
		}
	}
	for _, k := range keys {
		if err := m.lock(ctx, k); err != nil {
			release()
			return nil, err
		}
		held = append(held, k)
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (m *KeyedMutex) lock(ctx context.Context, key string) error {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.drop(key)
		return ctx.Err()
	}
}

func (m *KeyedMutex) unlock(key string) {
	m.mu.Lock()
	l := m.locks[key]
	m.mu.Unlock()
	<-l.ch
	m.drop(key)
}

func (m *KeyedMutex) drop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// SortedKeys returns the distinct keys in lock order. Every Locker acquires in
// this order so two callers never wait on each other's second key.
func SortedKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
