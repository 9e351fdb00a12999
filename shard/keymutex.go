package shard

import "sync"

/*
KeyMutex gives every key its own lock.

Locks are created on first use and dropped when the last holder or waiter leaves,
so memory follows the number of keys in flight, not the number of keys ever seen.
Unrelated keys never share a lock.

LockAll takes several keys at once. Multi-key holders are serialized behind one
extra mutex, and single-key holders never wait on a second key while holding one,
so the two kinds cannot deadlock each other.
*/
type KeyMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyLock

	batch sync.Mutex
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyMutex[K comparable]() *KeyMutex[K] {
	return &KeyMutex[K]{locks: make(map[K]*keyLock)}
}

// Lock blocks until key is free and returns the function that releases it.
func (m *KeyMutex[K]) Lock(key K) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() { m.release(key, l) }
}

func (m *KeyMutex[K]) release(key K, l *keyLock) {
	l.mu.Unlock()

	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

// LockAll locks every key in keys. Duplicates are ignored.
func (m *KeyMutex[K]) LockAll(keys []K) (unlock func()) {
	m.batch.Lock()

	seen := make(map[K]struct{}, len(keys))
	unlocks := make([]func(), 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unlocks = append(unlocks, m.Lock(k))
	}
	m.batch.Unlock()

	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// held reports how many keys currently have a lock allocated.
func (m *KeyMutex[K]) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
