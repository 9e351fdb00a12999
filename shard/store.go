package shard

import (
	"time"

	"github.com/krisalay/cache-facade/types"
)

/*
This file defines how entries are actually stored. It is the cache's Entry Store:
key → value plus creation, access and update times, with no size bound and no eviction.

The store knows nothing about loaders, writers or listeners. It only answers
"what is there for this key right now" and applies mutations.
*/

// Status is the outcome of a Lookup.
type Status int

const (
	// Absent means no entry exists for the key.
	Absent Status = iota

	// Hit means a valid entry was found and its access time was refreshed.
	Hit

	// Expired means an entry exists but the expiry check rejected it. The store does not remove it.
	Expired
)

// ExpiryFunc decides whether an entry is too old at now.
type ExpiryFunc func(ts types.Timestamps, now time.Time) bool

// Store is a sharded in-memory map from key to entry.
type Store[K comparable, V any] struct {
	shards   []*Shard[K, V]
	selector Selector[K]
}

// NewStore creates a store with the given number of shards (at least one).
func NewStore[K comparable, V any](shards int) *Store[K, V] {
	if shards < 1 {
		shards = 1
	}
	s := make([]*Shard[K, V], shards)
	for i := range s {
		s[i] = newShard[K, V]()
	}
	return &Store[K, V]{
		shards:   s,
		selector: NewHashSelector[K](),
	}
}

func (s *Store[K, V]) shard(key K) *Shard[K, V] {
	return s.shards[s.selector.Select(key, len(s.shards))]
}

/*
Lookup finds the entry for key.

A valid entry has its LastAccessedAt moved to now and is returned with Hit.
An expired entry is returned untouched with Expired; removing it is the caller's job,
because the caller has to fire an event for it under its own key lock.
*/
func (s *Store[K, V]) Lookup(key K, now time.Time, expired ExpiryFunc) (types.Entry[K, V], Status) {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.entries[key]
	if !ok {
		return types.Entry[K, V]{}, Absent
	}
	if expired != nil && expired(r.timestamps(), now) {
		return toEntry(key, r), Expired
	}
	r.touch(now)
	return toEntry(key, r), Hit
}

// Peek returns the entry for key with no side effects and no expiry check.
func (s *Store[K, V]) Peek(key K) (types.Entry[K, V], bool) {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.entries[key]
	if !ok {
		return types.Entry[K, V]{}, false
	}
	return toEntry(key, r), true
}

/*
Put inserts or overwrites the value for key.
- New key: CreatedAt, LastAccessedAt and LastUpdatedAt are all set to now
- Existing key: only the value and LastUpdatedAt change

The previous entry is returned when there was one.
*/
func (s *Store[K, V]) Put(key K, value V, now time.Time) (types.Entry[K, V], bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.entries[key]
	if !ok {
		sh.entries[key] = newRecord(value, now)
		return types.Entry[K, V]{}, false
	}
	prev := toEntry(key, r)
	r.value = value
	r.updated = now
	return prev, true
}

// Remove deletes key and returns what was stored.
func (s *Store[K, V]) Remove(key K) (types.Entry[K, V], bool) {
	return s.RemoveIf(key, nil)
}

// RemoveIf deletes key only when pred accepts the current entry (nil pred accepts anything).
// The check and the delete happen under one shard lock.
func (s *Store[K, V]) RemoveIf(key K, pred func(types.Entry[K, V]) bool) (types.Entry[K, V], bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.entries[key]
	if !ok {
		return types.Entry[K, V]{}, false
	}
	ent := toEntry(key, r)
	if pred != nil && !pred(ent) {
		return types.Entry[K, V]{}, false
	}
	delete(sh.entries, key)
	return ent, true
}

// Snapshot copies every entry, shard by shard.
// Each shard is copied atomically; the store as a whole is not frozen.
func (s *Store[K, V]) Snapshot() []types.Entry[K, V] {
	out := make([]types.Entry[K, V], 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, r := range sh.entries {
			out = append(out, toEntry(k, r))
		}
		sh.mu.RUnlock()
	}
	return out
}

// Keys returns the keys currently stored.
func (s *Store[K, V]) Keys() []K {
	out := make([]K, 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.entries {
			out = append(out, k)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Len returns how many entries are stored, expired ones included.
func (s *Store[K, V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Clear drops every entry and returns how many there were.
func (s *Store[K, V]) Clear() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.entries = make(map[K]*record[V])
		sh.mu.Unlock()
	}
	return n
}
