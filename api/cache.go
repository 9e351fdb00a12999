package api

import (
	"context"
	"iter"

	"github.com/google/uuid"

	"github.com/krisalay/cache-facade/listener"
	"github.com/krisalay/cache-facade/stats"
)

/*
Cache defines the PUBLIC API of the cache facade.
This is a contract that guarantees certain behaviors, without exposing internals.
Sharding, per-key locking, single-flight loading, expiry evaluation and listener
delivery are hidden behind this interface.

Absent and expired entries look the same through every method.
*/
type Cache[K comparable, V any] interface {
	Name() string

	/*
		Get retrieves the value associated with the given key.

		BEHAVIOR:
		-------------------
		1. If the key exists in cache and is NOT expired:
		   - Return the value immediately (cache hit)

		2. If the key does NOT exist or is expired:
		   - With read-through, load it from the backing store exactly once
		     no matter how many callers ask at the same time
		   - Store it in cache and return it (cache miss)
		   - Without read-through, report it absent

		A loader failure is returned as an error and nothing is cached.
	*/
	Get(ctx context.Context, key K) (V, bool, error)

	// GetAll is Get for many keys. Keys with no value are left out of the map.
	GetAll(ctx context.Context, keys []K) (map[K]V, error)

	// GetOrLoad is Get with fn used as the loader for this one call.
	GetOrLoad(ctx context.Context, key K, fn func(context.Context, K) (V, error)) (V, bool, error)

	// ContainsKey checks presence without loading, counting or touching the entry.
	ContainsKey(key K) bool

	/*
		Put stores a key-value pair in the cache.

		BEHAVIOR:
		---------
		- With write-through, the backing store is written FIRST
		- If that write fails, the cache is left exactly as it was
		- Listeners get Created or Updated
	*/
	Put(ctx context.Context, key K, value V) error

	PutIfAbsent(ctx context.Context, key K, value V) (bool, error)
	GetAndPut(ctx context.Context, key K, value V) (V, bool, error)
	Replace(ctx context.Context, key K, value V) (bool, error)
	PutAll(ctx context.Context, entries map[K]V) error

	/*
		Remove deletes a key from the cache.

		BEHAVIOR:
		---------
		- With write-through, the backing store delete happens first and can veto the removal
		- Listeners get Removed

		Removing a non-existing key is safe and reports false.
	*/
	Remove(ctx context.Context, key K) (bool, error)

	GetAndRemove(ctx context.Context, key K) (V, bool, error)

	// RemoveAll removes the given keys, or all keys when called with none.
	RemoveAll(ctx context.Context, keys ...K) error

	// Invalidate drops a key from memory only. The backing store is not told.
	Invalidate(key K) bool

	// Clear drops everything from memory. No writer calls, no events.
	Clear() error

	// All iterates over a snapshot of the valid entries.
	All() iter.Seq2[K, V]

	RegisterListener(l listener.Listener[K, V], opts ...listener.Option[K, V]) listener.Registration
	UnregisterListener(id uuid.UUID) bool

	Statistics() stats.Snapshot
	ResetStatistics()

	/*
		Close gracefully shuts down the cache.

		BEHAVIOR:
		---------
		- Delivers queued async events
		- Stops listener goroutines
		- Leaves the manager

		WHEN TO CALL:
		-------------
		- Application shutdown
		- Tests cleanup
	*/
	Close() error
}
