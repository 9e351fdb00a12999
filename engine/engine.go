package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/krisalay/cache-facade/expiration"
	"github.com/krisalay/cache-facade/stats"
	"github.com/krisalay/cache-facade/types"
	"github.com/krisalay/cache-facade/writepolicy"
)

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.
This acts as the policy layer.

It decides:
- When data is expired
- How data is loaded on cache miss
- How writes are propagated to backing store
- How metrics are recorded

It does NOT:
- Store data
- Handle sharding
- Handle locking
- Notify listeners
*/
type CacheEngine[K comparable, V any] struct {

	// Expiration controls when a cache entry should be considered “too old”.
	// Example: expire data 1 minute after creation.
	Expiration expiration.Policy

	// Loader is how the cache talks to the outside world when it does NOT have the data.
	// This enables “read-through caching”. It is nil when read-through is off.
	Loader types.Loader[K, V]

	// WritePolicy decides what happens to the backing store when data is written to the cache.
	WritePolicy writepolicy.WritePolicy[K, V]

	// Metrics is how we keep track of what the cache is doing.
	Metrics stats.Recorder

	// Clock is the time source for timestamps and expiry checks.
	Clock types.Clock

	// LoadTimeout bounds every loader call when positive.
	LoadTimeout time.Duration

	Logger *log.Logger
}

/*
NewCacheEngine creates a CacheEngine.
Nil collaborators are replaced by their do-nothing versions so the cache never has to check.
*/
func NewCacheEngine[K comparable, V any](
	exp expiration.Policy,
	loader types.Loader[K, V],
	writePolicy writepolicy.WritePolicy[K, V],
	metrics stats.Recorder,
	clock types.Clock,
	logger *log.Logger,
) *CacheEngine[K, V] {

	if exp == nil {
		exp = expiration.Eternal{}
	}
	if writePolicy == nil {
		writePolicy = writepolicy.MemoryOnly[K, V]{}
	}
	if metrics == nil {
		metrics = stats.Noop{}
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}

	return &CacheEngine[K, V]{
		Expiration:  exp,
		Loader:      loader,
		WritePolicy: writePolicy,
		Metrics:     metrics,
		Clock:       clock,
		Logger:      logger,
	}
}

func (e *CacheEngine[K, V]) Now() time.Time { return e.Clock.Now() }

/*
IsExpired checks whether a cache entry is expired at now.
It is shaped as a shard.ExpiryFunc so the store can call it under its own lock.
*/
func (e *CacheEngine[K, V]) IsExpired(ts types.Timestamps, now time.Time) bool {
	return expiration.IsExpired(e.Expiration, ts, now)
}

// ReadThrough reports whether misses are loaded.
func (e *CacheEngine[K, V]) ReadThrough() bool { return e.Loader != nil }

/*
Load is used when the cache does NOT have the data.

This usually means:
- A database call
- A network request
*/
func (e *CacheEngine[K, V]) Load(ctx context.Context, key K) (V, error) {
	return e.LoadWith(ctx, key, e.Loader.Load)
}

/*
LoadWith runs an arbitrary load function under the engine's timeout and logging.
A panicking loader is turned into an error.
*/
func (e *CacheEngine[K, V]) LoadWith(ctx context.Context, key K, fn func(context.Context, K) (V, error)) (v V, err error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	defer recoverLoad(&err)

	start := time.Now()
	v, err = fn(ctx, key)
	e.Logger.Debug("load", "key", key, "took", time.Since(start), "err", err)
	return v, err
}

// BatchLoader returns the loader's batch form when it has one.
func (e *CacheEngine[K, V]) BatchLoader() (types.BatchLoader[K, V], bool) {
	bl, ok := e.Loader.(types.BatchLoader[K, V])
	return bl, ok
}

// LoadAll fetches many keys with one call. Only valid when BatchLoader reports true.
func (e *CacheEngine[K, V]) LoadAll(ctx context.Context, keys []K) (m map[K]V, err error) {
	bl, _ := e.BatchLoader()

	ctx, cancel := e.bound(ctx)
	defer cancel()
	defer recoverLoad(&err)

	start := time.Now()
	m, err = bl.LoadAll(ctx, keys)
	e.Logger.Debug("load all", "keys", len(keys), "loaded", len(m), "took", time.Since(start), "err", err)
	return m, err
}

// recoverLoad stores a recovered loader panic in err.
func recoverLoad(err *error) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("loader panic: %v", p)
	}
}

func (e *CacheEngine[K, V]) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.LoadTimeout > 0 {
		return context.WithTimeout(ctx, e.LoadTimeout)
	}
	return ctx, func() {}
}

/*
OnWrite is called before something is written to the cache.
Write propagation depends entirely on the configured WritePolicy.
*/
func (e *CacheEngine[K, V]) OnWrite(ctx context.Context, key K, value V) error {
	err := e.WritePolicy.OnWrite(ctx, key, value)
	if err != nil {
		e.Logger.Debug("write rejected", "key", key, "err", err)
	}
	return err
}

func (e *CacheEngine[K, V]) OnWriteAll(ctx context.Context, entries map[K]V) error {
	return e.WritePolicy.OnWriteAll(ctx, entries)
}

// OnDelete is called before an explicit removal. Expiry never calls it.
func (e *CacheEngine[K, V]) OnDelete(ctx context.Context, key K) error {
	err := e.WritePolicy.OnDelete(ctx, key)
	if err != nil {
		e.Logger.Debug("delete rejected", "key", key, "err", err)
	}
	return err
}

func (e *CacheEngine[K, V]) OnDeleteAll(ctx context.Context, keys []K) error {
	return e.WritePolicy.OnDeleteAll(ctx, keys)
}
