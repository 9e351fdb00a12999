package cache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/krisalay/cache-facade/api"
	"github.com/krisalay/cache-facade/engine"
	"github.com/krisalay/cache-facade/listener"
	"github.com/krisalay/cache-facade/shard"
	"github.com/krisalay/cache-facade/stats"
	"github.com/krisalay/cache-facade/types"
	"github.com/krisalay/cache-facade/writepolicy"
)

var _ api.Cache[string, any] = (*Cache[string, any])(nil)

/*
Cache is the main cache implementation.
This struct is the orchestrator that connects:
- the entry store
- expiration
- loading
- write-through
- listeners
- statistics

Every mutation of a key happens under that key's lock: the writer call, the store
change and the event dispatch. Different keys never wait on each other.
*/
type Cache[K comparable, V any] struct {
	name string
	cfg  Config[K, V]

	// engine contains the "rules" of the cache: expiry, loader, write policy, metrics, clock.
	engine *engine.CacheEngine[K, V]

	// store is the actual storage. It is sharded internally.
	store *shard.Store[K, V]

	// locks serializes mutations per key.
	locks *shard.KeyMutex[K]

	listeners *listener.Registry[K, V]

	// counter is nil when statistics are disabled.
	counter *stats.Counter

	// singleflight prevents multiple goroutines from loading the same key from the backing store simultaneously.
	sf singleflight.Group

	// custom is the flight group of GetOrLoad, so a caller's function never hands its
	// result to a reader expecting the configured loader's, or the other way round.
	custom singleflight.Group

	logger *log.Logger

	closed  atomic.Bool
	onClose func()
}

// loaded boxes a loaded value so a nil interface V survives the trip through singleflight.
type loaded[V any] struct{ v V }

/*
New creates a cache that is not registered with any manager.
Most programs create caches through a Manager instead.
*/
func New[K comparable, V any](name string, cfg Config[K, V]) (*Cache[K, V], error) {
	if err := cfg.validate(name); err != nil {
		return nil, err
	}
	cfg = cfg.clone()

	base := cfg.Logger
	if base == nil {
		base = log.Default()
	}
	logger := base.WithPrefix(name)

	var loader types.Loader[K, V]
	if cfg.ReadThrough {
		loader = cfg.Loader
	}

	var wp writepolicy.WritePolicy[K, V] = writepolicy.MemoryOnly[K, V]{}
	if cfg.WriteThrough {
		wp = writepolicy.NewWriteThroughPolicy(cfg.Writer)
	}

	var counter *stats.Counter
	var rec stats.Recorder = stats.Noop{}
	if cfg.StatisticsEnabled {
		counter = stats.NewCounter()
		rec = counter
	}

	eng := engine.NewCacheEngine(cfg.Expiry, loader, wp, rec, cfg.Clock, logger)
	eng.LoadTimeout = cfg.LoadTimeout

	shards := cfg.Shards
	if shards == 0 {
		shards = DefaultShards
	}

	c := &Cache[K, V]{
		name:    name,
		cfg:     cfg,
		engine:  eng,
		store:   shard.NewStore[K, V](shards),
		locks:   shard.NewKeyMutex[K](),
		counter: counter,
		logger:  logger,
		onClose: func() {},
	}
	c.listeners = listener.NewRegistry[K, V](name, c.listenerFailed)
	for _, l := range cfg.Listeners {
		c.listeners.Register(l.Listener, l.options()...)
	}

	logger.Debug("created",
		"readThrough", cfg.ReadThrough,
		"writeThrough", cfg.WriteThrough,
		"expiry", eng.Expiration,
		"statistics", cfg.StatisticsEnabled,
		"shards", shards,
	)
	return c, nil
}

func (c *Cache[K, V]) listenerFailed(e *listener.Error) {
	c.logger.Error("listener failed", "listener", e.ListenerID, "event", e.Event, "key", e.Key, "err", e.Err)
	if c.cfg.OnListenerError != nil {
		c.cfg.OnListenerError(e)
	}
}

func (c *Cache[K, V]) Name() string { return c.name }

// Configuration returns a copy of the configuration the cache was created with.
func (c *Cache[K, V]) Configuration() Config[K, V] { return c.cfg.clone() }

// ================= READS =================

/*
Get retrieves the value associated with key.

 1. If the key exists and is NOT expired, return it (hit).
 2. If it is expired, drop it and fire an Expired event.
 3. On a miss with read-through, load it once (concurrent callers share the load),
    store it, fire Created and return it.

The boolean is false when there is no value. It is never an error for a key to be absent.
*/
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	return c.getOrLoad(ctx, key, nil)
}

/*
GetOrLoad is Get with fn standing in for the configured loader, whether or not read-through is on.

Concurrent GetOrLoad calls for one key share a single fn call, even when they pass
different functions. They never share a load with Get.
*/
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, fn func(context.Context, K) (V, error)) (V, bool, error) {
	return c.getOrLoad(ctx, key, fn)
}

func (c *Cache[K, V]) getOrLoad(ctx context.Context, key K, fn func(context.Context, K) (V, error)) (V, bool, error) {
	var zero V
	if c.closed.Load() {
		return zero, false, ErrClosed
	}

	start := time.Now()
	defer func() { c.engine.Metrics.GetTime(time.Since(start)) }()

	if v, ok := c.lookup(key); ok {
		c.engine.Metrics.Hit(1)
		return v, true, nil
	}
	c.engine.Metrics.Miss(1)

	if fn != nil {
		return c.load(ctx, &c.custom, key, fn)
	}
	if !c.engine.ReadThrough() {
		return zero, false, nil
	}
	return c.load(ctx, &c.sf, key, c.engine.Loader.Load)
}

// lookup returns the valid value for key. An expired entry is dropped on the way.
func (c *Cache[K, V]) lookup(key K) (V, bool) {
	ent, st := c.store.Lookup(key, c.engine.Now(), c.engine.IsExpired)
	switch st {
	case shard.Hit:
		return ent.Value, true
	case shard.Expired:
		unlock := c.locks.Lock(key)
		c.expireLocked(key)
		unlock()
	}
	var zero V
	return zero, false
}

/*
load runs fn for key through the single-flight group g.

The shared load is detached from the caller's cancellation so one caller giving up
does not fail the others; each caller still stops waiting when its own ctx is done.
*/
func (c *Cache[K, V]) load(ctx context.Context, g *singleflight.Group, key K, fn func(context.Context, K) (V, error)) (V, bool, error) {
	var zero V
	detached := context.WithoutCancel(ctx)

	ch := g.DoChan(flightKey(key), func() (any, error) {
		v, err := c.engine.LoadWith(detached, key, fn)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, &LoadError{Cache: c.name, Keys: []any{key}, Err: err}
		}
		return loaded[V]{c.commitLoaded(key, v)}, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, ErrNotFound) {
				return zero, false, nil
			}
			return zero, false, res.Err
		}
		return res.Val.(loaded[V]).v, true, nil
	}
}

/*
flightKey names key in a single-flight group. The dynamic type is part of the name so
int(1) and int64(1) stay apart under an interface key type, and negative zero is folded
into zero to match map equality. NaN keys, which never equal themselves in a map, share
one flight; a NaN entry is unreachable anyway.
*/
func flightKey[K comparable](key K) string {
	switch k := any(key).(type) {
	case string:
		return "s:" + k
	case float64:
		if k == 0 {
			k = 0
		}
		return fmt.Sprintf("%T/%#v", k, k)
	case float32:
		if k == 0 {
			k = 0
		}
		return fmt.Sprintf("%T/%#v", k, k)
	}
	return fmt.Sprintf("%T/%#v", key, key)
}

/*
commitLoaded stores a loaded value unless a valid entry appeared while the loader
ran; a concurrent put wins and its value is returned instead.
Loaded values are never written through: they came from the backing store.
*/
func (c *Cache[K, V]) commitLoaded(key K, v V) V {
	unlock := c.locks.Lock(key)
	defer unlock()

	if cur, ok := c.validLocked(key); ok {
		return cur.Value
	}
	if c.closed.Load() {
		return v
	}
	c.store.Put(key, v, c.engine.Now())
	c.engine.Metrics.Put(1)
	c.dispatch(types.Event[K, V]{Type: types.Created, Key: key, Value: v})
	return v
}

/*
GetAll returns the values for keys that have one. Duplicate keys are looked up once.

Missing keys are loaded when read-through is on: in one LoadAll call when the loader
is a types.BatchLoader, otherwise one load per key, run concurrently. When some keys
fail to load, the values that did load are returned together with a *LoadError naming
the failed keys.
*/
func (c *Cache[K, V]) GetAll(ctx context.Context, keys []K) (map[K]V, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	defer func() { c.engine.Metrics.GetTime(time.Since(start)) }()

	keys = dedupe(keys)
	out := make(map[K]V, len(keys))
	var missing []K
	for _, k := range keys {
		if v, ok := c.lookup(k); ok {
			out[k] = v
			continue
		}
		missing = append(missing, k)
	}
	c.engine.Metrics.Hit(len(out))
	c.engine.Metrics.Miss(len(missing))

	if len(missing) == 0 || !c.engine.ReadThrough() {
		return out, nil
	}
	if _, ok := c.engine.BatchLoader(); ok {
		return out, c.loadBatch(ctx, missing, out)
	}
	return out, c.loadEach(ctx, missing, out)
}

func (c *Cache[K, V]) loadBatch(ctx context.Context, missing []K, out map[K]V) error {
	m, err := c.engine.LoadAll(ctx, missing)

	var failed types.KeyErrors[K]
	if err != nil && !errors.As(err, &failed) && !errors.Is(err, ErrNotFound) {
		return &LoadError{Cache: c.name, Keys: anyKeys(missing), Err: err}
	}

	for _, k := range missing {
		v, ok := m[k]
		if !ok {
			continue
		}
		if _, bad := failed[k]; bad {
			continue
		}
		out[k] = c.commitLoaded(k, v)
	}
	return c.loadFailures(failed)
}

func (c *Cache[K, V]) loadEach(ctx context.Context, missing []K, out map[K]V) error {
	var (
		mu     sync.Mutex
		failed = types.KeyErrors[K]{}
		g      errgroup.Group
	)
	for _, k := range missing {
		g.Go(func() error {
			v, ok, err := c.load(ctx, &c.sf, k, c.engine.Loader.Load)

			mu.Lock()
			defer mu.Unlock()
			var le *LoadError
			switch {
			case errors.As(err, &le):
				failed[k] = le.Err
			case err != nil:
				failed[k] = err
			case ok:
				out[k] = v
			}
			return nil
		})
	}
	_ = g.Wait()
	return c.loadFailures(failed)
}

// loadFailures turns per-key load errors into one *LoadError. Not-found keys are not failures.
func (c *Cache[K, V]) loadFailures(failed types.KeyErrors[K]) error {
	errs := types.KeyErrors[K]{}
	for k, err := range failed {
		if !errors.Is(err, ErrNotFound) {
			errs[k] = err
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &LoadError{Cache: c.name, Keys: anyKeys(failedKeys[K](errs, nil)), Err: errs}
}

// ContainsKey reports whether key has a valid entry. It records no statistics and does not count as an access.
func (c *Cache[K, V]) ContainsKey(key K) bool {
	if c.closed.Load() {
		return false
	}
	ent, ok := c.store.Peek(key)
	return ok && !c.engine.IsExpired(ent.Timestamps, c.engine.Now())
}

/*
All iterates over a snapshot of the valid entries. Expired entries are skipped
without being dropped, and iterating does not count as access.
*/
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if c.closed.Load() {
			return
		}
		now := c.engine.Now()
		for _, ent := range c.store.Snapshot() {
			if c.engine.IsExpired(ent.Timestamps, now) {
				continue
			}
			if !yield(ent.Key, ent.Value) {
				return
			}
		}
	}
}

// ================= WRITES =================

/*
Put stores value for key.

With write-through the Writer is called first. If it fails, the store is not touched and
a *WriteError is returned. Otherwise Created (new key) or Updated (with the old value) fires.
*/
func (c *Cache[K, V]) Put(ctx context.Context, key K, value V) error {
	if c.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	defer func() { c.engine.Metrics.PutTime(time.Since(start)) }()

	unlock := c.locks.Lock(key)
	defer unlock()

	if err := c.engine.OnWrite(ctx, key, value); err != nil {
		return c.writeError([]K{key}, err)
	}
	c.commitPut(key, value)
	return nil
}

// PutIfAbsent stores value only when key has no valid entry, and reports whether it did.
func (c *Cache[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}

	start := time.Now()
	defer func() { c.engine.Metrics.PutTime(time.Since(start)) }()

	unlock := c.locks.Lock(key)
	defer unlock()

	if _, ok := c.validLocked(key); ok {
		return false, nil
	}
	if err := c.engine.OnWrite(ctx, key, value); err != nil {
		return false, c.writeError([]K{key}, err)
	}
	c.commitPut(key, value)
	return true, nil
}

// GetAndPut stores value and returns the value it replaced, if any.
func (c *Cache[K, V]) GetAndPut(ctx context.Context, key K, value V) (V, bool, error) {
	var zero V
	if c.closed.Load() {
		return zero, false, ErrClosed
	}

	start := time.Now()
	defer func() { c.engine.Metrics.PutTime(time.Since(start)) }()

	unlock := c.locks.Lock(key)
	defer unlock()

	if err := c.engine.OnWrite(ctx, key, value); err != nil {
		return zero, false, c.writeError([]K{key}, err)
	}
	prev, ok := c.commitPut(key, value)
	c.recordRead(ok)
	return prev, ok, nil
}

// Replace stores value only when key already has a valid entry, and reports whether it did.
func (c *Cache[K, V]) Replace(ctx context.Context, key K, value V) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}

	start := time.Now()
	defer func() { c.engine.Metrics.PutTime(time.Since(start)) }()

	unlock := c.locks.Lock(key)
	defer unlock()

	_, ok := c.validLocked(key)
	c.recordRead(ok)
	if !ok {
		return false, nil
	}
	if err := c.engine.OnWrite(ctx, key, value); err != nil {
		return false, c.writeError([]K{key}, err)
	}
	c.commitPut(key, value)
	return true, nil
}

/*
PutAll stores every entry, writing them through in one WriteAll call.
When the Writer reports per-key failures (types.KeyErrors) the other keys are still
committed and the failed ones are named in the returned *WriteError. Any other
Writer error leaves the store untouched.
*/
func (c *Cache[K, V]) PutAll(ctx context.Context, entries map[K]V) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { c.engine.Metrics.PutTime(time.Since(start)) }()

	keys := make([]K, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	unlock := c.locks.LockAll(keys)
	defer unlock()

	err := c.engine.OnWriteAll(ctx, maps.Clone(entries))
	var failed types.KeyErrors[K]
	if err != nil && !errors.As(err, &failed) {
		return c.writeError(keys, err)
	}
	for _, k := range keys {
		if _, bad := failed[k]; bad {
			continue
		}
		c.commitPut(k, entries[k])
	}
	if len(failed) > 0 {
		return c.writeError(failedKeys(err, keys), err)
	}
	return nil
}

// commitPut applies a put that has already been written through. The caller holds the key lock.
func (c *Cache[K, V]) commitPut(key K, value V) (V, bool) {
	prev, ok := c.validLocked(key)
	c.store.Put(key, value, c.engine.Now())
	c.engine.Metrics.Put(1)

	if ok {
		c.dispatch(types.Event[K, V]{
			Type:        types.Updated,
			Key:         key,
			Value:       value,
			OldValue:    prev.Value,
			HasOldValue: true,
		})
		return prev.Value, true
	}
	c.dispatch(types.Event[K, V]{Type: types.Created, Key: key, Value: value})
	var zero V
	return zero, false
}

// ================= REMOVALS =================

/*
Remove deletes key and reports whether a valid entry was there.

With write-through the Writer's Delete is always called first, even when the key is
absent from memory, since the backing store may still hold it. If Delete fails, the
entry stays and a *WriteError is returned.
*/
func (c *Cache[K, V]) Remove(ctx context.Context, key K) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}

	start := time.Now()
	defer func() { c.engine.Metrics.RemoveTime(time.Since(start)) }()

	unlock := c.locks.Lock(key)
	defer unlock()

	if err := c.engine.OnDelete(ctx, key); err != nil {
		return false, c.writeError([]K{key}, err)
	}
	_, ok := c.removeLocked(key)
	return ok, nil
}

// GetAndRemove deletes key and returns the value it held.
func (c *Cache[K, V]) GetAndRemove(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if c.closed.Load() {
		return zero, false, ErrClosed
	}

	start := time.Now()
	defer func() { c.engine.Metrics.RemoveTime(time.Since(start)) }()

	unlock := c.locks.Lock(key)
	defer unlock()

	if err := c.engine.OnDelete(ctx, key); err != nil {
		return zero, false, c.writeError([]K{key}, err)
	}
	v, ok := c.removeLocked(key)
	c.recordRead(ok)
	return v, ok, nil
}

/*
RemoveAll deletes the given keys, or every key when none are given, deleting them
through in one DeleteAll call. Per-key Writer failures keep those entries and are
named in the returned *WriteError.
*/
func (c *Cache[K, V]) RemoveAll(ctx context.Context, keys ...K) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if len(keys) == 0 {
		keys = c.store.Keys()
	}
	keys = dedupe(keys)
	if len(keys) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { c.engine.Metrics.RemoveTime(time.Since(start)) }()

	unlock := c.locks.LockAll(keys)
	defer unlock()

	err := c.engine.OnDeleteAll(ctx, keys)
	var failed types.KeyErrors[K]
	if err != nil && !errors.As(err, &failed) {
		return c.writeError(keys, err)
	}
	for _, k := range keys {
		if _, bad := failed[k]; bad {
			continue
		}
		c.removeLocked(k)
	}
	if len(failed) > 0 {
		return c.writeError(failedKeys(err, keys), err)
	}
	return nil
}

/*
Invalidate drops key from memory only. The Writer is not called. A Removed event
fires when a valid entry was dropped.
*/
func (c *Cache[K, V]) Invalidate(key K) bool {
	if c.closed.Load() {
		return false
	}

	unlock := c.locks.Lock(key)
	defer unlock()

	_, ok := c.removeLocked(key)
	return ok
}

// Clear drops every entry from memory. No Writer calls, no events, no statistics.
func (c *Cache[K, V]) Clear() error {
	if c.closed.Load() {
		return ErrClosed
	}
	n := c.store.Clear()
	c.logger.Debug("cleared", "entries", n)
	return nil
}

// removeLocked deletes key from memory and fires the matching event. The caller holds the key lock.
func (c *Cache[K, V]) removeLocked(key K) (V, bool) {
	var zero V
	ent, ok := c.store.Remove(key)
	if !ok {
		return zero, false
	}
	if c.engine.IsExpired(ent.Timestamps, c.engine.Now()) {
		c.engine.Metrics.Expiration(1)
		c.dispatch(types.Event[K, V]{Type: types.Expired, Key: key, Value: ent.Value})
		return zero, false
	}
	c.engine.Metrics.Removal(1)
	c.dispatch(types.Event[K, V]{Type: types.Removed, Key: key, Value: ent.Value})
	return ent.Value, true
}

/*
validLocked returns the entry for key when it is there and not expired.
An expired entry is dropped and its Expired event fired. The caller holds the key lock.
*/
func (c *Cache[K, V]) validLocked(key K) (types.Entry[K, V], bool) {
	ent, ok := c.store.Peek(key)
	if !ok {
		return ent, false
	}
	if c.engine.IsExpired(ent.Timestamps, c.engine.Now()) {
		c.expireLocked(key)
		return types.Entry[K, V]{}, false
	}
	return ent, true
}

// expireLocked drops key if it is still expired. Expiry never reaches the Writer.
func (c *Cache[K, V]) expireLocked(key K) {
	now := c.engine.Now()
	ent, ok := c.store.RemoveIf(key, func(e types.Entry[K, V]) bool {
		return c.engine.IsExpired(e.Timestamps, now)
	})
	if !ok {
		return
	}
	c.engine.Metrics.Expiration(1)
	c.dispatch(types.Event[K, V]{Type: types.Expired, Key: key, Value: ent.Value})
}

func (c *Cache[K, V]) recordRead(hit bool) {
	if hit {
		c.engine.Metrics.Hit(1)
	} else {
		c.engine.Metrics.Miss(1)
	}
}

func (c *Cache[K, V]) writeError(keys []K, err error) error {
	return &WriteError{Cache: c.name, Keys: anyKeys(keys), Err: err}
}

func (c *Cache[K, V]) dispatch(ev types.Event[K, V]) {
	ev.Cache = c.name
	c.listeners.Dispatch(ev)
}

// ================= LISTENERS & STATISTICS =================

// RegisterListener adds l after creation. See listener.WithFilter and listener.Async for options.
func (c *Cache[K, V]) RegisterListener(l listener.Listener[K, V], opts ...listener.Option[K, V]) listener.Registration {
	return c.listeners.Register(l, opts...)
}

func (c *Cache[K, V]) UnregisterListener(id uuid.UUID) bool {
	return c.listeners.Unregister(id)
}

// Statistics returns the current counters. It is all zeros when statistics are disabled.
func (c *Cache[K, V]) Statistics() stats.Snapshot {
	if c.counter == nil {
		return stats.Snapshot{}
	}
	return c.counter.Snapshot()
}

func (c *Cache[K, V]) ResetStatistics() {
	if c.counter != nil {
		c.counter.Reset()
	}
}

/*
Close gracefully shuts down the cache.
Queued async events are delivered, listeners are dropped and the cache leaves its manager.
Every later operation returns ErrClosed. Closing twice is a no-op.
Close waits for async listeners, so it must not be called from one.
*/
func (c *Cache[K, V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.listeners.Close()
	c.onClose()
	c.logger.Debug("closed")
	return nil
}

func dedupe[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
