package writepolicy

import (
	"context"

	"github.com/krisalay/cache-facade/types"
)

/*
This file implements the "write-through" policy.

Whenever the cache writes data, it first writes the same data to the backing store.

So the flow is: DB write (synchronous) → cache write
*/

/*
WriteThroughPolicy directly forwards every cache mutation to the backing store.
*/
type WriteThroughPolicy[K comparable, V any] struct {

	// store is the backing store (DB, API, etc.) where data must be persisted immediately.
	store types.Writer[K, V]
}

/*
NewWriteThroughPolicy creates a new write-through policy.
*/
func NewWriteThroughPolicy[K comparable, V any](store types.Writer[K, V]) *WriteThroughPolicy[K, V] {
	return &WriteThroughPolicy[K, V]{store: store}
}

/*
OnWrite is called whenever the cache writes a key. We immediately write the data to the backing store.
  - This call is synchronous
  - The cache write is not committed until the backing store write finishes
  - If the backing store fails, the cache write does not happen at all
  - If the backing store is slow, cache writes become slow
*/
func (w *WriteThroughPolicy[K, V]) OnWrite(ctx context.Context, key K, value V) error {
	return w.store.Write(ctx, key, value)
}

func (w *WriteThroughPolicy[K, V]) OnWriteAll(ctx context.Context, entries map[K]V) error {
	return w.store.WriteAll(ctx, entries)
}

// OnDelete forwards explicit removals. Expiry never reaches this method.
func (w *WriteThroughPolicy[K, V]) OnDelete(ctx context.Context, key K) error {
	return w.store.Delete(ctx, key)
}

func (w *WriteThroughPolicy[K, V]) OnDeleteAll(ctx context.Context, keys []K) error {
	return w.store.DeleteAll(ctx, keys)
}
