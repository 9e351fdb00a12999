package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by a Loader when the backing store has no value for a key.
// The cache treats it as "absent", not as a failure, and caches nothing.
var ErrNotFound = errors.New("not found")

// Loader is the contract between the cache and the backing store on the read side.
type Loader[K comparable, V any] interface {

	/*
		Load is called when the cache misses and read-through is enabled.
		1. Cache checks memory → key not found or expired
		2. Cache calls Load(key)
		3. Loader fetches from DB/API
		4. Cache stores the result in memory
		5. Cache returns the value

		Return ErrNotFound when there is nothing to load.
	*/
	Load(ctx context.Context, key K) (V, error)
}

/*
BatchLoader is implemented by loaders that can fetch many keys in one round trip.

GetAll uses LoadAll when it is available and falls back to one Load per missing key otherwise.
Keys missing from the returned map are treated as not found. A partial failure is reported by
returning KeyErrors alongside the values that did load.
*/
type BatchLoader[K comparable, V any] interface {
	Loader[K, V]
	LoadAll(ctx context.Context, keys []K) (map[K]V, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

func (f LoaderFunc[K, V]) Load(ctx context.Context, key K) (V, error) {
	return f(ctx, key)
}

// Writer is the write side of the backing store, used by write-through caches.
//
// The cache calls the writer BEFORE it commits a mutation to memory. A writer error
// aborts the mutation. WriteAll and DeleteAll may report partial success with KeyErrors.
type Writer[K comparable, V any] interface {
	Write(ctx context.Context, key K, value V) error
	WriteAll(ctx context.Context, entries map[K]V) error
	Delete(ctx context.Context, key K) error
	DeleteAll(ctx context.Context, keys []K) error
}

/*
WriterFuncs builds a Writer from two functions.
The batch methods call the single-key functions in turn and collect per-key failures.
*/
type WriterFuncs[K comparable, V any] struct {
	WriteFunc  func(ctx context.Context, key K, value V) error
	DeleteFunc func(ctx context.Context, key K) error
}

func (w WriterFuncs[K, V]) Write(ctx context.Context, key K, value V) error {
	if w.WriteFunc == nil {
		return nil
	}
	return w.WriteFunc(ctx, key, value)
}

func (w WriterFuncs[K, V]) WriteAll(ctx context.Context, entries map[K]V) error {
	failed := KeyErrors[K]{}
	for k, v := range entries {
		if err := w.Write(ctx, k, v); err != nil {
			failed[k] = err
		}
	}
	return failed.OrNil()
}

func (w WriterFuncs[K, V]) Delete(ctx context.Context, key K) error {
	if w.DeleteFunc == nil {
		return nil
	}
	return w.DeleteFunc(ctx, key)
}

func (w WriterFuncs[K, V]) DeleteAll(ctx context.Context, keys []K) error {
	failed := KeyErrors[K]{}
	for _, k := range keys {
		if err := w.Delete(ctx, k); err != nil {
			failed[k] = err
		}
	}
	return failed.OrNil()
}

// KeyErrors reports which keys of a batch operation failed and why.
// Keys not listed succeeded.
type KeyErrors[K comparable] map[K]error

func (e KeyErrors[K]) Error() string {
	parts := make([]string, 0, len(e))
	for k, err := range e {
		parts = append(parts, fmt.Sprintf("%v: %v", k, err))
	}
	return fmt.Sprintf("%d keys failed: %s", len(e), strings.Join(parts, "; "))
}

// Unwrap exposes the per-key errors to errors.Is and errors.As.
func (e KeyErrors[K]) Unwrap() []error {
	errs := make([]error, 0, len(e))
	for _, err := range e {
		errs = append(errs, err)
	}
	return errs
}

// OrNil returns nil for an empty set so callers can return it directly.
func (e KeyErrors[K]) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
