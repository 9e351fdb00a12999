package cache

import (
	"errors"
	"fmt"

	"github.com/krisalay/cache-facade/listener"
	"github.com/krisalay/cache-facade/types"
)

var (
	// ErrClosed is returned by every operation on a cache (or manager) after Close.
	ErrClosed = errors.New("cache: closed")

	// ErrCacheExists is returned by CreateCache when the name is already registered.
	ErrCacheExists = errors.New("cache: already exists")

	// ErrNotFound is what a Loader returns when the backing store has no value.
	ErrNotFound = types.ErrNotFound
)

/*
LoadError means the Loader failed. Nothing was cached for the listed keys and
a later read will try to load them again.
*/
type LoadError struct {
	Cache string
	Keys  []any
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cache %q: load %v: %v", e.Cache, e.Keys, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

/*
WriteError means the Writer rejected a mutation. The in-memory store was not
changed for the listed keys.
*/
type WriteError struct {
	Cache string
	Keys  []any
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("cache %q: write-through %v: %v", e.Cache, e.Keys, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ListenerError is a listener failure. It is reported to Config.OnListenerError, never returned.
type ListenerError = listener.Error

// ConfigurationError rejects an invalid Config at creation time.
type ConfigurationError struct {
	Cache  string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cache %q: invalid %s: %s", e.Cache, e.Field, e.Reason)
}

func anyKeys[K comparable](keys []K) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

// failedKeys lists the keys carried by a KeyErrors, or all of keys when err is not one.
func failedKeys[K comparable](err error, keys []K) []K {
	var ke types.KeyErrors[K]
	if errors.As(err, &ke) {
		out := make([]K, 0, len(ke))
		for k := range ke {
			out = append(out, k)
		}
		return out
	}
	return keys
}
