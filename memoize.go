package cache

import (
	"context"

	"github.com/krisalay/cache-facade/api"
)

/*
Memoize wraps fn so each key is computed once and then served from c until the
entry expires or is removed. Concurrent calls for the same key share one computation.

fn returning ErrNotFound caches nothing and is passed through to the caller; any other
error comes back as a *LoadError and is not cached either. Results are stored in
memory only, they are not written through.
*/
func Memoize[K comparable, V any](c api.Cache[K, V], fn func(ctx context.Context, key K) (V, error)) func(ctx context.Context, key K) (V, error) {
	return func(ctx context.Context, key K) (V, error) {
		v, ok, err := c.GetOrLoad(ctx, key, fn)
		if err == nil && !ok {
			return v, ErrNotFound
		}
		return v, err
	}
}

// MemoizeWithKey is Memoize for functions whose argument is not the cache key itself.
// keyFn must map equal arguments to equal keys.
func MemoizeWithKey[A any, K comparable, V any](c api.Cache[K, V], keyFn func(A) K, fn func(ctx context.Context, arg A) (V, error)) func(ctx context.Context, arg A) (V, error) {
	return func(ctx context.Context, arg A) (V, error) {
		v, ok, err := c.GetOrLoad(ctx, keyFn(arg), func(ctx context.Context, _ K) (V, error) {
			return fn(ctx, arg)
		})
		if err == nil && !ok {
			return v, ErrNotFound
		}
		return v, err
	}
}
