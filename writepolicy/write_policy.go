package writepolicy

import "context"

/*
This file defines what a "write policy" is.

A cache either mirrors every mutation to a backing store before committing it
(write-through), or keeps mutations in memory only. Instead of hard-coding one
behavior, we define an interface so the cache can plug in either.
*/

/*
WritePolicy is the contract that all write policies must follow.
The cache engine does not care which policy is used. It simply calls these methods
before committing a mutation, and aborts the mutation when they fail.
*/
type WritePolicy[K comparable, V any] interface {

	// OnWrite is called before a put is committed.
	OnWrite(ctx context.Context, key K, value V) error

	// OnWriteAll is called before a batch put is committed.
	OnWriteAll(ctx context.Context, entries map[K]V) error

	// OnDelete is called before a removal is committed.
	OnDelete(ctx context.Context, key K) error

	// OnDeleteAll is called before a batch removal is committed.
	OnDeleteAll(ctx context.Context, keys []K) error
}

/*
MemoryOnly keeps every mutation in memory. It is the policy of caches created
without write-through: nothing outside the cache is told about puts or removals.
*/
type MemoryOnly[K comparable, V any] struct{}

func (MemoryOnly[K, V]) OnWrite(context.Context, K, V) error       { return nil }
func (MemoryOnly[K, V]) OnWriteAll(context.Context, map[K]V) error { return nil }
func (MemoryOnly[K, V]) OnDelete(context.Context, K) error         { return nil }
func (MemoryOnly[K, V]) OnDeleteAll(context.Context, []K) error    { return nil }
