package shard

import "hash/maphash"

/*
This file decides HOW a cache key is assigned to a shard.
If every request went to the same shard, that shard would become a bottleneck.
Shard selection is about:
- Load balancing
- Avoiding hot spots
- Scaling under concurrency
*/

/*
Selector is the interface that decides which shard should handle a given key.
The store does not care HOW this decision is made. Different strategies can be plugged in.
*/
type Selector[K comparable] interface {
	Select(key K, shards int) int
}

// HashSelector spreads keys with the runtime's map hash, so it works for any comparable key type.
type HashSelector[K comparable] struct {
	seed maphash.Seed
}

func NewHashSelector[K comparable]() HashSelector[K] {
	return HashSelector[K]{seed: maphash.MakeSeed()}
}

// Select chooses the shard index for a given key.
func (h HashSelector[K]) Select(key K, shards int) int {
	return int(maphash.Comparable(h.seed, key) % uint64(shards))
}
