package shard

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/krisalay/cache-facade/types"
)

/*
This file defines what a "Shard" is. A shard is a small, independent piece of the store.
Instead of having: One big map and one big lock
We split the store into many shards. Each shard:
- Holds some portion of the data
- Has its own lock

Keys in different shards never contend.
*/
type Shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*record[V]
}

func newShard[K comparable, V any]() *Shard[K, V] {
	return &Shard[K, V]{entries: make(map[K]*record[V])}
}

// record is the live, store-owned form of an entry.
// accessed is atomic so reads can move it while holding only the read lock.
type record[V any] struct {
	value    V
	created  time.Time
	updated  time.Time
	accessed atomic.Int64 // unix nanos
}

func newRecord[V any](value V, now time.Time) *record[V] {
	r := &record[V]{value: value, created: now, updated: now}
	r.accessed.Store(now.UnixNano())
	return r
}

func (r *record[V]) timestamps() types.Timestamps {
	return types.Timestamps{
		CreatedAt:      r.created,
		LastAccessedAt: time.Unix(0, r.accessed.Load()),
		LastUpdatedAt:  r.updated,
	}
}

// touch moves the access time forward, never before creation.
func (r *record[V]) touch(now time.Time) {
	if now.Before(r.created) {
		now = r.created
	}
	r.accessed.Store(now.UnixNano())
}

func toEntry[K comparable, V any](key K, r *record[V]) types.Entry[K, V] {
	return types.Entry[K, V]{Key: key, Value: r.value, Timestamps: r.timestamps()}
}
