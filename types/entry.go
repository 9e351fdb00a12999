package types

import "time"

// Entry is a copy of one cached mapping and its metadata.
// The store owns the live record; callers only ever see copies.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
	Timestamps
}

// Timestamps is the per-entry metadata expiry policies look at.
// LastAccessedAt is never before CreatedAt.
type Timestamps struct {
	CreatedAt      time.Time
	LastAccessedAt time.Time
	LastUpdatedAt  time.Time
}

// Clock supplies the current time to the cache.
// Expiry decisions and entry timestamps go through it, so tests can move time forward.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
