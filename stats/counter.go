package stats

import (
	"sync/atomic"
	"time"
)

/*
Counter keeps running tallies for one cache.

Every field is its own atomic, so a single operation's count and latency sample are
each recorded atomically, but a Snapshot taken during traffic may see one without the
other. Reset has the same best-effort semantics: operations racing with it may be
counted on either side of the boundary.
*/
type Counter struct {
	hits        atomic.Int64
	misses      atomic.Int64
	puts        atomic.Int64
	removals    atomic.Int64
	expirations atomic.Int64

	getNanos    atomic.Int64
	putNanos    atomic.Int64
	removeNanos atomic.Int64
}

func NewCounter() *Counter { return &Counter{} }

func (c *Counter) Hit(n int)        { c.hits.Add(int64(n)) }
func (c *Counter) Miss(n int)       { c.misses.Add(int64(n)) }
func (c *Counter) Put(n int)        { c.puts.Add(int64(n)) }
func (c *Counter) Removal(n int)    { c.removals.Add(int64(n)) }
func (c *Counter) Expiration(n int) { c.expirations.Add(int64(n)) }

func (c *Counter) GetTime(d time.Duration)    { c.getNanos.Add(int64(d)) }
func (c *Counter) PutTime(d time.Duration)    { c.putNanos.Add(int64(d)) }
func (c *Counter) RemoveTime(d time.Duration) { c.removeNanos.Add(int64(d)) }

// Snapshot copies the current values.
func (c *Counter) Snapshot() Snapshot {
	return Snapshot{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Puts:            c.puts.Load(),
		Removals:        c.removals.Load(),
		Expirations:     c.expirations.Load(),
		TotalGetTime:    time.Duration(c.getNanos.Load()),
		TotalPutTime:    time.Duration(c.putNanos.Load()),
		TotalRemoveTime: time.Duration(c.removeNanos.Load()),
	}
}

// Reset zeroes all counters.
func (c *Counter) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.puts.Store(0)
	c.removals.Store(0)
	c.expirations.Store(0)
	c.getNanos.Store(0)
	c.putNanos.Store(0)
	c.removeNanos.Store(0)
}
