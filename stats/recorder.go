package stats

// This file defines how the cache reports what it is doing.

import "time"

/*
Recorder is an interface that defines what the cache wants to measure.
Each method represents an event in the cache lifecycle. The cache will call these methods whenever something happens.
*/
type Recorder interface {

	// Hit is called when a read finds a valid entry.
	Hit(n int)

	// Miss is called when a read finds nothing, or finds an expired entry.
	Miss(n int)

	// Put is called for every value committed to memory, including read-through loads.
	Put(n int)

	// Removal is called for every entry explicitly removed.
	Removal(n int)

	// Expiration is called when an entry is dropped because its expiry policy says so.
	Expiration(n int)

	// GetTime, PutTime and RemoveTime take one latency sample per operation.
	GetTime(d time.Duration)
	PutTime(d time.Duration)
	RemoveTime(d time.Duration)
}

/*
Noop is a "do nothing" implementation of Recorder.

Caches created with statistics disabled get this one, so the hot path never
has to check whether statistics are on.
*/
type Noop struct{}

func (Noop) Hit(int)                  {}
func (Noop) Miss(int)                 {}
func (Noop) Put(int)                  {}
func (Noop) Removal(int)              {}
func (Noop) Expiration(int)           {}
func (Noop) GetTime(time.Duration)    {}
func (Noop) PutTime(time.Duration)    {}
func (Noop) RemoveTime(time.Duration) {}
