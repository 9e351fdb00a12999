// Package listener fans cache entry events out to registered observers.
package listener

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/krisalay/cache-facade/types"
)

// Listener observes entry events. A returned error is reported, never propagated.
type Listener[K comparable, V any] interface {
	OnEvent(ev types.Event[K, V]) error
}

// Func adapts a function to the Listener interface.
type Func[K comparable, V any] func(ev types.Event[K, V]) error

func (f Func[K, V]) OnEvent(ev types.Event[K, V]) error { return f(ev) }

// Filter decides whether a listener sees an event.
type Filter[K comparable, V any] func(ev types.Event[K, V]) bool

// Options are the per-registration settings.
type Options[K comparable, V any] struct {
	// Filter, when set, drops events it returns false for.
	Filter Filter[K, V]

	// Async delivers events from a dedicated goroutine instead of the mutating call.
	Async bool

	// Buffer is the initial async queue capacity. The queue grows past it; enqueueing never blocks.
	Buffer int
}

// Option mutates Options.
type Option[K comparable, V any] func(*Options[K, V])

func WithFilter[K comparable, V any](f Filter[K, V]) Option[K, V] {
	return func(o *Options[K, V]) { o.Filter = f }
}

// OnlyTypes is a filter accepting the given event types.
func OnlyTypes[K comparable, V any](ts ...types.EventType) Option[K, V] {
	return WithFilter(func(ev types.Event[K, V]) bool {
		for _, t := range ts {
			if ev.Type == t {
				return true
			}
		}
		return false
	})
}

func Async[K comparable, V any](buffer int) Option[K, V] {
	return func(o *Options[K, V]) {
		o.Async = true
		o.Buffer = buffer
	}
}

// Registration identifies one registered listener.
type Registration struct {
	ID    uuid.UUID
	Async bool
}

// Error is a listener failure: a returned error or a recovered panic.
// It is reported through the registry's error handler and never reaches the caller that mutated the cache.
type Error struct {
	Cache      string
	ListenerID uuid.UUID
	Event      types.EventType
	Key        any
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %q: listener %s failed on %s event for key %v: %v",
		e.Cache, e.ListenerID, e.Event, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
