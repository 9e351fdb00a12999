package listener

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/krisalay/cache-facade/types"
)

type registered[K comparable, V any] struct {
	id       uuid.UUID
	listener Listener[K, V]
	filter   Filter[K, V]
	async    *worker[K, V]
}

/*
Registry holds the listeners of one cache and dispatches events to them.

Synchronous listeners run inside Dispatch, in registration order. Async listeners
get the event queued. A failing listener, by error or by panic, is reported to the
error handler and does not stop the others.

Dispatch does not hold the registry lock while listeners run, so a listener may
register or unregister listeners, itself included.
*/
type Registry[K comparable, V any] struct {
	cache   string
	onError func(*Error)

	mu        sync.RWMutex
	listeners []*registered[K, V]
	closed    bool
}

// NewRegistry creates an empty registry. onError may be nil.
func NewRegistry[K comparable, V any](cache string, onError func(*Error)) *Registry[K, V] {
	if onError == nil {
		onError = func(*Error) {}
	}
	return &Registry[K, V]{cache: cache, onError: onError}
}

// Register adds l and returns its registration. Registering on a closed registry is a no-op
// that still returns an ID.
func (r *Registry[K, V]) Register(l Listener[K, V], opts ...Option[K, V]) Registration {
	var o Options[K, V]
	for _, opt := range opts {
		opt(&o)
	}

	reg := &registered[K, V]{id: uuid.New(), listener: l, filter: o.Filter}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Registration{ID: reg.id, Async: o.Async}
	}
	if o.Async {
		reg.async = newWorker(o.Buffer, func(ev types.Event[K, V]) { r.deliver(reg, ev) })
	}
	r.listeners = append(r.listeners, reg)
	return Registration{ID: reg.id, Async: o.Async}
}

/*
Unregister removes the listener with id. Events already queued for an async listener
are still delivered, but Unregister does not wait for them.
*/
func (r *Registry[K, V]) Unregister(id uuid.UUID) bool {
	r.mu.Lock()
	var found *registered[K, V]
	for i, reg := range r.listeners {
		if reg.id == id {
			found = reg
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if found == nil {
		return false
	}
	if found.async != nil {
		found.async.stop()
	}
	return true
}

// Len returns the number of registered listeners.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

/*
Dispatch hands ev to every listener whose filter accepts it.
It works on the listeners registered when it starts. Unregister never mutates that
slice in place, and Register only appends past its length.
*/
func (r *Registry[K, V]) Dispatch(ev types.Event[K, V]) {
	r.mu.RLock()
	listeners := r.listeners
	r.mu.RUnlock()

	for _, reg := range listeners {
		if reg.async != nil {
			reg.async.enqueue(ev)
			continue
		}
		r.deliver(reg, ev)
	}
}

// deliver runs the filter and the listener, turning errors and panics into reports.
func (r *Registry[K, V]) deliver(reg *registered[K, V], ev types.Event[K, V]) {
	defer func() {
		if p := recover(); p != nil {
			r.report(reg, ev, fmt.Errorf("panic: %v", p))
		}
	}()

	if reg.filter != nil && !reg.filter(ev) {
		return
	}
	if err := reg.listener.OnEvent(ev); err != nil {
		r.report(reg, ev, err)
	}
}

func (r *Registry[K, V]) report(reg *registered[K, V], ev types.Event[K, V], err error) {
	r.onError(&Error{
		Cache:      r.cache,
		ListenerID: reg.id,
		Event:      ev.Type,
		Key:        ev.Key,
		Err:        err,
	})
}

// Close drains every async queue and drops all listeners. An async listener must not call it.
func (r *Registry[K, V]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	listeners := r.listeners
	r.listeners = nil
	r.mu.Unlock()

	for _, reg := range listeners {
		if reg.async != nil {
			reg.async.stop()
		}
	}
	for _, reg := range listeners {
		if reg.async != nil {
			reg.async.wait()
		}
	}
}
