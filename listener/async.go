package listener

import (
	"sync"

	"github.com/krisalay/cache-facade/types"
)

// This file implements asynchronous delivery.

// DefaultBuffer is the initial async queue capacity used when none is given.
const DefaultBuffer = 1024

/*
worker delivers events to one async listener from a background goroutine.

One goroutine per listener keeps events in the order they were enqueued, and the
registry enqueues while the mutating operation still holds the key's lock, so a
listener sees each key's events in program order.

The queue grows as needed. Enqueueing never waits on the listener, so a listener
may call back into the cache, even for the key whose event it is handling.
Unlike a write-back queue, events are never dropped while the worker is running.
*/
type worker[K comparable, V any] struct {
	mu      sync.Mutex
	queue   []types.Event[K, V]
	spare   []types.Event[K, V]
	stopped bool

	// signal wakes the worker. It holds at most one pending wakeup.
	signal chan struct{}

	// done is closed when the worker has delivered everything and exited.
	done chan struct{}
}

func newWorker[K comparable, V any](buffer int, deliver func(types.Event[K, V])) *worker[K, V] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	w := &worker[K, V]{
		queue:  make([]types.Event[K, V], 0, buffer),
		spare:  make([]types.Event[K, V], 0, buffer),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.run(deliver)
	return w
}

func (w *worker[K, V]) run(deliver func(types.Event[K, V])) {
	defer close(w.done)
	for {
		w.mu.Lock()
		batch := w.queue
		w.queue = w.spare[:0]
		stopped := w.stopped
		w.mu.Unlock()

		for i, ev := range batch {
			deliver(ev)
			batch[i] = types.Event[K, V]{}
		}

		w.mu.Lock()
		w.spare = batch[:0]
		w.mu.Unlock()

		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-w.signal
	}
}

// enqueue adds ev to the queue. It reports false once the worker is stopped.
func (w *worker[K, V]) enqueue(ev types.Event[K, V]) bool {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, ev)
	w.mu.Unlock()
	w.wake()
	return true
}

func (w *worker[K, V]) wake() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

/*
stop shuts the worker down gracefully.
------------------
1. Refuse new events
2. Let the worker deliver what is queued, then exit

stop does not wait, so a listener can unregister itself from its own goroutine.
*/
func (w *worker[K, V]) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.wake()
}

// wait blocks until the worker has exited. It must not be called from the worker itself.
func (w *worker[K, V]) wait() {
	<-w.done
}
