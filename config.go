package cache

import (
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/krisalay/cache-facade/expiration"
	"github.com/krisalay/cache-facade/listener"
	"github.com/krisalay/cache-facade/types"
)

// DefaultShards is used when Config.Shards is zero.
const DefaultShards = 16

// ListenerConfig registers a listener at cache creation.
type ListenerConfig[K comparable, V any] struct {
	Listener listener.Listener[K, V]
	Filter   listener.Filter[K, V]

	// Async delivers from a dedicated goroutine with a queue of Buffer events
	// (listener.DefaultBuffer when zero).
	Async  bool
	Buffer int
}

/*
Config describes one cache. It is copied when the cache is created and never
changes afterwards.

The first group mirrors the JSR-107 MutableConfiguration: read-through,
write-through, expiry, loader, writer, statistics and listeners. The second
group tunes how this implementation runs.
*/
type Config[K comparable, V any] struct {
	ReadThrough  bool
	WriteThrough bool

	// Expiry is evaluated lazily on every read. Nil means entries never expire.
	Expiry expiration.Policy

	// Loader is required when ReadThrough is set. A loader that also implements
	// types.BatchLoader is used in one call by GetAll.
	Loader types.Loader[K, V]

	// Writer is required when WriteThrough is set.
	Writer types.Writer[K, V]

	StatisticsEnabled bool

	Listeners []ListenerConfig[K, V]

	// Clock defaults to the system clock.
	Clock types.Clock

	// Shards is the number of store partitions, DefaultShards when zero.
	Shards int

	// LoadTimeout bounds each loader call when positive.
	LoadTimeout time.Duration

	// Logger defaults to the manager's logger. The cache logs with its name as prefix.
	Logger *log.Logger

	// OnListenerError receives every listener failure (a *ListenerError).
	OnListenerError func(error)
}

func (c Config[K, V]) validate(name string) error {
	bad := func(field, reason string) error {
		return &ConfigurationError{Cache: name, Field: field, Reason: reason}
	}

	if name == "" {
		return bad("name", "must not be empty")
	}
	if c.ReadThrough && c.Loader == nil {
		return bad("Loader", "read-through requires a loader")
	}
	if c.WriteThrough && c.Writer == nil {
		return bad("Writer", "write-through requires a writer")
	}
	if err := expiration.Validate(c.Expiry); err != nil {
		return bad("Expiry", err.Error())
	}
	if c.Shards < 0 {
		return bad("Shards", "must not be negative")
	}
	if c.LoadTimeout < 0 {
		return bad("LoadTimeout", "must not be negative")
	}
	for _, l := range c.Listeners {
		if l.Listener == nil {
			return bad("Listeners", "listener must not be nil")
		}
		if l.Buffer < 0 {
			return bad("Listeners", "buffer must not be negative")
		}
	}
	return nil
}

func (c Config[K, V]) clone() Config[K, V] {
	c.Listeners = slices.Clone(c.Listeners)
	return c
}

func (l ListenerConfig[K, V]) options() []listener.Option[K, V] {
	var opts []listener.Option[K, V]
	if l.Filter != nil {
		opts = append(opts, listener.WithFilter(l.Filter))
	}
	if l.Async {
		buf := l.Buffer
		if buf == 0 {
			buf = listener.DefaultBuffer
		}
		opts = append(opts, listener.Async[K, V](buf))
	}
	return opts
}
