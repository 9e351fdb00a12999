package cache

import (
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/krisalay/cache-facade/stats"
)

// managed is what the manager needs from a cache, whatever its key and value types.
type managed interface {
	Name() string
	Statistics() stats.Snapshot
	Clear() error
	Close() error
}

/*
Manager is the registry of named caches.

A program builds one Manager at startup and hands it to whoever needs a cache.
Names are unique within a manager. The manager does not know the key and value
types of its caches; GetCache checks them.
*/
type Manager struct {
	mu     sync.RWMutex
	caches map[string]managed
	closed bool

	logger *log.Logger
}

type Option func(*Manager)

// WithLogger sets the logger caches inherit when their Config has none.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		caches: make(map[string]managed),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

/*
CreateCache builds a cache from cfg and registers it under name.
It fails with ErrCacheExists when the name is taken and with *ConfigurationError
when cfg is invalid.
*/
func CreateCache[K comparable, V any](m *Manager, name string, cfg Config[K, V]) (*Cache[K, V], error) {
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if _, ok := m.caches[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrCacheExists, name)
	}

	c, err := New(name, cfg)
	if err != nil {
		return nil, err
	}
	c.onClose = func() { m.forget(name, c) }
	m.caches[name] = c

	m.logger.Info("cache created", "name", name)
	return c, nil
}

// GetCache returns the cache registered under name. It reports false when there is
// none or when its key and value types are not K and V.
func GetCache[K comparable, V any](m *Manager, name string) (*Cache[K, V], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.caches[name].(*Cache[K, V])
	return c, ok
}

// DestroyCache clears and closes the named cache and frees its name.
func (m *Manager) DestroyCache(name string) bool {
	m.mu.Lock()
	c, ok := m.caches[name]
	delete(m.caches, name)
	m.mu.Unlock()

	if !ok {
		return false
	}
	_ = c.Clear()
	_ = c.Close()
	m.logger.Info("cache destroyed", "name", name)
	return true
}

// CacheNames lists the registered caches in name order.
func (m *Manager) CacheNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Statistics returns the named cache's counters.
func (m *Manager) Statistics(name string) (stats.Snapshot, bool) {
	m.mu.RLock()
	c, ok := m.caches[name]
	m.mu.RUnlock()

	if !ok {
		return stats.Snapshot{}, false
	}
	return c.Statistics(), true
}

// Close closes every cache. Creating caches afterwards fails with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	caches := m.caches
	m.caches = make(map[string]managed)
	m.mu.Unlock()

	for _, c := range caches {
		_ = c.Close()
	}
	return nil
}

// forget drops name when it still points at c. Called when a cache closes itself.
func (m *Manager) forget(name string, c managed) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.caches[name]; ok && cur == c {
		delete(m.caches, name)
	}
}
