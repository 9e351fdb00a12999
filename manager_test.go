package cache_test

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	cache "github.com/krisalay/cache-facade"
)

func newManager() *cache.Manager {
	return cache.NewManager(cache.WithLogger(log.New(io.Discard)))
}

func TestManagerCreateAndGet(t *testing.T) {
	m := newManager()
	defer m.Close()

	c, err := cache.CreateCache(m, "users", cache.Config[int, string]{StatisticsEnabled: true})
	if err != nil {
		t.Fatal(err)
	}

	got, ok := cache.GetCache[int, string](m, "users")
	if !ok || got != c {
		t.Fatal("get returned a different cache")
	}
	if _, ok := cache.GetCache[string, string](m, "users"); ok {
		t.Fatal("get with the wrong key type succeeded")
	}
	if _, ok := cache.GetCache[int, string](m, "nope"); ok {
		t.Fatal("get of unknown name succeeded")
	}

	if _, err := cache.CreateCache(m, "users", cache.Config[int, string]{}); !errors.Is(err, cache.ErrCacheExists) {
		t.Fatalf("duplicate create: %v", err)
	}
}

func TestManagerNamesAndStatistics(t *testing.T) {
	ctx := context.Background()
	m := newManager()
	defer m.Close()

	b, _ := cache.CreateCache(m, "b", cache.Config[string, int]{StatisticsEnabled: true})
	cache.CreateCache(m, "a", cache.Config[string, int]{})

	if names := m.CacheNames(); !slices.Equal(names, []string{"a", "b"}) {
		t.Fatalf("unexpected names %v", names)
	}

	b.Put(ctx, "x", 1)
	b.Get(ctx, "x")
	s, ok := m.Statistics("b")
	if !ok || s.Hits != 1 || s.Puts != 1 {
		t.Fatalf("unexpected statistics %+v %v", s, ok)
	}
	if _, ok := m.Statistics("zzz"); ok {
		t.Fatal("statistics for unknown cache")
	}
}

func TestManagerDestroyCache(t *testing.T) {
	ctx := context.Background()
	m := newManager()
	defer m.Close()

	c, _ := cache.CreateCache(m, "tmp", cache.Config[string, string]{})
	c.Put(ctx, "k", "v")

	if !m.DestroyCache("tmp") {
		t.Fatal("destroy reported missing cache")
	}
	if m.DestroyCache("tmp") {
		t.Fatal("second destroy succeeded")
	}
	if err := c.Put(ctx, "k", "v"); !errors.Is(err, cache.ErrClosed) {
		t.Fatalf("destroyed cache still usable: %v", err)
	}

	// the name is free again
	if _, err := cache.CreateCache(m, "tmp", cache.Config[string, string]{}); err != nil {
		t.Fatalf("recreate failed: %v", err)
	}
}

func TestCacheCloseLeavesManager(t *testing.T) {
	m := newManager()
	defer m.Close()

	c, _ := cache.CreateCache(m, "gone", cache.Config[string, string]{})
	c.Close()

	if len(m.CacheNames()) != 0 {
		t.Fatal("closed cache still registered")
	}
}

func TestManagerClose(t *testing.T) {
	m := newManager()
	c, _ := cache.CreateCache(m, "c", cache.Config[string, string]{})
	m.Close()

	if _, _, err := c.Get(context.Background(), "k"); !errors.Is(err, cache.ErrClosed) {
		t.Fatalf("cache survived manager close: %v", err)
	}
	if _, err := cache.CreateCache(m, "d", cache.Config[string, string]{}); !errors.Is(err, cache.ErrClosed) {
		t.Fatalf("create on closed manager: %v", err)
	}
}
