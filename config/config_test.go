package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	cache "github.com/krisalay/cache-facade"
	"github.com/krisalay/cache-facade/config"
	"github.com/krisalay/cache-facade/expiration"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "jcache.yaml", `
caches:
  - name: weather
    read_through: true
    statistics: true
    load_timeout: 2s
    expiry:
      created: 60s
  - name: books
    write_through: true
    shards: 4
`)

	f, err := config.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(f.Caches) != 2 {
		t.Fatalf("expected 2 caches, got %d", len(f.Caches))
	}

	w, ok := f.Cache("weather")
	if !ok || !w.ReadThrough || !w.Statistics || w.LoadTimeout != 2*time.Second {
		t.Fatalf("unexpected weather spec %+v", w)
	}
	if p, ok := w.Expiry.Policy().(expiration.AfterCreate); !ok || p.TTL != time.Minute {
		t.Fatalf("unexpected policy %v", w.Expiry.Policy())
	}

	b, _ := f.Cache("books")
	if _, ok := b.Expiry.Policy().(expiration.Eternal); !ok || b.Shards != 4 {
		t.Fatalf("unexpected books spec %+v", b)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "jcache.json", `{"caches":[{"name":"sessions","expiry":{"accessed":"5m"}}]}`)

	f, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := f.Cache("sessions")
	if p, ok := s.Expiry.Policy().(expiration.AfterAccess); !ok || p.TTL != 5*time.Minute {
		t.Fatalf("unexpected policy %v", s.Expiry.Policy())
	}
}

func TestConflictingExpiry(t *testing.T) {
	path := writeFile(t, "bad.yaml", `
caches:
  - name: confused
    expiry:
      created: 1m
      accessed: 1m
`)

	_, err := config.Load(path)
	var ce *cache.ConfigurationError
	if !errors.As(err, &ce) || ce.Cache != "confused" || ce.Field != "Expiry" {
		t.Fatalf("expected expiry configuration error, got %v", err)
	}
}

func TestValidationErrors(t *testing.T) {
	cases := map[string]string{
		"missing name": "caches:\n  - read_through: true\n",
		"duplicate":    "caches:\n  - name: a\n  - name: a\n",
		"negative":     "caches:\n  - name: a\n    shards: -1\n",
	}
	for name, body := range cases {
		_, err := config.Load(writeFile(t, "c.yaml", body))
		var ce *cache.ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApply(t *testing.T) {
	spec := config.CacheSpec{
		Name:        "x",
		ReadThrough: true,
		Statistics:  true,
		Shards:      2,
		Expiry:      config.ExpirySpec{Touched: time.Second},
	}
	cfg := config.Apply(spec, cache.Config[string, int]{Shards: 8})

	if !cfg.ReadThrough || !cfg.StatisticsEnabled || cfg.Shards != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, ok := cfg.Expiry.(expiration.AfterTouch); !ok {
		t.Fatalf("unexpected expiry %v", cfg.Expiry)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("JCACHE_LOG_LEVEL", "debug")
	t.Setenv("JCACHE_SHARDS", "32")

	e, err := config.FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if e.LogLevel != "debug" || e.Shards != 32 || e.MetricsAddr != ":9090" {
		t.Fatalf("unexpected env %+v", e)
	}

	t.Setenv("JCACHE_SHARDS", "many")
	if _, err := config.FromEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}
