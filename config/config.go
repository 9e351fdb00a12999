// Package config reads cache definitions from files and the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	cache "github.com/krisalay/cache-facade"
	"github.com/krisalay/cache-facade/expiration"
)

// Env is the process-level configuration.
type Env struct {
	ConfigPath  string `env:"JCACHE_CONFIG"`
	LogLevel    string `env:"JCACHE_LOG_LEVEL" envDefault:"info"`
	Shards      int    `env:"JCACHE_SHARDS" envDefault:"16"`
	MetricsAddr string `env:"JCACHE_METRICS_ADDR" envDefault:":9090"`
}

func FromEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("config: environment: %w", err)
	}
	return e, nil
}

// ExpirySpec holds at most one non-zero duration.
type ExpirySpec struct {
	Created  time.Duration `mapstructure:"created" validate:"gte=0"`
	Accessed time.Duration `mapstructure:"accessed" validate:"gte=0"`
	Modified time.Duration `mapstructure:"modified" validate:"gte=0"`
	Touched  time.Duration `mapstructure:"touched" validate:"gte=0"`
}

// Policy returns the expiry policy the spec describes, Eternal when nothing is set.
func (e ExpirySpec) Policy() expiration.Policy {
	switch {
	case e.Created > 0:
		return expiration.AfterCreate{TTL: e.Created}
	case e.Accessed > 0:
		return expiration.AfterAccess{TTL: e.Accessed}
	case e.Modified > 0:
		return expiration.AfterUpdate{TTL: e.Modified}
	case e.Touched > 0:
		return expiration.AfterTouch{TTL: e.Touched}
	default:
		return expiration.Eternal{}
	}
}

func (e ExpirySpec) kinds() int {
	n := 0
	for _, d := range []time.Duration{e.Created, e.Accessed, e.Modified, e.Touched} {
		if d > 0 {
			n++
		}
	}
	return n
}

// CacheSpec is one cache as written in a config file.
type CacheSpec struct {
	Name         string        `mapstructure:"name" validate:"required"`
	ReadThrough  bool          `mapstructure:"read_through"`
	WriteThrough bool          `mapstructure:"write_through"`
	Statistics   bool          `mapstructure:"statistics"`
	Shards       int           `mapstructure:"shards" validate:"gte=0"`
	LoadTimeout  time.Duration `mapstructure:"load_timeout" validate:"gte=0"`
	Expiry       ExpirySpec    `mapstructure:"expiry"`
}

// File is the whole config file.
type File struct {
	Caches []CacheSpec `mapstructure:"caches" validate:"unique=Name,dive"`
}

// Cache returns the spec named name.
func (f *File) Cache(name string) (CacheSpec, bool) {
	for _, s := range f.Caches {
		if s.Name == name {
			return s, true
		}
	}
	return CacheSpec{}, false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

/*
Load reads a YAML, TOML or JSON file (by extension) and validates it.
Invalid values come back as *cache.ConfigurationError.

	caches:
	  - name: weather
	    read_through: true
	    statistics: true
	    expiry:
	      created: 60s
*/
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks field constraints, unique names and that each cache sets at most one expiry kind.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			fe := ves[0]
			return &cache.ConfigurationError{
				Cache:  cacheName(f, fe.Namespace()),
				Field:  fe.Namespace(),
				Reason: fmt.Sprintf("failed %q rule", fe.Tag()),
			}
		}
		return fmt.Errorf("config: %w", err)
	}

	for _, s := range f.Caches {
		if s.Expiry.kinds() > 1 {
			return &cache.ConfigurationError{Cache: s.Name, Field: "Expiry", Reason: "more than one expiry kind set"}
		}
	}
	return nil
}

// cacheName finds the cache a validator namespace like "File.Caches[2].Shards" points into.
func cacheName(f *File, ns string) string {
	var i int
	if _, err := fmt.Sscanf(ns, "File.Caches[%d]", &i); err == nil && i < len(f.Caches) {
		return f.Caches[i].Name
	}
	return ""
}

// Apply copies the settings of spec into cfg. Loader, Writer and listeners are code and stay as given.
func Apply[K comparable, V any](spec CacheSpec, cfg cache.Config[K, V]) cache.Config[K, V] {
	cfg.ReadThrough = spec.ReadThrough
	cfg.WriteThrough = spec.WriteThrough
	cfg.StatisticsEnabled = spec.Statistics
	cfg.Expiry = spec.Expiry.Policy()
	if spec.Shards > 0 {
		cfg.Shards = spec.Shards
	}
	if spec.LoadTimeout > 0 {
		cfg.LoadTimeout = spec.LoadTimeout
	}
	return cfg
}
