package remotecache

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-remote-cache/cache"
)

// Version is the library version. It is part of the default key version tag so
// entries written by an older release are not read back by a newer one.
const Version = "0.1.0"

// DefaultVersionTag returns the version segment used when none is configured.
func DefaultVersionTag() string {
	return runtime.Version() + ":" + Version
}

// Environment carries the cache, default options and key version tag shared
// by every Finders bound to it. Changes are visible to all later calls.
type Environment struct {
	mu       sync.RWMutex
	cache    *cache.Cache
	defaults cache.Options
	version  string
	logger   zerolog.Logger
}

// EnvOption configures an Environment.
type EnvOption func(*Environment)

// WithDefaultOptions sets the options merged under finder and call options.
func WithDefaultOptions(opts cache.Options) EnvOption {
	return func(e *Environment) {
		e.defaults = opts.Clone()
	}
}

// WithVersion overrides the key version tag. An empty tag drops the segment.
func WithVersion(version string) EnvOption {
	return func(e *Environment) {
		e.version = version
	}
}

// WithLogger sets the logger handed to finders.
func WithLogger(logger zerolog.Logger) EnvOption {
	return func(e *Environment) {
		e.logger = logger
	}
}

// NewEnvironment builds an Environment around c. A nil cache is replaced by a
// decorator over an in-memory store.
func NewEnvironment(c *cache.Cache, opts ...EnvOption) (*Environment, error) {
	env := &Environment{
		cache:    c,
		defaults: cache.Options{},
		version:  DefaultVersionTag(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(env)
	}

	if env.cache == nil {
		store, err := cache.NewMemoryStore(cache.DefaultMemoryConfig())
		if err != nil {
			return nil, fmt.Errorf("remotecache: default store: %w", err)
		}
		env.cache, err = cache.New(store, cache.WithLogger(env.logger))
		if err != nil {
			return nil, err
		}
	}

	return env, nil
}

func (e *Environment) Cache() *cache.Cache {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cache
}

// SetCache swaps the cache used by every bound finder.
func (e *Environment) SetCache(c *cache.Cache) error {
	if c == nil {
		return errors.New("remotecache: cache cannot be nil")
	}
	e.mu.Lock()
	e.cache = c
	e.mu.Unlock()
	return nil
}

// DefaultOptions returns a copy of the global default options.
func (e *Environment) DefaultOptions() cache.Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defaults.Clone()
}

func (e *Environment) SetDefaultOptions(opts cache.Options) {
	e.mu.Lock()
	e.defaults = opts.Clone()
	e.mu.Unlock()
}

func (e *Environment) Version() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

func (e *Environment) SetVersion(version string) {
	e.mu.Lock()
	e.version = version
	e.mu.Unlock()
}

func (e *Environment) Logger() zerolog.Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}
