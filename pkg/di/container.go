package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-remote-cache/cache"
	"github.com/goliatone/go-remote-cache/internal/cacheinfra"
	"github.com/goliatone/go-remote-cache/remotecache"
)

// Container wires the backing store, the cache decorator and the finder
// environment from a Config.
type Container struct {
	config Config
	logger zerolog.Logger
	store  cache.Store
	cache  *cache.Cache
	env    *remotecache.Environment
}

// ContainerOption configures a Container.
type ContainerOption func(*containerOptions)

type containerOptions struct {
	logger       *zerolog.Logger
	store        cache.Store
	errorHandler cache.ErrorHandler
}

// WithLogger replaces the logger built from the config.
func WithLogger(logger zerolog.Logger) ContainerOption {
	return func(o *containerOptions) {
		o.logger = &logger
	}
}

// WithStore uses store as the backing store instead of the configured backend.
func WithStore(store cache.Store) ContainerOption {
	return func(o *containerOptions) {
		o.store = store
	}
}

// WithErrorHandler is called for backing store errors when HandleErrors is set.
func WithErrorHandler(handler cache.ErrorHandler) ContainerOption {
	return func(o *containerOptions) {
		o.errorHandler = handler
	}
}

// NewContainer validates config and builds every component.
func NewContainer(config Config, opts ...ContainerOption) (*Container, error) {
	o := &containerOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("di: invalid config: %w", err)
	}

	logger := NewLogger(config.LogLevel, config.LogFormat)
	if o.logger != nil {
		logger = *o.logger
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = newStore(config); err != nil {
			return nil, err
		}
	}

	cacheOpts := []cache.Option{
		cache.WithLogger(logger),
		cache.WithErrorHandling(config.HandleErrors),
	}
	if o.errorHandler != nil {
		cacheOpts = append(cacheOpts, cache.WithErrorHandler(o.errorHandler))
	}
	if config.EnableNestedCaching {
		memory := config.Memory
		cacheOpts = append(cacheOpts,
			cache.WithNestedStore(func() (cache.Store, error) {
				return cache.NewMemoryStore(memory)
			}),
			cache.WithNestedCaching(),
		)
	}

	c, err := cache.New(store, cacheOpts...)
	if err != nil {
		return nil, err
	}

	envOpts := []remotecache.EnvOption{
		remotecache.WithDefaultOptions(config.DefaultOptions()),
		remotecache.WithLogger(logger),
	}
	if config.Version != "" {
		envOpts = append(envOpts, remotecache.WithVersion(config.Version))
	}
	env, err := remotecache.NewEnvironment(c, envOpts...)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("backend", config.Backend).
		Bool("nested", config.EnableNestedCaching).
		Bool("handle_errors", config.HandleErrors).
		Msg("remote cache container ready")

	return &Container{
		config: config,
		logger: logger,
		store:  store,
		cache:  c,
		env:    env,
	}, nil
}

// NewContainerWithDefaults builds a container from DefaultConfig.
func NewContainerWithDefaults(opts ...ContainerOption) (*Container, error) {
	return NewContainer(DefaultConfig(), opts...)
}

func newStore(config Config) (cache.Store, error) {
	switch config.Backend {
	case BackendMemcached:
		return cacheinfra.NewMemcachedStore(cacheinfra.MemcachedConfig{
			Servers:    config.MemcachedServers,
			KeyPrefix:  config.KeyPrefix,
			DefaultTTL: config.ExpiresIn,
			Timeout:    config.MemcachedTimeout,
		})
	default:
		return cache.NewMemoryStore(config.Memory)
	}
}

// Config returns the configuration the container was built from.
func (c *Container) Config() Config {
	return c.config
}

func (c *Container) Logger() zerolog.Logger {
	return c.logger
}

// Store returns the backing store.
func (c *Container) Store() cache.Store {
	return c.store
}

// Cache returns the cache decorator.
func (c *Container) Cache() *cache.Cache {
	return c.cache
}

// Environment returns the environment shared by finders built from this container.
func (c *Container) Environment() *remotecache.Environment {
	return c.env
}

// NewFinders binds entity to the container's environment.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewFinders[*User](container, "User", userClient)
func NewFinders[T any](container *Container, name string, entity remotecache.Entity[T]) (*remotecache.Finders[T], error) {
	return remotecache.NewFinders(container.env, name, entity)
}

// NewRepositoryFinders binds a go-repository-bun repository to the container's environment.
func NewRepositoryFinders[T any](container *Container, name string, repo remotecache.RepositoryReader[T], opts ...remotecache.RepositoryOption) (*remotecache.Finders[T], error) {
	return remotecache.NewFinders[T](container.env, name, remotecache.NewRepositoryEntity(repo, opts...))
}
