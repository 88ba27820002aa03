package cache

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

// Operation names reported to an ErrorHandler.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpDelete = "delete"
	OpExist  = "exist"
	OpFetch  = "fetch"
)

var _ Store = (*Cache)(nil)

// ErrorHandler receives backing store errors when error handling is enabled.
type ErrorHandler func(ctx context.Context, op, key string, err error)

// Option configures a Cache.
type Option func(*Cache)

// WithErrorHandling enables or disables swallowing of backing store errors.
func WithErrorHandling(enabled bool) Option {
	return func(c *Cache) {
		c.handleErrors = enabled
	}
}

// WithErrorHandler sets the callback invoked for handled backing store errors.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *Cache) {
		c.onError = handler
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithNestedStore sets the factory used by EnableNestedCaching.
func WithNestedStore(factory func() (Store, error)) Option {
	return func(c *Cache) {
		if factory != nil {
			c.newNested = factory
		}
	}
}

// WithNestedCaching enables the nested tier at construction.
func WithNestedCaching() Option {
	return func(c *Cache) {
		c.nestedOnInit = true
	}
}

// Cache wraps a backing store with a nested in-process tier and a global
// policy for backing store errors. It satisfies Store itself.
type Cache struct {
	provider Store

	mu            sync.RWMutex
	nested        Store
	nestedEnabled bool
	nestedOnInit  bool
	newNested     func() (Store, error)
	handleErrors  bool
	onError       ErrorHandler

	logger zerolog.Logger
}

// New wraps provider. It fails with a *ConfigError unless provider
// implements Delete, Exist, Fetch, Read and Write.
func New(provider any, opts ...Option) (*Cache, error) {
	store, err := validateProvider(provider)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		provider:  store,
		nested:    NullStore{},
		newNested: defaultNestedStore,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.nestedOnInit {
		if err := c.EnableNestedCaching(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func defaultNestedStore() (Store, error) {
	return NewMemoryStore(DefaultMemoryConfig())
}

func validateProvider(provider any) (Store, error) {
	if provider == nil {
		return nil, &ConfigError{Field: "provider", Message: "cannot be nil"}
	}
	if _, ok := provider.(Deleter); !ok {
		return nil, missingCapability("Delete")
	}
	if _, ok := provider.(ExistChecker); !ok {
		return nil, missingCapability("Exist")
	}
	if _, ok := provider.(Fetcher); !ok {
		return nil, missingCapability("Fetch")
	}
	if _, ok := provider.(Reader); !ok {
		return nil, missingCapability("Read")
	}
	if _, ok := provider.(Writer); !ok {
		return nil, missingCapability("Write")
	}
	return provider.(Store), nil
}

// Provider returns the wrapped backing store.
func (c *Cache) Provider() Store {
	return c.provider
}

// EnableNestedCaching swaps the no-op nested tier for an in-memory store.
// Calling it again is a no-op.
func (c *Cache) EnableNestedCaching() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nestedEnabled {
		return nil
	}

	store, err := c.newNested()
	if err != nil {
		return err
	}
	c.nested = store
	c.nestedEnabled = true
	c.logger.Debug().Msg("nested caching enabled")
	return nil
}

// NestedCachingEnabled reports whether the nested tier is active.
func (c *Cache) NestedCachingEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nestedEnabled
}

// SetErrorHandling changes the global error policy.
func (c *Cache) SetErrorHandling(enabled bool, handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handleErrors = enabled
	c.onError = handler
}

func (c *Cache) nestedStore() Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nested
}

// handle applies the error policy. It returns nil when err was handled.
func (c *Cache) handle(ctx context.Context, op, key string, err error) error {
	c.mu.RLock()
	enabled, handler := c.handleErrors, c.onError
	c.mu.RUnlock()

	if !enabled {
		return err
	}

	c.logger.Warn().Err(err).Str("op", op).Str("key", key).Msg("cache backend error handled")
	if handler != nil {
		handler(ctx, op, key, err)
	}
	return nil
}

// Exist reports whether either tier holds key. Handled errors yield false.
func (c *Cache) Exist(ctx context.Context, key string) (bool, error) {
	ok, err := c.nestedStore().Exist(ctx, key)
	if err != nil {
		return false, c.handle(ctx, OpExist, key, err)
	}
	if ok {
		return true, nil
	}

	ok, err = c.provider.Exist(ctx, key)
	if err != nil {
		return false, c.handle(ctx, OpExist, key, err)
	}
	return ok, nil
}

// Read returns the nested value when present, else the backing store's.
func (c *Cache) Read(ctx context.Context, key string) (any, bool, error) {
	v, ok, err := c.nestedStore().Read(ctx, key)
	if err != nil {
		return nil, false, c.handle(ctx, OpRead, key, err)
	}
	if ok {
		return v, true, nil
	}

	v, ok, err = c.provider.Read(ctx, key)
	if err != nil {
		return nil, false, c.handle(ctx, OpRead, key, err)
	}
	return v, ok, nil
}

// Write stores value in the nested tier and then the backing store.
func (c *Cache) Write(ctx context.Context, key string, value any, opts Options) error {
	if err := c.nestedStore().Write(ctx, key, value, opts); err != nil {
		if herr := c.handle(ctx, OpWrite, key, err); herr != nil {
			return herr
		}
	}
	if err := c.provider.Write(ctx, key, value, opts); err != nil {
		return c.handle(ctx, OpWrite, key, err)
	}
	return nil
}

// Delete removes key from the nested tier and then the backing store.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.nestedStore().Delete(ctx, key); err != nil {
		if herr := c.handle(ctx, OpDelete, key, err); herr != nil {
			return herr
		}
	}
	if err := c.provider.Delete(ctx, key); err != nil {
		return c.handle(ctx, OpDelete, key, err)
	}
	return nil
}

// blockError marks errors returned by the caller's fetch function so they
// are never mistaken for backing store failures.
type blockError struct{ err error }

func (e *blockError) Error() string { return e.err.Error() }
func (e *blockError) Unwrap() error { return e.err }

// Fetch returns the cached value for key, computing it with fn on a miss.
//
// A computed value is kept only when Valid(value, opts). Any invalid final
// value is deleted from both tiers before being returned. Errors from fn are
// returned as is. When a handled backing store error interrupts the fetch,
// the result of fn is returned without caching; fn runs at most once.
func (c *Cache) Fetch(ctx context.Context, key string, opts Options, fn FetchFn[any]) (any, error) {
	if fn == nil {
		return nil, &ConfigError{Field: "fn", Message: "cannot be nil"}
	}

	nested := c.nestedStore()
	v, ok, err := nested.Read(ctx, key)
	if err != nil {
		if herr := c.handle(ctx, OpRead, key, err); herr != nil {
			return nil, herr
		}
	} else if ok {
		c.logger.Debug().Str("key", key).Msg("nested cache hit")
		return v, nil
	}

	var (
		ran      bool
		computed any
	)
	value, err := c.provider.Fetch(ctx, key, opts, func(ctx context.Context) (any, error) {
		c.logger.Debug().Str("key", key).Msg("cache miss")
		ran = true
		v, err := fn(ctx)
		if err != nil {
			return nil, &blockError{err: err}
		}
		computed = v
		return v, nil
	})
	if err != nil {
		var be *blockError
		if errors.As(err, &be) {
			return nil, be.err
		}
		if herr := c.handle(ctx, OpFetch, key, err); herr != nil {
			return nil, herr
		}
		if ran {
			return computed, nil
		}
		return fn(ctx)
	}

	if !Valid(value, opts) {
		c.logger.Debug().Str("key", key).Msg("discarding invalid cache value")
		if err := c.Delete(ctx, key); err != nil {
			return nil, err
		}
		return value, nil
	}

	if err := nested.Write(ctx, key, value, opts); err != nil {
		if herr := c.handle(ctx, OpWrite, key, err); herr != nil {
			return nil, herr
		}
	}
	return value, nil
}

// Valid reports whether value may be persisted: it must be non-nil unless
// allow_nil is set and non-empty unless allow_empty is set.
func Valid(value any, opts Options) bool {
	if isNil(value) && !opts.Bool(OptionAllowNil) {
		return false
	}
	if isEmpty(value) && !opts.Bool(OptionAllowEmpty) {
		return false
	}
	return true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() == 0
	default:
		return false
	}
}
