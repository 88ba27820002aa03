package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-remote-cache/cache"
	"github.com/goliatone/go-remote-cache/pkg/testsupport"
)

type readOp struct{}

func (readOp) Read(context.Context, string) (any, bool, error) { return nil, false, nil }

type writeOp struct{}

func (writeOp) Write(context.Context, string, any, cache.Options) error { return nil }

type deleteOp struct{}

func (deleteOp) Delete(context.Context, string) error { return nil }

type existOp struct{}

func (existOp) Exist(context.Context, string) (bool, error) { return false, nil }

type fetchOp struct{}

func (fetchOp) Fetch(ctx context.Context, _ string, _ cache.Options, fn cache.FetchFn[any]) (any, error) {
	return fn(ctx)
}

func TestNew_ValidatesCapabilities(t *testing.T) {
	tests := []struct {
		name     string
		provider any
		missing  string
	}{
		{
			name: "missing delete",
			provider: struct {
				readOp
				writeOp
				existOp
				fetchOp
			}{},
			missing: "Delete",
		},
		{
			name: "missing exist",
			provider: struct {
				readOp
				writeOp
				deleteOp
				fetchOp
			}{},
			missing: "Exist",
		},
		{
			name: "missing fetch",
			provider: struct {
				readOp
				writeOp
				deleteOp
				existOp
			}{},
			missing: "Fetch",
		},
		{
			name: "missing read",
			provider: struct {
				writeOp
				deleteOp
				existOp
				fetchOp
			}{},
			missing: "Read",
		},
		{
			name: "missing write",
			provider: struct {
				readOp
				deleteOp
				existOp
				fetchOp
			}{},
			missing: "Write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := cache.New(tt.provider)
			require.Error(t, err)
			assert.Nil(t, c)

			var configErr *cache.ConfigError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, "provider", configErr.Field)
			assert.Contains(t, configErr.Message, "must respond to "+tt.missing)
		})
	}
}

func TestNew_RejectsNilProvider(t *testing.T) {
	_, err := cache.New(nil)

	var configErr *cache.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "cannot be nil", configErr.Message)
}

func TestNew_AcceptsCompleteProvider(t *testing.T) {
	store := testsupport.NewHashStore()

	c, err := cache.New(store)
	require.NoError(t, err)
	assert.Same(t, store, c.Provider())
	assert.False(t, c.NestedCachingEnabled())
}

func newCache(t *testing.T, opts ...cache.Option) (*cache.Cache, *testsupport.HashStore) {
	t.Helper()
	store := testsupport.NewHashStore()
	c, err := cache.New(store, opts...)
	require.NoError(t, err)
	return c, store
}

func TestCache_FetchComputesOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)

	calls := 0
	compute := func(ctx context.Context) (any, error) {
		calls++
		return "computed", nil
	}

	v, err := c.Fetch(ctx, "k", nil, compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)

	ok, err := c.Exist(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = c.Fetch(ctx, "k", nil, compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)
	assert.Equal(t, 1, calls)
}

func TestCache_FetchPassesOptionsToProvider(t *testing.T) {
	ctx := context.Background()
	c, store := newCache(t)

	_, err := c.Fetch(ctx, "k", cache.Options{cache.OptionExpiresIn: 100}, func(ctx context.Context) (any, error) {
		return "v", nil
	})
	require.NoError(t, err)

	fetches := store.Fetches()
	require.Len(t, fetches, 1)
	assert.Equal(t, "k", fetches[0].Key)
	assert.Equal(t, cache.Options{cache.OptionExpiresIn: 100}, fetches[0].Options)
}

func TestCache_FetchValidityGate(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		opts    cache.Options
		persist bool
	}{
		{name: "nil not persisted", value: nil, persist: false},
		{name: "nil persisted with allow_nil", value: nil, opts: cache.Options{cache.OptionAllowNil: true}, persist: true},
		{name: "typed nil pointer not persisted", value: (*testsupport.HashStore)(nil), persist: false},
		{name: "empty slice not persisted", value: []string{}, persist: false},
		{name: "empty slice persisted with allow_empty", value: []string{}, opts: cache.Options{cache.OptionAllowEmpty: true}, persist: true},
		{name: "nil slice not persisted", value: []string(nil), persist: false},
		{name: "empty string not persisted", value: "", persist: false},
		{name: "value persisted", value: "derp", persist: true},
		{name: "non-empty slice persisted", value: []string{"a"}, persist: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, store := newCache(t)

			v, err := c.Fetch(ctx, "k", tt.opts, func(ctx context.Context) (any, error) {
				return tt.value, nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)

			ok, err := c.Exist(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, tt.persist, ok)
			assert.Equal(t, tt.persist, store.Has("k"))
		})
	}
}

func TestCache_FetchBlockErrorPropagates(t *testing.T) {
	ctx := context.Background()
	c, store := newCache(t, cache.WithErrorHandling(true))

	boom := errors.New("remote down")
	handled := 0
	c.SetErrorHandling(true, func(context.Context, string, string, error) { handled++ })

	_, err := c.Fetch(ctx, "k", nil, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, handled)
	assert.False(t, store.Has("k"))
}

func TestCache_FetchRequiresFunction(t *testing.T) {
	c, _ := newCache(t)

	_, err := c.Fetch(context.Background(), "k", nil, nil)

	var configErr *cache.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "fn", configErr.Field)
}

func TestCache_ReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	c, store := newCache(t)

	_, ok, err := c.Read(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Write(ctx, "k", "v", nil))
	v, ok, err := c.Read(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, store.Has("k"))
}

func TestCache_NestedTier(t *testing.T) {
	ctx := context.Background()
	c, store := newCache(t)

	require.NoError(t, c.EnableNestedCaching())
	require.NoError(t, c.EnableNestedCaching())
	assert.True(t, c.NestedCachingEnabled())

	calls := 0
	compute := func(ctx context.Context) (any, error) {
		calls++
		return "nested", nil
	}

	_, err := c.Fetch(ctx, "k", nil, compute)
	require.NoError(t, err)
	fetchesAfterFirst := store.CallCount(cache.OpFetch)

	v, err := c.Fetch(ctx, "k", nil, compute)
	require.NoError(t, err)
	assert.Equal(t, "nested", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, fetchesAfterFirst, store.CallCount(cache.OpFetch), "nested hit should not reach the backing store")

	// Value survives in the nested tier after the backing store loses it.
	store.FailOn(cache.OpRead, nil)
	require.NoError(t, store.Delete(ctx, "k"))
	v, ok, err := c.Read(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "nested", v)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err = c.Exist(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_WithNestedCachingOption(t *testing.T) {
	c, _ := newCache(t, cache.WithNestedCaching(), cache.WithNestedStore(func() (cache.Store, error) {
		return testsupport.NewHashStore(), nil
	}))
	assert.True(t, c.NestedCachingEnabled())
}

func TestCache_DeleteErrorDegradation(t *testing.T) {
	boom := errors.New("backend unavailable")

	t.Run("handled", func(t *testing.T) {
		var got []error
		c, store := newCache(t,
			cache.WithErrorHandling(true),
			cache.WithErrorHandler(func(_ context.Context, op, key string, err error) {
				assert.Equal(t, cache.OpDelete, op)
				assert.Equal(t, "k", key)
				got = append(got, err)
			}),
		)
		store.FailOn(cache.OpDelete, boom)

		err := c.Delete(context.Background(), "k")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.ErrorIs(t, got[0], boom)
	})

	t.Run("fatal", func(t *testing.T) {
		invoked := 0
		c, store := newCache(t,
			cache.WithErrorHandling(false),
			cache.WithErrorHandler(func(context.Context, string, string, error) { invoked++ }),
		)
		store.FailOn(cache.OpDelete, boom)

		err := c.Delete(context.Background(), "k")
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, invoked)
	})
}

func TestCache_HandledErrorsDegradeToDefaults(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upstream failure")
	c, store := newCache(t, cache.WithErrorHandling(true))
	for _, op := range []string{cache.OpRead, cache.OpWrite, cache.OpExist, cache.OpFetch, cache.OpDelete} {
		store.FailOn(op, boom)
	}

	ok, err := c.Exist(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	v, found, err := c.Read(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)

	require.NoError(t, c.Write(ctx, "k", "v", nil))

	calls := 0
	v, err = c.Fetch(ctx, "k", nil, func(ctx context.Context) (any, error) {
		calls++
		return "passthrough", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "passthrough", v)
	assert.Equal(t, 1, calls)
}

func TestCache_UnhandledErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upstream failure")
	c, store := newCache(t)
	for _, op := range []string{cache.OpRead, cache.OpWrite, cache.OpExist, cache.OpFetch} {
		store.FailOn(op, boom)
	}

	_, err := c.Exist(ctx, "k")
	assert.ErrorIs(t, err, boom)

	_, _, err = c.Read(ctx, "k")
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, c.Write(ctx, "k", "v", nil), boom)

	_, err = c.Fetch(ctx, "k", nil, func(ctx context.Context) (any, error) {
		t.Fatal("fetch function should not run when the backing store fails")
		return nil, nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestValid(t *testing.T) {
	assert.False(t, cache.Valid(nil, nil))
	assert.True(t, cache.Valid(nil, cache.Options{cache.OptionAllowNil: true}))
	assert.False(t, cache.Valid(map[string]int{}, nil))
	assert.True(t, cache.Valid(map[string]int{}, cache.Options{cache.OptionAllowEmpty: true}))
	assert.True(t, cache.Valid(0, nil))
	assert.True(t, cache.Valid(false, nil))
}

// writeFailingStore computes through fn and then fails to persist, like a
// remote store whose set times out.
type writeFailingStore struct {
	*testsupport.HashStore
	err error
}

func (s writeFailingStore) Fetch(ctx context.Context, _ string, _ cache.Options, fn cache.FetchFn[any]) (any, error) {
	if _, err := fn(ctx); err != nil {
		return nil, err
	}
	return nil, s.err
}

func TestCache_FetchHandledErrorAfterBlockRan(t *testing.T) {
	ctx := context.Background()
	store := writeFailingStore{HashStore: testsupport.NewHashStore(), err: errors.New("set timeout")}

	var handled []string
	c, err := cache.New(store,
		cache.WithErrorHandling(true),
		cache.WithErrorHandler(func(_ context.Context, op, _ string, _ error) {
			handled = append(handled, op)
		}),
	)
	require.NoError(t, err)

	calls := 0
	v, err := c.Fetch(ctx, "k", nil, func(context.Context) (any, error) {
		calls++
		return "remote", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "remote", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{cache.OpFetch}, handled)
}

func TestCache_FetchNestedReadError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("nested read failed")
	nestedWith := func() cache.Option {
		return cache.WithNestedStore(func() (cache.Store, error) {
			nested := testsupport.NewHashStore()
			nested.FailOn(cache.OpRead, boom)
			return nested, nil
		})
	}

	t.Run("handled", func(t *testing.T) {
		var handled []string
		c, store := newCache(t,
			nestedWith(),
			cache.WithNestedCaching(),
			cache.WithErrorHandling(true),
			cache.WithErrorHandler(func(_ context.Context, op, _ string, _ error) {
				handled = append(handled, op)
			}),
		)

		v, err := c.Fetch(ctx, "k", nil, func(context.Context) (any, error) { return "computed", nil })
		require.NoError(t, err)
		assert.Equal(t, "computed", v)
		assert.Equal(t, []string{cache.OpRead}, handled)
		assert.True(t, store.Has("k"))
	})

	t.Run("fatal", func(t *testing.T) {
		c, store := newCache(t, nestedWith(), cache.WithNestedCaching())

		_, err := c.Fetch(ctx, "k", nil, func(context.Context) (any, error) {
			t.Fatal("fetch function should not run when the nested tier fails")
			return nil, nil
		})
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, store.CallCount(cache.OpFetch))
	})
}

func TestCache_OverMemoryStore(t *testing.T) {
	ctx := context.Background()
	newMemoryCache := func(t *testing.T, opts ...cache.Option) *cache.Cache {
		t.Helper()
		store, err := cache.NewMemoryStore(cache.DefaultMemoryConfig())
		require.NoError(t, err)
		c, err := cache.New(store, opts...)
		require.NoError(t, err)
		return c
	}

	t.Run("nil result is returned and not kept", func(t *testing.T) {
		c := newMemoryCache(t)

		v, err := c.Fetch(ctx, "missing", nil, func(context.Context) (any, error) { return nil, nil })
		require.NoError(t, err)
		assert.Nil(t, v)

		ok, err := c.Exist(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("nil result kept with allow_nil", func(t *testing.T) {
		c := newMemoryCache(t)
		opts := cache.Options{cache.OptionAllowNil: true}

		_, err := c.Fetch(ctx, "nil", opts, func(context.Context) (any, error) { return nil, nil })
		require.NoError(t, err)

		v, err := c.Fetch(ctx, "nil", opts, func(context.Context) (any, error) {
			t.Fatal("stored nil should be a hit")
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("block error is returned unchanged and never handled", func(t *testing.T) {
		handled := 0
		c := newMemoryCache(t,
			cache.WithErrorHandling(true),
			cache.WithErrorHandler(func(context.Context, string, string, error) { handled++ }),
		)
		boom := errors.New("remote unavailable")

		calls := 0
		_, err := c.Fetch(ctx, "k", nil, func(context.Context) (any, error) {
			calls++
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
		assert.Zero(t, handled)
	})
}
