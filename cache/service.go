package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalidResultType is returned when a cached value cannot be viewed as the requested type.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// FetchFn is the function signature the cache expects when computing a value on a miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Reader returns the value stored under key. found is false on a miss.
type Reader interface {
	Read(ctx context.Context, key string) (value any, found bool, err error)
}

// Writer stores value under key. Options are passed through to the store verbatim.
type Writer interface {
	Write(ctx context.Context, key string, value any, opts Options) error
}

// Deleter removes key. Deleting a missing key is not an error.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// ExistChecker reports whether key is present.
type ExistChecker interface {
	Exist(ctx context.Context, key string) (bool, error)
}

// Fetcher returns the value under key, or calls fn, stores and returns its result on a miss.
type Fetcher interface {
	Fetch(ctx context.Context, key string, opts Options, fn FetchFn[any]) (any, error)
}

// Store is the key-value contract a backing store must satisfy to be wrapped by Cache.
type Store interface {
	Reader
	Writer
	Deleter
	ExistChecker
	Fetcher
}

// As returns v viewed as T.
//
// Values that went through a serializing backend come back as generic msgpack
// types (maps, slices of any); those are converted with a msgpack round-trip.
func As[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Struct, reflect.Ptr:
	default:
		return zero, fmt.Errorf("%w: got %T, want %T", ErrInvalidResultType, v, zero)
	}

	data, err := msgpack.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidResultType, err)
	}
	var out T
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrInvalidResultType, v, zero)
	}
	return out, nil
}
