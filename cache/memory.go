package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/viccon/sturdyc"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store backed by a sturdyc client. It is the
// nested tier enabled by Cache.EnableNestedCaching and the default backing
// store when nothing else is configured.
type MemoryStore struct {
	client *sturdyc.Client[any]
}

// NewMemoryStore validates cfg and initializes a sturdyc client with it.
func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cache: invalid memory config: %w", err)
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.sturdycOptions()...,
	)

	return &MemoryStore{client: client}, nil
}

// nilValue stands in for a stored nil. sturdyc cannot hand nil back through
// its typed accessors.
type nilValue struct{}

func box(v any) any {
	if v == nil {
		return nilValue{}
	}
	return v
}

func unbox(v any) any {
	if _, ok := v.(nilValue); ok {
		return nil
	}
	return v
}

// Read returns the stored value for key.
func (s *MemoryStore) Read(_ context.Context, key string) (any, bool, error) {
	v, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	return unbox(v), true, nil
}

// Write stores value under key. opts are ignored, TTL comes from MemoryConfig.
func (s *MemoryStore) Write(_ context.Context, key string, value any, _ Options) error {
	s.client.Set(key, box(value))
	return nil
}

// Delete removes a single entry.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// Exist reports whether key holds a value.
func (s *MemoryStore) Exist(_ context.Context, key string) (bool, error) {
	_, ok := s.client.Get(key)
	return ok, nil
}

// Fetch returns the cached value or stores the result of fn. Errors from fn
// are returned unchanged and nothing is stored.
func (s *MemoryStore) Fetch(ctx context.Context, key string, _ Options, fn FetchFn[any]) (any, error) {
	if v, ok := s.client.Get(key); ok {
		return unbox(v), nil
	}

	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	s.client.Set(key, box(v))
	return v, nil
}

// DeleteByPrefix removes all entries whose key starts with prefix.
func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Keys returns every key currently stored.
func (s *MemoryStore) Keys() []string {
	return s.client.ScanKeys()
}

// Size returns the number of stored entries.
func (s *MemoryStore) Size() int {
	return s.client.Size()
}
