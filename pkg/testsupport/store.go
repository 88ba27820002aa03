package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-remote-cache/cache"
)

var _ cache.Store = (*HashStore)(nil)

// FetchCall records the arguments of a Fetch call.
type FetchCall struct {
	Key     string
	Options cache.Options
}

// HashStore is a map backed cache.Store that records calls and can be told
// to fail individual operations.
type HashStore struct {
	mu      sync.Mutex
	data    map[string]any
	calls   []string
	fetches []FetchCall
	errors  map[string]error
}

// NewHashStore returns an empty HashStore.
func NewHashStore() *HashStore {
	return &HashStore{
		data:   make(map[string]any),
		errors: make(map[string]error),
	}
}

// FailOn makes every call to op (cache.OpRead, cache.OpDelete, ...) return err.
// A nil err clears the failure.
func (s *HashStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errors, op)
		return
	}
	s.errors[op] = err
}

// Seed stores value without recording a call.
func (s *HashStore) Seed(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Has reports whether key is stored, without recording a call.
func (s *HashStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// Keys returns the stored keys.
func (s *HashStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Calls returns the recorded operation names in call order.
func (s *HashStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns how many times op was called.
func (s *HashStore) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Fetches returns the recorded Fetch calls.
func (s *HashStore) Fetches() []FetchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FetchCall(nil), s.fetches...)
}

func (s *HashStore) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
	return s.errors[op]
}

func (s *HashStore) Read(_ context.Context, key string) (any, bool, error) {
	if err := s.record(cache.OpRead); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *HashStore) Write(_ context.Context, key string, value any, _ cache.Options) error {
	if err := s.record(cache.OpWrite); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *HashStore) Delete(_ context.Context, key string) error {
	if err := s.record(cache.OpDelete); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *HashStore) Exist(_ context.Context, key string) (bool, error) {
	if err := s.record(cache.OpExist); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *HashStore) Fetch(ctx context.Context, key string, opts cache.Options, fn cache.FetchFn[any]) (any, error) {
	if err := s.record(cache.OpFetch); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.fetches = append(s.fetches, FetchCall{Key: key, Options: opts.Clone()})
	v, ok := s.data[key]
	s.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
	return v, nil
}
