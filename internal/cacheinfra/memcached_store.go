package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/cespare/xxhash/v2"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-remote-cache/cache"
)

// maxKeyLength is the memcached protocol limit for keys.
const maxKeyLength = 250

// maxRelativeExpiration is the largest expiration memcached reads as seconds
// from now. Larger values are absolute Unix timestamps.
const maxRelativeExpiration = 30 * 24 * 60 * 60

var _ cache.Store = (*MemcachedStore)(nil)

// MemcachedConfig configures a MemcachedStore.
type MemcachedConfig struct {
	// Servers lists memcached addresses, e.g. "localhost:11211".
	Servers []string

	// KeyPrefix is prepended to every key.
	KeyPrefix string

	// DefaultTTL applies when a write carries no expires_in option.
	// Zero means entries never expire.
	DefaultTTL time.Duration

	// Timeout is the socket read/write timeout. Zero keeps the client default.
	Timeout time.Duration

	// MaxIdleConns is the maximum idle connections per server. Zero keeps the client default.
	MaxIdleConns int
}

// Validate checks whether the configuration values are valid.
func (c MemcachedConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Servers, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.KeyPrefix, validation.Length(0, 64)),
		validation.Field(&c.DefaultTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
	)
}

// memcacheClient is the subset of *memcache.Client the store uses.
type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

// MemcachedStore is a cache.Store over memcached. Values are encoded with
// msgpack, so reads return generic msgpack types; use cache.As to get typed
// values back.
type MemcachedStore struct {
	client     memcacheClient
	prefix     string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemcachedStore validates cfg and builds a memcached client.
func NewMemcachedStore(cfg MemcachedConfig) (*MemcachedStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cacheinfra: invalid memcached config: %w", err)
	}

	client := memcache.New(cfg.Servers...)
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		client.MaxIdleConns = cfg.MaxIdleConns
	}

	return newMemcachedStore(client, cfg), nil
}

func newMemcachedStore(client memcacheClient, cfg MemcachedConfig) *MemcachedStore {
	return &MemcachedStore{
		client:     client,
		prefix:     cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
}

// Read returns the decoded value for key.
func (s *MemcachedStore) Read(_ context.Context, key string) (any, bool, error) {
	item, err := s.client.Get(s.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	v, err := decode(item.Value)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Write encodes and stores value. The expires_in option overrides DefaultTTL.
func (s *MemcachedStore) Write(_ context.Context, key string, value any, opts cache.Options) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("cacheinfra: encode %q: %w", key, err)
	}

	return s.client.Set(&memcache.Item{
		Key:        s.key(key),
		Value:      data,
		Expiration: s.expiration(opts),
	})
}

// Delete removes key. Missing keys are not an error.
func (s *MemcachedStore) Delete(_ context.Context, key string) error {
	err := s.client.Delete(s.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Exist reports whether key is stored.
func (s *MemcachedStore) Exist(_ context.Context, key string) (bool, error) {
	_, err := s.client.Get(s.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Fetch reads key and on a miss stores the result of fn.
func (s *MemcachedStore) Fetch(ctx context.Context, key string, opts cache.Options, fn cache.FetchFn[any]) (any, error) {
	v, ok, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}

	v, err = fn(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Write(ctx, key, v, opts); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *MemcachedStore) expiration(opts cache.Options) int32 {
	ttl := s.defaultTTL
	if d, ok := opts.Duration(cache.OptionExpiresIn); ok {
		ttl = d
	}
	if ttl <= 0 {
		return 0
	}

	seconds := int64(ttl / time.Second)
	if seconds == 0 {
		return 1
	}
	if seconds <= maxRelativeExpiration {
		return int32(seconds)
	}

	at := s.now().Unix() + seconds
	if at > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(at)
}

// key applies the prefix and hashes keys memcached would reject.
func (s *MemcachedStore) key(key string) string {
	full := s.prefix + key
	if len(full) <= maxKeyLength && legalKey(full) {
		return full
	}
	return s.prefix + "xxh:" + strconv.FormatUint(xxhash.Sum64String(key), 16)
}

func legalKey(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}

func decode(data []byte) (any, error) {
	var v any
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("cacheinfra: decode: %w", err)
	}
	return v, nil
}
