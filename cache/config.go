package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// MemoryConfig holds the configuration for the sturdyc backed MemoryStore.
type MemoryConfig struct {
	// Capacity defines the maximum number of entries that the cache can store.
	Capacity int `mapstructure:"capacity"`

	// NumShards determines the number of cache shards for concurrent access.
	NumShards int `mapstructure:"num_shards"`

	// TTL is the time-to-live for every entry. sturdyc has no per-entry TTL,
	// so the expires_in option does not change it.
	TTL time.Duration `mapstructure:"ttl"`

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int `mapstructure:"eviction_percentage"`

	// EarlyRefresh configures early refresh behavior. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig `mapstructure:"early_refresh"`

	// MissingRecordStorage enables storage for missing record flags.
	MissingRecordStorage bool `mapstructure:"missing_record_storage"`

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `mapstructure:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `mapstructure:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `mapstructure:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
}

// DefaultMemoryConfig returns a MemoryConfig suited to a per-process nested tier.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks whether the configuration values are valid.
func (c MemoryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.EarlyRefresh),
	)
}

// Validate checks that every refresh duration is non-negative.
func (c EarlyRefreshConfig) Validate() error {
	nonNegative := validation.Min(time.Duration(0))
	return validation.ValidateStruct(&c,
		validation.Field(&c.MinAsyncRefreshTime, nonNegative),
		validation.Field(&c.MaxAsyncRefreshTime, nonNegative),
		validation.Field(&c.SyncRefreshTime, nonNegative),
		validation.Field(&c.RetryBaseDelay, nonNegative),
	)
}

// sturdycOptions maps the optional settings to sturdyc options. Capacity,
// NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c MemoryConfig) sturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}
