package di

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/goliatone/go-remote-cache/cache"
)

const (
	BackendMemory    = "memory"
	BackendMemcached = "memcached"
)

// EnvPrefix is the prefix for environment overrides, e.g. REMOTE_CACHE_BACKEND.
const EnvPrefix = "REMOTE_CACHE"

// Config describes how the container builds the cache and environment.
type Config struct {
	// Backend selects the backing store: "memory" or "memcached".
	Backend string `mapstructure:"backend"`

	// Memory configures the memory backend and the nested tier.
	Memory cache.MemoryConfig `mapstructure:"memory"`

	MemcachedServers []string      `mapstructure:"memcached_servers"`
	MemcachedTimeout time.Duration `mapstructure:"memcached_timeout"`
	KeyPrefix        string        `mapstructure:"key_prefix"`

	// ExpiresIn and RaceConditionTTL become default options for every finder.
	ExpiresIn        time.Duration `mapstructure:"expires_in"`
	RaceConditionTTL time.Duration `mapstructure:"race_condition_ttl"`

	EnableNestedCaching bool   `mapstructure:"enable_nested_caching"`
	HandleErrors        bool   `mapstructure:"handle_errors"`
	Namespace           string `mapstructure:"namespace"`

	// Version overrides the key version tag. Empty keeps the default tag.
	Version string `mapstructure:"version"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultConfig returns an in-memory setup with five minute entries.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendMemory,
		Memory:           cache.DefaultMemoryConfig(),
		MemcachedTimeout: 500 * time.Millisecond,
		ExpiresIn:        5 * time.Minute,
		RaceConditionTTL: 5 * time.Second,
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// Validate checks the configuration. Memcached servers are required only for
// the memcached backend.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendMemcached)),
		validation.Field(&c.Memory),
		validation.Field(&c.MemcachedServers,
			validation.When(c.Backend == BackendMemcached, validation.Required),
			validation.Each(validation.Required),
		),
		validation.Field(&c.MemcachedTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ExpiresIn, validation.Min(time.Duration(0))),
		validation.Field(&c.RaceConditionTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error", "disabled")),
		validation.Field(&c.LogFormat, validation.In("console", "json")),
	)
}

// DefaultOptions returns the cache options every finder starts from.
func (c Config) DefaultOptions() cache.Options {
	opts := cache.Options{}
	if c.ExpiresIn > 0 {
		opts[cache.OptionExpiresIn] = c.ExpiresIn
	}
	if c.RaceConditionTTL > 0 {
		opts[cache.OptionRaceConditionTTL] = c.RaceConditionTTL
	}
	if c.Namespace != "" {
		opts[cache.OptionNamespace] = c.Namespace
	}
	return opts
}

// LoadConfig reads path, when given, and REMOTE_CACHE_* environment
// variables over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config file not found at %s: %w", path, err)
			}
			return Config{}, fmt.Errorf("failed to read config file at %s: %w", path, err)
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	// Comma separated lists arrive from the environment as a single string.
	if len(cfg.MemcachedServers) == 1 && strings.Contains(cfg.MemcachedServers[0], ",") {
		cfg.MemcachedServers = splitList(cfg.MemcachedServers[0])
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("backend", d.Backend)
	v.SetDefault("memory.capacity", d.Memory.Capacity)
	v.SetDefault("memory.num_shards", d.Memory.NumShards)
	v.SetDefault("memory.ttl", d.Memory.TTL)
	v.SetDefault("memory.eviction_percentage", d.Memory.EvictionPercentage)
	v.SetDefault("memory.missing_record_storage", d.Memory.MissingRecordStorage)
	v.SetDefault("memory.eviction_interval", d.Memory.EvictionInterval)
	v.SetDefault("memcached_servers", d.MemcachedServers)
	v.SetDefault("memcached_timeout", d.MemcachedTimeout)
	v.SetDefault("key_prefix", d.KeyPrefix)
	v.SetDefault("expires_in", d.ExpiresIn)
	v.SetDefault("race_condition_ttl", d.RaceConditionTTL)
	v.SetDefault("enable_nested_caching", d.EnableNestedCaching)
	v.SetDefault("handle_errors", d.HandleErrors)
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("version", d.Version)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
