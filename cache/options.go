package cache

import (
	"time"
)

// Option names recognised by the cache and the generated accessors.
// Any other entry is passed through to the backing store untouched.
const (
	OptionNamespace         = "namespace"
	OptionAllowNil          = "allow_nil"
	OptionAllowEmpty        = "allow_empty"
	OptionExpiresIn         = "expires_in"
	OptionRaceConditionTTL  = "race_condition_ttl"
	OptionRemoveCharacters  = "remove_characters"
	OptionReplaceCharacters = "replace_characters"
)

// Options is a loosely typed option bag. It is layered (global defaults, finder
// options, call options) with MergeOptions.
type Options map[string]any

// MergeOptions returns a new Options holding every layer, later layers winning.
func MergeOptions(layers ...Options) Options {
	size := 0
	for _, l := range layers {
		size += len(l)
	}
	out := make(Options, size)
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// Clone returns a shallow copy. A nil receiver yields an empty, non-nil map.
func (o Options) Clone() Options {
	return MergeOptions(o)
}

// Without returns a copy with keys removed.
func (o Options) Without(keys ...string) Options {
	out := o.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Bool reports the value of a boolean option. Missing or non-bool entries are false.
func (o Options) Bool(key string) bool {
	v, ok := o[key].(bool)
	return ok && v
}

// String returns the option rendered as a string, or "" when absent.
func (o Options) String(key string) string {
	switch v := o[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case interface{ String() string }:
		return v.String()
	default:
		return ""
	}
}

// Duration returns a duration option. Integers are read as seconds, strings are
// parsed with time.ParseDuration.
func (o Options) Duration(key string) (time.Duration, bool) {
	switch v := o[key].(type) {
	case time.Duration:
		return v, true
	case int:
		return time.Duration(v) * time.Second, true
	case int64:
		return time.Duration(v) * time.Second, true
	case float64:
		return time.Duration(v * float64(time.Second)), true
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		return d, true
	default:
		return 0, false
	}
}
