// Package cache provides the caching decorator, key encoding and the stores
// used to cache remote records.
//
// # Overview
//
//   - Store: the five operations a backing store must answer (Read, Write,
//     Delete, Exist, Fetch)
//   - Cache: a decorator over a Store with an optional in-process nested tier
//     and a global error policy
//   - ArgumentKeys and Key: deterministic cache keys built from lookup values
//   - MemoryStore and NullStore: in-process stores, used as the nested tier or
//     as a backing store in tests
//
// # Basic Usage
//
//	c, err := cache.New(store, cache.WithErrorHandling(true))
//	if err != nil {
//		return err
//	}
//
//	v, err := c.Fetch(ctx, key, cache.Options{cache.OptionExpiresIn: 300}, func(ctx context.Context) (any, error) {
//		return client.FetchUser(ctx, guid)
//	})
//
// Any value may be passed as the provider. New checks it for every Store
// operation and returns a *ConfigError naming the first missing one.
//
// # Validity
//
// Fetch only keeps a computed value when it is valid. A nil value needs the
// allow_nil option and an empty string, slice or map needs allow_empty. An
// invalid value is still returned to the caller but is removed from both
// tiers.
//
// # Error Policy
//
// With error handling enabled, backing store failures are passed to the
// ErrorHandler and the operation returns a safe default: false for Exist,
// a miss for Read and nil for Write and Delete. Fetch falls through to the
// fetch function without caching. Errors returned by the fetch function
// itself are never handled and always reach the caller.
//
// # Key Encoding
//
// ArgumentKeys concatenates the string form of each argument. Nil values are
// dropped, slices are flattened, maps are rendered with sorted keys and
// structs with their exported fields. The remove_characters option strips
// whitespace and key-unsafe punctuation; replace_characters swaps each of
// them for a short mnemonic code instead.
//
// Function values are encoded by pointer and are only stable within a single
// process. Do not pass closures as lookup values when the backing store is
// shared between processes.
package cache
