// Package remotecache generates cached finder accessors for records served by
// a remote or otherwise expensive source.
//
// # Overview
//
// An Entity supplies the two uncached primitives, Find and Search, taking an
// Attributes map. Finders registers attribute sets for that entity and builds
// an accessor table with one family of accessors per ordering of each set:
//
//	cached_find_by_<attrs>            single record
//	cached_find_by_<attrs>!           single record, record-not-found when absent
//	cached_search_by_<attrs>          records
//	cached_search_by_<attrs>!         records, record-not-found when empty
//	cached_exist_find_by_<attrs>      is the find result cached (also "?")
//	cached_exist_search_by_<attrs>    is the search result cached (also "?")
//	cached_delete_by_<attrs>          drop both cached results
//
// where <attrs> joins attribute names with "_and_".
//
// # Basic Usage
//
//	env, err := remotecache.NewEnvironment(c, remotecache.WithDefaultOptions(cache.Options{
//		cache.OptionExpiresIn: 300,
//	}))
//	users, err := remotecache.NewFinders[*User](env, "User", userClient)
//	err = users.Register("guid", []string{"user_guid", "client_guid"})
//
//	user, err := users.CachedFind(ctx, remotecache.Attributes{
//		"client_guid": clientGUID,
//		"user_guid":   userGUID,
//	}, nil, nil)
//
// The dispatcher methods (CachedFind, CachedSearch and friends) accept
// attributes in any order and route to the accessor registered for the sorted
// attribute names. Calling with a set that was never registered returns a
// finder-not-registered error.
//
// # Cache Keys
//
// Keys are built from the environment version tag, the optional namespace
// option, the entity name, the operation ("#find" or "#search") and the
// attribute values encoded by cache.ArgumentKeys in attribute-name order, so
// the same values always map to the same key regardless of call order.
//
// # Options
//
// Environment defaults are merged under the options given at registration,
// which are merged under call options. The namespace option only affects the
// key and is not forwarded to the cache. allow_nil and allow_empty control
// whether nil or empty results are kept. A find returning the zero value of T
// is treated as nil.
//
// # Registration
//
// Registration is idempotent: an accessor name keeps the definition, and the
// finder options, it was first registered with.
package remotecache
