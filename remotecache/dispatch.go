package remotecache

import (
	"context"

	"github.com/goliatone/go-remote-cache/cache"
)

// resolve finds the canonical accessor of kind for the attribute names in
// attrs and returns the values in sorted name order.
func (f *Finders[T]) resolve(kind AccessorKind, attrs Attributes) (*accessor[T], []any, error) {
	names := attrs.Names()
	name := accessorName(kind, names)

	a, ok := f.accessors.Load(name)
	if !ok || len(names) == 0 {
		return nil, nil, NewFinderNotRegistered(f.name, name, names)
	}

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = attrs[n]
	}
	return a, args, nil
}

// CachedFind looks up a single record by attrs, in any order.
//
//	user, err := users.CachedFind(ctx, remotecache.Attributes{"client_guid": c, "user_guid": u}, nil, nil)
func (f *Finders[T]) CachedFind(ctx context.Context, attrs Attributes, opts cache.Options, fetch cache.FetchFn[T]) (T, error) {
	return f.dispatchFind(ctx, KindFind, attrs, opts, fetch)
}

// CachedFindStrict is CachedFind returning a record-not-found error when nothing matches.
func (f *Finders[T]) CachedFindStrict(ctx context.Context, attrs Attributes, opts cache.Options, fetch cache.FetchFn[T]) (T, error) {
	return f.dispatchFind(ctx, KindFindStrict, attrs, opts, fetch)
}

func (f *Finders[T]) dispatchFind(ctx context.Context, kind AccessorKind, attrs Attributes, opts cache.Options, fetch cache.FetchFn[T]) (T, error) {
	a, args, err := f.resolve(kind, attrs)
	if err != nil {
		var zero T
		return zero, err
	}
	return a.find(ctx, args, opts, fetch)
}

// CachedSearch looks up every record matching attrs.
func (f *Finders[T]) CachedSearch(ctx context.Context, attrs Attributes, opts cache.Options, fetch cache.FetchFn[[]T]) ([]T, error) {
	return f.dispatchSearch(ctx, KindSearch, attrs, opts, fetch)
}

// CachedSearchStrict is CachedSearch returning a record-not-found error for an empty result.
func (f *Finders[T]) CachedSearchStrict(ctx context.Context, attrs Attributes, opts cache.Options, fetch cache.FetchFn[[]T]) ([]T, error) {
	return f.dispatchSearch(ctx, KindSearchStrict, attrs, opts, fetch)
}

func (f *Finders[T]) dispatchSearch(ctx context.Context, kind AccessorKind, attrs Attributes, opts cache.Options, fetch cache.FetchFn[[]T]) ([]T, error) {
	a, args, err := f.resolve(kind, attrs)
	if err != nil {
		return nil, err
	}
	return a.search(ctx, args, opts, fetch)
}

// CachedExistFind reports whether a find result for attrs is cached.
func (f *Finders[T]) CachedExistFind(ctx context.Context, attrs Attributes, opts cache.Options) (bool, error) {
	return f.dispatchExist(ctx, KindExistFind, attrs, opts)
}

// CachedExistSearch reports whether a search result for attrs is cached.
func (f *Finders[T]) CachedExistSearch(ctx context.Context, attrs Attributes, opts cache.Options) (bool, error) {
	return f.dispatchExist(ctx, KindExistSearch, attrs, opts)
}

func (f *Finders[T]) dispatchExist(ctx context.Context, kind AccessorKind, attrs Attributes, opts cache.Options) (bool, error) {
	a, args, err := f.resolve(kind, attrs)
	if err != nil {
		return false, err
	}
	return a.exist(ctx, args, opts)
}

// CachedDelete removes the cached find and search results for attrs.
func (f *Finders[T]) CachedDelete(ctx context.Context, attrs Attributes, opts cache.Options) error {
	a, args, err := f.resolve(KindDelete, attrs)
	if err != nil {
		return err
	}
	return a.del(ctx, args, opts)
}
