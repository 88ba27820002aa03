package remotecache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-remote-cache/cache"
)

// Attributes maps lookup attribute names to values.
type Attributes map[string]any

// Names returns the attribute names in sorted order.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for k := range a {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Entity is the host record source. Find returns nil when nothing matches,
// so T should be a pointer, map or interface type for absence to be
// distinguishable; Search returns an empty slice.
type Entity[T any] interface {
	Find(ctx context.Context, attrs Attributes) (T, error)
	Search(ctx context.Context, attrs Attributes) ([]T, error)
}

// EntityFuncs adapts a pair of functions to Entity.
type EntityFuncs[T any] struct {
	FindFn   func(ctx context.Context, attrs Attributes) (T, error)
	SearchFn func(ctx context.Context, attrs Attributes) ([]T, error)
}

func (e EntityFuncs[T]) Find(ctx context.Context, attrs Attributes) (T, error) {
	if e.FindFn == nil {
		var zero T
		return zero, errors.New("remotecache: entity has no find function")
	}
	return e.FindFn(ctx, attrs)
}

func (e EntityFuncs[T]) Search(ctx context.Context, attrs Attributes) ([]T, error) {
	if e.SearchFn == nil {
		return nil, errors.New("remotecache: entity has no search function")
	}
	return e.SearchFn(ctx, attrs)
}

// Accessor signatures. args are positional values in the accessor's attribute
// order; opts are call options; a nil fetch falls back to the entity.
type (
	FindFunc[T any]   func(ctx context.Context, args []any, opts cache.Options, fetch cache.FetchFn[T]) (T, error)
	SearchFunc[T any] func(ctx context.Context, args []any, opts cache.Options, fetch cache.FetchFn[[]T]) ([]T, error)
	ExistFunc         func(ctx context.Context, args []any, opts cache.Options) (bool, error)
	DeleteFunc        func(ctx context.Context, args []any, opts cache.Options) error
)

// AccessorInfo describes a registered accessor.
type AccessorInfo struct {
	Name       string
	Kind       AccessorKind
	Attributes []string
	Options    cache.Options
}

type accessor[T any] struct {
	info   AccessorInfo
	find   FindFunc[T]
	search SearchFunc[T]
	exist  ExistFunc
	del    DeleteFunc
}

// Finders holds the accessor table for one entity.
type Finders[T any] struct {
	env       *Environment
	name      string
	entity    Entity[T]
	accessors *xsync.MapOf[string, *accessor[T]]
	keys      *xsync.MapOf[string, struct{}]
	logger    zerolog.Logger
}

// NewFinders binds entity to env. An empty name is derived from T.
func NewFinders[T any](env *Environment, name string, entity Entity[T]) (*Finders[T], error) {
	if env == nil {
		return nil, &ArgumentError{Name: "NewFinders", Message: "environment cannot be nil"}
	}
	if entity == nil {
		return nil, &ArgumentError{Name: "NewFinders", Message: "entity cannot be nil"}
	}
	if name == "" {
		name = EntityName[T]()
	}

	return &Finders[T]{
		env:       env,
		name:      name,
		entity:    entity,
		accessors: xsync.NewMapOf[string, *accessor[T]](),
		keys:      xsync.NewMapOf[string, struct{}](),
		logger:    env.Logger().With().Str("entity", name).Logger(),
	}, nil
}

// Name returns the entity segment used in cache keys.
func (f *Finders[T]) Name() string {
	return f.name
}

// Register declares attribute sets. A string is a set of one attribute, a
// []string is a multi-attribute set and a trailing cache.Options (or
// map[string]any) applies to every set in the call.
//
//	f.Register("guid", []string{"user_guid", "client_guid"}, cache.Options{"expires_in": 60})
func (f *Finders[T]) Register(groups ...any) error {
	var opts cache.Options
	if n := len(groups); n > 0 {
		switch o := groups[n-1].(type) {
		case cache.Options:
			opts = o
			groups = groups[:n-1]
		case map[string]any:
			opts = cache.Options(o)
			groups = groups[:n-1]
		}
	}

	sets := make([][]string, 0, len(groups))
	for i, g := range groups {
		switch v := g.(type) {
		case string:
			sets = append(sets, []string{v})
		case []string:
			sets = append(sets, v)
		default:
			return &ArgumentError{
				Name:    "Register",
				Message: fmt.Sprintf("argument %d has unsupported type %T", i, g),
			}
		}
	}

	for _, set := range sets {
		if err := f.RegisterSet(set, opts); err != nil {
			return err
		}
	}
	return nil
}

// RegisterSet installs the accessor family for every ordering of attrs.
// Names already registered keep their first definition.
func (f *Finders[T]) RegisterSet(attrs []string, opts cache.Options) error {
	sorted := normalizeAttributes(attrs)
	if len(sorted) == 0 {
		return &ArgumentError{Name: "RegisterSet", Message: "attribute set is empty"}
	}

	installed := 0
	for _, perm := range permutations(sorted) {
		for _, slot := range accessorSlots(perm) {
			_, loaded := f.accessors.LoadOrCompute(slot.name, func() *accessor[T] {
				return f.build(slot, perm, opts.Clone())
			})
			if !loaded {
				installed++
			}
		}
	}

	f.logger.Debug().
		Strs("attributes", sorted).
		Int("installed", installed).
		Msg("registered finders")
	return nil
}

func (f *Finders[T]) build(slot accessorSlot, perm []string, finderOpts cache.Options) *accessor[T] {
	a := &accessor[T]{
		info: AccessorInfo{
			Name:       slot.name,
			Kind:       slot.kind,
			Attributes: perm,
			Options:    finderOpts,
		},
	}

	switch slot.kind {
	case KindFind, KindFindStrict:
		a.find = f.findFunc(a.info)
	case KindSearch, KindSearchStrict:
		a.search = f.searchFunc(a.info)
	case KindExistFind:
		a.exist = f.existFunc(a.info, operationFind)
	case KindExistSearch:
		a.exist = f.existFunc(a.info, operationSearch)
	case KindDelete:
		a.del = f.deleteFunc(a.info)
	}
	return a
}

// call is the resolved state of one accessor invocation.
type call struct {
	attrs Attributes
	opts  cache.Options
	key   string
}

func (f *Finders[T]) prepare(info AccessorInfo, operation string, args []any, opts cache.Options) (call, error) {
	if len(args) != len(info.Attributes) {
		return call{}, &ArgumentError{
			Name:    info.Name,
			Message: fmt.Sprintf("expected %d arguments, got %d", len(info.Attributes), len(args)),
		}
	}

	attrs := make(Attributes, len(args))
	for i, name := range info.Attributes {
		attrs[name] = args[i]
	}

	merged := cache.MergeOptions(f.env.DefaultOptions(), info.Options, opts)
	namespace := merged.String(cache.OptionNamespace)
	forwarded := merged.Without(cache.OptionNamespace)

	names := attrs.Names()
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = attrs[name]
	}

	key := cache.NewKey(
		f.env.Version(),
		namespace,
		f.name,
		operation,
		cache.ArgumentKeys(values, forwarded),
	).String()

	return call{attrs: attrs, opts: forwarded, key: key}, nil
}

func (f *Finders[T]) findFunc(info AccessorInfo) FindFunc[T] {
	strict := info.Kind == KindFindStrict
	return func(ctx context.Context, args []any, opts cache.Options, fetch cache.FetchFn[T]) (T, error) {
		var zero T
		c, err := f.prepare(info, operationFind, args, opts)
		if err != nil {
			return zero, err
		}
		f.track(c.key)
		if fetch == nil {
			fetch = func(ctx context.Context) (T, error) {
				return f.entity.Find(ctx, c.attrs)
			}
		}

		// Typed nils and empty records are stored as nil so the validity rules apply.
		record, err := fetchAs[T](ctx, f.env.Cache(), c, func(ctx context.Context) (any, error) {
			r, err := fetch(ctx)
			if err != nil || isAbsent(r) {
				return nil, err
			}
			return r, nil
		})
		if err != nil {
			return zero, err
		}
		if strict && isAbsent(record) {
			return zero, NewRecordNotFound(f.name, c.attrs)
		}
		return record, nil
	}
}

func (f *Finders[T]) searchFunc(info AccessorInfo) SearchFunc[T] {
	strict := info.Kind == KindSearchStrict
	return func(ctx context.Context, args []any, opts cache.Options, fetch cache.FetchFn[[]T]) ([]T, error) {
		c, err := f.prepare(info, operationSearch, args, opts)
		if err != nil {
			return nil, err
		}
		f.track(c.key)
		if fetch == nil {
			fetch = func(ctx context.Context) ([]T, error) {
				return f.entity.Search(ctx, c.attrs)
			}
		}

		records, err := fetchAs[[]T](ctx, f.env.Cache(), c, func(ctx context.Context) (any, error) {
			r, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			return r, nil
		})
		if err != nil {
			return nil, err
		}
		if strict && len(records) == 0 {
			return nil, NewRecordNotFound(f.name, c.attrs)
		}
		return records, nil
	}
}

func (f *Finders[T]) existFunc(info AccessorInfo, operation string) ExistFunc {
	return func(ctx context.Context, args []any, opts cache.Options) (bool, error) {
		c, err := f.prepare(info, operation, args, opts)
		if err != nil {
			return false, err
		}
		return f.env.Cache().Exist(ctx, c.key)
	}
}

func (f *Finders[T]) deleteFunc(info AccessorInfo) DeleteFunc {
	return func(ctx context.Context, args []any, opts cache.Options) error {
		var errs []error
		for _, operation := range []string{operationFind, operationSearch} {
			c, err := f.prepare(info, operation, args, opts)
			if err != nil {
				return err
			}
			if err := f.env.Cache().Delete(ctx, c.key); err != nil {
				errs = append(errs, err)
				continue
			}
			f.keys.Delete(c.key)
		}
		return errors.Join(errs...)
	}
}

// track records a key the cache may hold so Invalidate can reach it.
func (f *Finders[T]) track(key string) {
	f.keys.Store(key, struct{}{})
}

func fetchAs[V any](ctx context.Context, c *cache.Cache, cl call, fetch cache.FetchFn[any]) (V, error) {
	v, err := c.Fetch(ctx, cl.key, cl.opts, fetch)
	if err != nil {
		var zero V
		return zero, err
	}
	return cache.As[V](v)
}

// isAbsent reports whether a find result means no record: nil or empty.
// Zero numbers and zero structs are records.
func isAbsent(v any) bool {
	return !cache.Valid(v, nil)
}

// Responds reports whether an accessor named name is registered.
func (f *Finders[T]) Responds(name string) bool {
	_, ok := f.accessors.Load(name)
	return ok
}

// Accessor describes the accessor registered under name.
func (f *Finders[T]) Accessor(name string) (AccessorInfo, bool) {
	a, ok := f.accessors.Load(name)
	if !ok {
		return AccessorInfo{}, false
	}
	return a.info, true
}

// Names returns every registered accessor name, sorted.
func (f *Finders[T]) Names() []string {
	names := make([]string, 0, f.accessors.Size())
	f.accessors.Range(func(name string, _ *accessor[T]) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// FindAccessor returns the find or strict find accessor registered under name.
func (f *Finders[T]) FindAccessor(name string) (FindFunc[T], bool) {
	a, ok := f.accessors.Load(name)
	if !ok || a.find == nil {
		return nil, false
	}
	return a.find, true
}

// SearchAccessor returns the search or strict search accessor registered under name.
func (f *Finders[T]) SearchAccessor(name string) (SearchFunc[T], bool) {
	a, ok := f.accessors.Load(name)
	if !ok || a.search == nil {
		return nil, false
	}
	return a.search, true
}

// ExistAccessor returns the exist accessor registered under name, with or without the "?" suffix.
func (f *Finders[T]) ExistAccessor(name string) (ExistFunc, bool) {
	a, ok := f.accessors.Load(name)
	if !ok || a.exist == nil {
		return nil, false
	}
	return a.exist, true
}

func (f *Finders[T]) DeleteAccessor(name string) (DeleteFunc, bool) {
	a, ok := f.accessors.Load(name)
	if !ok || a.del == nil {
		return nil, false
	}
	return a.del, true
}

// TrackedKeys returns the cache keys touched by accessors since the last Invalidate.
func (f *Finders[T]) TrackedKeys() []string {
	keys := make([]string, 0, f.keys.Size())
	f.keys.Range(func(key string, _ struct{}) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// Invalidate deletes every tracked key from the cache. Keys that fail to
// delete stay tracked.
func (f *Finders[T]) Invalidate(ctx context.Context) error {
	return f.InvalidatePrefix(ctx, "")
}

// InvalidatePrefix deletes tracked keys whose string form starts with prefix.
func (f *Finders[T]) InvalidatePrefix(ctx context.Context, prefix string) error {
	var errs []error
	for _, key := range f.TrackedKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := f.env.Cache().Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			continue
		}
		f.keys.Delete(key)
	}

	if len(errs) > 0 {
		f.logger.Warn().Int("failed", len(errs)).Str("prefix", prefix).Msg("invalidate incomplete")
	}
	return errors.Join(errs...)
}
