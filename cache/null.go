package cache

import "context"

var _ Store = NullStore{}

// NullStore misses every read and discards every write.
type NullStore struct{}

func (NullStore) Read(context.Context, string) (any, bool, error) { return nil, false, nil }
func (NullStore) Write(context.Context, string, any, Options) error { return nil }
func (NullStore) Delete(context.Context, string) error { return nil }
func (NullStore) Exist(context.Context, string) (bool, error) { return false, nil }
func (NullStore) Fetch(ctx context.Context, _ string, _ Options, fn FetchFn[any]) (any, error) {
	return fn(ctx)
}
