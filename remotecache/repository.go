package remotecache

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryReader is the part of a go-repository-bun repository used to
// answer finder lookups.
type RepositoryReader[T any] interface {
	Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error)
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
}

var _ Entity[any] = (*RepositoryEntity[any])(nil)

// RepositoryEntity adapts a repository to Entity. Each attribute becomes an
// equality criterion on the column of the same name.
type RepositoryEntity[T any] struct {
	repo    RepositoryReader[T]
	columns map[string]string
}

// RepositoryOption configures a RepositoryEntity.
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	columns map[string]string
}

// WithColumn maps an attribute name to a different column.
func WithColumn(attribute, column string) RepositoryOption {
	return func(o *repositoryOptions) {
		o.columns[attribute] = column
	}
}

// NewRepositoryEntity wraps repo.
func NewRepositoryEntity[T any](repo RepositoryReader[T], opts ...RepositoryOption) *RepositoryEntity[T] {
	o := &repositoryOptions{columns: make(map[string]string)}
	for _, opt := range opts {
		opt(o)
	}
	return &RepositoryEntity[T]{repo: repo, columns: o.columns}
}

// Find returns the first record matching attrs, or the zero value.
func (e *RepositoryEntity[T]) Find(ctx context.Context, attrs Attributes) (T, error) {
	record, err := e.repo.Get(ctx, e.Criteria(attrs)...)
	if isNotFound(err) {
		var zero T
		return zero, nil
	}
	return record, err
}

// Search returns every record matching attrs.
func (e *RepositoryEntity[T]) Search(ctx context.Context, attrs Attributes) ([]T, error) {
	records, _, err := e.repo.List(ctx, e.Criteria(attrs)...)
	if isNotFound(err) {
		return nil, nil
	}
	return records, err
}

// Criteria builds one select criterion per attribute, in sorted name order.
// Slices match with IN and nil matches with IS NULL.
func (e *RepositoryEntity[T]) Criteria(attrs Attributes) []repository.SelectCriteria {
	names := attrs.Names()
	criteria := make([]repository.SelectCriteria, 0, len(names))
	for _, name := range names {
		column := e.column(name)
		value := attrs[name]
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			switch {
			case value == nil:
				return q.Where("? IS NULL", bun.Ident(column))
			case isList(value):
				return q.Where("? IN (?)", bun.Ident(column), bun.In(value))
			default:
				return q.Where("? = ?", bun.Ident(column), value)
			}
		})
	}
	return criteria
}

func (e *RepositoryEntity[T]) column(attribute string) string {
	if c, ok := e.columns[attribute]; ok {
		return c
	}
	return attribute
}

func isList(v any) bool {
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) || goerrors.IsNotFound(err)
}
