package store

import (
	"context"
	"fmt"

	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
)

// Get is the typed form of Store.Get. A missing entity yields the zero T
// and a nil error.
func Get[T types.Entity](ctx context.Context, s *Store, id string) (T, error) {
	var zero T

	name, ok := schema.NameFor[T]()
	if !ok {
		return zero, fmt.Errorf("entity type %T is not registered", zero)
	}

	e, err := s.Get(ctx, name, id)
	if err != nil || e == nil {
		return zero, err
	}

	t, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("cached %s is not a %T", name, zero)
	}
	return t, nil
}

// GetMany is the typed form of Store.GetMany.
func GetMany[T types.Entity](ctx context.Context, s *Store, ids []string) ([]T, error) {
	name, ok := schema.NameFor[T]()
	if !ok {
		var zero T
		return nil, fmt.Errorf("entity type %T is not registered", zero)
	}

	found, err := s.GetMany(ctx, name, ids)
	if err != nil {
		return nil, err
	}
	return castAll[T](found), nil
}

// Find is the typed form of Store.Find.
func Find[T types.Entity](ctx context.Context, s *Store, criteria Where) ([]T, error) {
	name, ok := schema.NameFor[T]()
	if !ok {
		var zero T
		return nil, fmt.Errorf("entity type %T is not registered", zero)
	}

	found, err := s.Find(ctx, name, criteria)
	if err != nil {
		return nil, err
	}
	return castAll[T](found), nil
}

// FindOne is the typed form of Store.FindOne.
func FindOne[T types.Entity](ctx context.Context, s *Store, criteria Where) (T, error) {
	var zero T

	name, ok := schema.NameFor[T]()
	if !ok {
		return zero, fmt.Errorf("entity type %T is not registered", zero)
	}

	e, err := s.FindOne(ctx, name, criteria)
	if err != nil || e == nil {
		return zero, err
	}

	t, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("cached %s is not a %T", name, zero)
	}
	return t, nil
}

// Filter is the typed form of Store.Filter.
func Filter[T types.Entity](s *Store, pred func(T) bool) []T {
	name, ok := schema.NameFor[T]()
	if !ok {
		return nil
	}

	found := s.Filter(name, func(e types.Entity) bool {
		t, ok := e.(T)
		return ok && pred(t)
	})
	return castAll[T](found)
}

// FilterStrict is the typed form of Store.FilterStrict.
func FilterStrict[T types.Entity](s *Store, required []string, pred func(T) bool) ([]T, error) {
	var zero T

	name, ok := schema.NameFor[T]()
	if !ok {
		return nil, fmt.Errorf("entity type %T is not registered", zero)
	}

	found, err := s.FilterStrict(name, required, func(e types.Entity) bool {
		t, ok := e.(T)
		return ok && pred(t)
	})
	if err != nil {
		return nil, err
	}
	return castAll[T](found), nil
}

// AllCached is the typed form of Store.AllCached.
func AllCached[T types.Entity](s *Store) []T {
	return Filter[T](s, func(T) bool { return true })
}

func castAll[T types.Entity](in []types.Entity) []T {
	out := make([]T, 0, len(in))
	for _, e := range in {
		if t, ok := e.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
