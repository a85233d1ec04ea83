package query

import (
	"context"
	"fmt"
)

// Query is a typed handle on one cache key.
type Query[T any] struct {
	cache *Cache
	key   Key
}

func Register[T any](c *Cache, key Key, fetch func(ctx context.Context) (T, error)) Query[T] {
	c.Register(key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	return Query[T]{cache: c, key: key}
}

func (q Query[T]) Key() Key { return q.key }

func (q Query[T]) Get(ctx context.Context) (T, error) {
	var zero T
	value, err := q.cache.Get(ctx, q.key)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: cached %T, want %T", q.key, value, zero)
	}
	return typed, nil
}
