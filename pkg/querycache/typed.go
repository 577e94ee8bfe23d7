package querycache

import (
	"context"
	"fmt"
)

// Query — типизированная обёртка над Cache.Fetch.
func Query[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error), opts ...QueryOption) (T, error) {
	var zero T

	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, opts...)
	if err != nil {
		return zero, err
	}

	if v == nil {
		return zero, nil
	}

	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %s holds %T", ErrTypeMismatch, key, v)
	}

	return out, nil
}

// Mutate выполняет изменение ровно один раз (без повторов) и при успехе
// инвалидирует ключи, которые вернул invalidate.
func Mutate[T any](ctx context.Context, c *Cache, fn func(context.Context) (T, error), invalidate func(T) []Key) (T, error) {
	out, err := fn(ctx)
	if err != nil {
		return out, err
	}

	if invalidate != nil {
		for _, k := range invalidate(out) {
			c.Invalidate(ctx, k)
		}
	}

	return out, nil
}
