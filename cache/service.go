package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidResultType is returned when a cached value does not match the requested type.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the read-through caching operations we need when decorating repositories.
// It is exported so that other packages can reuse the default serializer or provide alternate cache backends.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error)
	Delete(ctx context.Context, key string) error
}

// TagAwareCacheService extends CacheService with tag based invalidation.
//
// Entries stored through GetOrFetchTagged are associated with every tag in the
// tags slice. InvalidateTags evicts all entries carrying any of the given tags
// without the caller enumerating keys. An entry whose fill started before an
// invalidation of one of its tags is never served after that invalidation.
type TagAwareCacheService interface {
	CacheService
	GetOrFetchTagged(ctx context.Context, key string, tags []string, fetchFn any) (any, error)
	InvalidateTags(ctx context.Context, tags ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

// GetOrFetch is a type-safe wrapper function that provides generic support for CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	result, err := service.GetOrFetch(ctx, key, fetchFn)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](result)
}

// GetOrFetchTagged is the typed counterpart of TagAwareCacheService.GetOrFetchTagged.
func GetOrFetchTagged[T any](ctx context.Context, service TagAwareCacheService, key string, tags []string, fetchFn FetchFn[T]) (T, error) {
	result, err := service.GetOrFetchTagged(ctx, key, tags, fetchFn)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](result)
}

// cast converts a cached value back to T. A nil interface yields the zero value.
func cast[T any](result any) (T, error) {
	var zero T
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrInvalidResultType, result, zero)
	}
	return typed, nil
}
