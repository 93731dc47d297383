package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/c360/actionkit/pkg/cache"
	"github.com/c360/actionkit/pkg/serialize"
)

// QueryCache memoizes successful read-action results. Keys combine a
// namespace prefix, the action route, and the canonical serialization
// of the input, so structurally equal inputs share an entry no matter
// how their maps were built.
type QueryCache struct {
	prefix string
	cache  *cache.Cache[any]
}

// NewQueryCache builds a cache bounded by maxEntries and ttl; zero
// disables the respective limit.
func NewQueryCache(prefix string, maxEntries int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		prefix: prefix,
		cache: cache.New(
			cache.WithMaxEntries[any](maxEntries),
			cache.WithTTL[any](ttl),
		),
	}
}

// Key returns the cache key for a route and input.
func (q *QueryCache) Key(route string, input any) string {
	return fmt.Sprintf("%s:%s:%s", q.prefix, route, serialize.Serialize(input))
}

// Get returns the cached result for the route and input, if any.
func (q *QueryCache) Get(route string, input any) (any, bool) {
	return q.cache.Get(q.Key(route, input))
}

// Set stores a result for the route and input.
func (q *QueryCache) Set(route string, input any, value any) {
	q.cache.Set(q.Key(route, input), value)
}

// Invalidate drops the entry for one route and input, reporting whether
// it existed.
func (q *QueryCache) Invalidate(route string, input any) bool {
	return q.cache.Delete(q.Key(route, input))
}

// InvalidateRoute drops every entry for a route regardless of input,
// returning how many were removed.
func (q *QueryCache) InvalidateRoute(route string) int {
	keyPrefix := fmt.Sprintf("%s:%s:", q.prefix, route)
	removed := 0
	for _, key := range q.cache.Keys() {
		if strings.HasPrefix(key, keyPrefix) {
			if q.cache.Delete(key) {
				removed++
			}
		}
	}
	return removed
}

// GetOrFetch returns the cached result or runs fetch and caches its
// result. Fetch failures are returned uncached.
func (q *QueryCache) GetOrFetch(ctx context.Context, route string, input any, fetch func(ctx context.Context) (any, error)) (any, error) {
	key := q.Key(route, input)
	if value, ok := q.cache.Get(key); ok {
		return value, nil
	}
	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	q.cache.Set(key, value)
	return value, nil
}

// Stats exposes hit/miss counters of the underlying cache.
func (q *QueryCache) Stats() *cache.Statistics { return q.cache.Stats() }
