package source

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/sitegraph/pkg/cache"
)

// DefaultTTL is how long fetched documents stay cached.
const DefaultTTL = time.Hour

// CachedSource serves repeated fetches from a cache. Concurrent misses
// for the same variant share one inner fetch.
type CachedSource struct {
	inner Source
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// Cached wraps src. A nil c disables caching.
func Cached(src Source, c cache.Cache, ttl time.Duration) *CachedSource {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &CachedSource{inner: src, cache: c, ttl: ttl}
}

func (s *CachedSource) Name() string { return s.inner.Name() }

// Fetch returns the cached bytes when present. Cache failures fall
// through to the inner source; only inner failures are reported.
func (s *CachedSource) Fetch(ctx context.Context, v Variant) ([]byte, error) {
	key := s.key(v)
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return data, nil
	}
	res, err, _ := s.group.Do(key, func() (any, error) {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return data, nil
		}
		data, err := s.inner.Fetch(ctx, v)
		if err != nil {
			return nil, err
		}
		_ = s.cache.Set(ctx, key, data, s.ttl)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	data, ok := res.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected type from fetch group: %T", res)
	}
	return data, nil
}

// Invalidate drops the cached copy of v.
func (s *CachedSource) Invalidate(ctx context.Context, v Variant) error {
	return s.cache.Delete(ctx, s.key(v))
}

func (s *CachedSource) key(v Variant) string {
	return cache.Key("graph", s.inner.Name(), v.String())
}

var _ Source = (*CachedSource)(nil)
