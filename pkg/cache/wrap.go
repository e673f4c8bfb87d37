package cache

import (
	"context"
	"time"

	"github.com/matzehuels/sitegraph/pkg/observability"
)

// =============================================================================
// Scoped
// =============================================================================

// Scoped prefixes every key of an inner cache, giving each source its own
// namespace in a shared backend.
//
//	files := cache.NewScoped(shared, "file:")
//	mongo := cache.NewScoped(shared, "mongo:")
type Scoped struct {
	inner  Cache
	prefix string
}

// NewScoped wraps inner. A nil inner is replaced by a NullCache.
func NewScoped(inner Cache, prefix string) *Scoped {
	if inner == nil {
		inner = NewNullCache()
	}
	return &Scoped{inner: inner, prefix: prefix}
}

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *Scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, s.prefix+key, data, ttl)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

// Close closes the inner cache.
func (s *Scoped) Close() error { return s.inner.Close() }

// =============================================================================
// Instrumented
// =============================================================================

// Instrumented reports hits, misses and writes to observability.Cache().
type Instrumented struct {
	inner   Cache
	backend string
}

// Instrument wraps c, labelling its events with backend.
func Instrument(c Cache, backend string) *Instrumented {
	return &Instrumented{inner: c, backend: backend}
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := i.inner.Get(ctx, key)
	if err == nil {
		if ok {
			observability.Cache().OnCacheHit(ctx, i.backend)
		} else {
			observability.Cache().OnCacheMiss(ctx, i.backend)
		}
	}
	return data, ok, err
}

func (i *Instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := i.inner.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, i.backend, len(data))
	return nil
}

func (i *Instrumented) Delete(ctx context.Context, key string) error {
	return i.inner.Delete(ctx, key)
}

func (i *Instrumented) Close() error { return i.inner.Close() }

var (
	_ Cache = (*Scoped)(nil)
	_ Cache = (*Instrumented)(nil)
)
