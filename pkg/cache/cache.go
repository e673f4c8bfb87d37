// Package cache stores fetched graph documents so repeated loads of the same
// variant skip the network.
//
// # Backends
//
//   - [NullCache]: stores nothing; used when caching is disabled
//   - [FileCache]: one JSON file per entry under a directory
//   - [RedisCache]: a shared Redis instance, for several explorers serving
//     the same data
//
// Wrap a backend with [NewScoped] to keep sources from colliding and with
// [Instrument] to report hits and misses to the observability hooks.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}
