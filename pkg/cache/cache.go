// Package cache provides pluggable storage for registry metadata responses.
//
// Version listings fetched from the package index are cached so repeated
// runs, and resolutions that touch the same dependency many times, do not
// hit the network again. Artifacts themselves are never stored here: the
// download directory is their cache.
//
// Backends:
//   - [FileCache]: JSON files under the XDG cache directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for fleets of build agents
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads with an optional time-to-live.
type Cache interface {
	// Get returns the payload for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// HTTPKey returns the key for a registry response identified by
	// namespace (e.g. "gallery:") and a request-specific key.
	HTTPKey(namespace, key string) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default Keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// HTTPKey implements Keyer.
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}
