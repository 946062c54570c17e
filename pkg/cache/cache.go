// Package cache provides the byte-oriented cache backends used for index
// responses.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one file per entry under a directory (the default,
//     rooted at <cache>/http)
//   - [RedisCache]: a shared Redis instance, for several machines crawling
//     against the same index
//   - [NullCache]: caching disabled (--no-cache)
//
// Keys are built by a [Keyer] so that responses from different indexes never
// collide:
//
//	keyer := cache.NewIndexKeyer("https://pypi.org/simple/")
//	key := keyer.HTTPKey("simple", "requests")
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Cache stores opaque byte payloads with an optional TTL.
//
// A TTL of zero means the entry never expires. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the stored payload. hit is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key, replacing any previous entry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// HTTPKey returns the key for a cached response in namespace.
	HTTPKey(namespace, key string) string
}

// DefaultKeyer produces unscoped keys of the form "http:<namespace>:<key>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey implements Keyer.
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return fmt.Sprintf("http:%s:%s", namespace, key)
}

// ScopedKeyer wraps a Keyer with a prefix, e.g. one per package index.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// NewIndexKeyer scopes keys to one package index. Index URLs that differ
// only by a trailing slash share a scope.
func NewIndexKeyer(indexURL string) Keyer {
	scope := hashKey(strings.TrimSuffix(indexURL, "/"))[:12]
	return NewScopedKeyer(NewDefaultKeyer(), "index:"+scope+":")
}

// hashKey returns the hex SHA-256 of key.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
