// Package cache stores intermediate stitching results between runs.
//
// Pairwise offset estimation dominates the cost of a stitch, and its result
// depends only on the two images and the color metric. Keys are therefore
// derived from image digests, so re-running on the same directory (or on a
// superset of it) reuses every pair already seen.
//
// Three backends are provided:
//   - [FileCache]: one JSON file per entry under a directory (CLI default)
//   - [RedisCache]: shared cache for the HTTP server or several machines
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// TTLs for cached entry kinds.
const (
	// TTLOffset is how long a pairwise offset stays cached. Offsets are pure
	// functions of their inputs, so the TTL only bounds disk usage.
	TTLOffset = 30 * 24 * time.Hour
)

// OffsetKeyOpts are the estimator settings that affect a pairwise offset.
type OffsetKeyOpts struct {
	Metric string `json:"metric"`
}

// Keyer derives cache keys.
type Keyer interface {
	// OffsetKey returns the key for the offset of image b relative to image a.
	OffsetKey(digestA, digestB string, opts OffsetKeyOpts) string
}

// DefaultKeyer hashes key components into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// OffsetKey implements Keyer. The pair is ordered: swapping a and b yields a
// different key because the offset changes sign.
func (DefaultKeyer) OffsetKey(digestA, digestB string, opts OffsetKeyOpts) string {
	return hashKey("offset", digestA, digestB, opts)
}

// Clearer is implemented by backends that can drop all their entries.
type Clearer interface {
	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}
