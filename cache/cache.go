// Package cache provides payload caching for keyword files.
//
// Scanning a keyword file indexes record headers only; payload bytes
// are materialized on demand. A Cache keeps raw payload spans so that
// repeated access, and access over remote sources in particular, does
// not hit the source again. Keys combine the source identity with the
// payload offset, so one cache can serve many files at once.
package cache

// Cache stores raw payload spans.
//
// Keys are opaque strings derived from the source identity and the
// payload offset. Values are span bytes exactly as stored in the
// file. Callers must not modify slices passed to or returned from a
// Cache.
//
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a span by key.
	// Returns nil, false if the span is not cached.
	Get(key string) ([]byte, bool)

	// Put stores a span under key. Storing an already-present key is a
	// no-op. Put failures are not fatal to reads; callers treat the
	// cache as best-effort.
	Put(key string, content []byte) error
}
