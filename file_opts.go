package kwfile

import (
	"encoding/binary"
	"log/slog"

	"github.com/petrolog/kwfile/cache"
	"github.com/petrolog/kwfile/kwio"
)

// Option configures a File at open time.
type Option func(*File)

// WithFormat forces the file encoding instead of recovering it from
// the filename or probing the content.
func WithFormat(format kwio.Format) Option {
	return func(f *File) {
		f.format = format
		f.formatSet = true
	}
}

// WithByteOrder sets the payload byte order of unformatted files
// (default: big-endian, or the probed order when the encoding is
// probed).
func WithByteOrder(order binary.ByteOrder) Option {
	return func(f *File) {
		f.order = order
	}
}

// WithMaxPayloadSize limits the per-record payload size accepted
// during the scan and on payload reads. Set limit to 0 to disable the
// limit.
func WithMaxPayloadSize(limit uint64) Option {
	return func(f *File) {
		f.maxPayload = limit
		f.maxSet = true
	}
}

// WithCache enables payload caching.
//
// When enabled, raw payload spans are cached after first read and
// served from cache on subsequent reads, keyed by the source identity
// and the span offset. Concurrent first reads of the same record are
// deduplicated.
func WithCache(c cache.Cache) Option {
	return func(f *File) {
		f.cache = c
	}
}

// WithLogger sets the logger for scan, block, and cache events.
// Logging is disabled when no logger is set.
func WithLogger(logger *slog.Logger) Option {
	return func(f *File) {
		f.logger = logger
	}
}
