package kwfile

import (
	"fmt"
	"strconv"

	"github.com/petrolog/kwfile/kwio"
)

// Record is a lazy handle to one keyword record discovered by the
// scan. It carries the decoded header and the byte span of the payload
// but no payload data: Payload reads and decodes the span on demand.
//
// Records are owned by their File and stay valid until it is closed.
type Record struct {
	f   *File
	hdr kwio.Header
	off int64
	end int64
}

// Name returns the keyword name with trailing padding trimmed.
func (r *Record) Name() string { return r.hdr.Name }

// Type returns the declared element type.
func (r *Record) Type() kwio.Type { return r.hdr.Type }

// Count returns the declared element count.
func (r *Record) Count() int { return r.hdr.Count }

// Header returns the record header. No I/O is performed.
func (r *Record) Header() kwio.Header { return r.hdr }

// Offset returns the byte offset of the payload in the source stream.
func (r *Record) Offset() int64 { return r.off }

// Size returns the payload span in bytes, record framing included.
// For a record whose payload was cut off by truncation this is the
// span that remains, not the declared size.
func (r *Record) Size() int64 { return r.end - r.off }

// Payload reads and decodes the record's payload.
//
// Decoding validates the stored bytes against the declared header;
// truncation or corruption surfaces as a kwio error at a known offset.
// Repeated calls re-read the source unless the File has a cache, in
// which case the raw span is served from the cache and concurrent
// first reads of the same record are deduplicated.
func (r *Record) Payload() (kwio.Payload, error) {
	f := r.f
	if f.closed.Load() {
		return kwio.Payload{}, fmt.Errorf("read payload %s: %w", r.hdr.Name, ErrClosed)
	}

	if f.cache == nil || r.hdr.Type == kwio.TypeMess {
		p, err := f.reader.ReadPayloadAt(r.hdr, r.off, r.end)
		if err != nil {
			return kwio.Payload{}, fmt.Errorf("read payload %s: %w", r.hdr.Name, err)
		}
		return p, nil
	}

	key := r.spanKey()

	// Cache hit - decode the stored span
	if raw, ok := f.cache.Get(key); ok {
		f.log().Debug("payload cache hit", "name", r.hdr.Name, "offset", r.off)
		return r.decode(raw)
	}

	f.log().Debug("payload cache miss", "name", r.hdr.Name, "offset", r.off)

	// Cache miss with singleflight
	result, err, _ := f.loadGroup.Do(key, func() (any, error) {
		// Double-check cache
		if raw, ok := f.cache.Get(key); ok {
			return raw, nil
		}

		raw, err := f.reader.PayloadBytesAt(r.off, r.end)
		if err != nil {
			return nil, err
		}

		// Store in cache (errors are non-fatal)
		_ = f.cache.Put(key, raw) //nolint:errcheck // caching is opportunistic

		return raw, nil
	})

	if err != nil {
		return kwio.Payload{}, fmt.Errorf("read payload %s: %w", r.hdr.Name, err)
	}
	return r.decode(result.([]byte)) //nolint:errcheck // type assertion always succeeds when err is nil
}

func (r *Record) decode(raw []byte) (kwio.Payload, error) {
	p, err := r.f.reader.DecodePayload(r.hdr, raw)
	if err != nil {
		return kwio.Payload{}, fmt.Errorf("read payload %s: %w", r.hdr.Name, err)
	}
	return p, nil
}

// spanKey keys the raw payload span in the cache. The source identity
// plus the span offset pin the bytes exactly: the scan never moves a
// record, and the write path emits new streams instead of mutating
// this one.
func (r *Record) spanKey() string {
	return r.f.src.SourceID() + ":" + strconv.FormatInt(r.off, 10)
}
