package kwio

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Reader decodes keyword records from an io.ReaderAt.
//
// A Reader keeps a single forward-only cursor for sequential header
// traversal: ReadHeader and SkipPayload advance it. Payload access is
// addressed by absolute offsets instead (PayloadBytesAt,
// ReadPayloadAt) and never moves the cursor, so payloads can be
// materialized in any order long after the scan that discovered them.
type Reader struct {
	src        io.ReaderAt
	size       int64
	order      binary.ByteOrder
	format     Format
	maxPayload uint64
	pos        int64
	toks       *tokenizer
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithFormat sets the file encoding (default: FormatUnformatted).
func WithFormat(f Format) ReaderOption {
	return func(r *Reader) {
		r.format = f
	}
}

// WithByteOrder sets the byte order of unformatted payloads
// (default: binary.BigEndian).
func WithByteOrder(order binary.ByteOrder) ReaderOption {
	return func(r *Reader) {
		r.order = order
	}
}

// WithMaxPayloadSize sets the per-record payload size limit.
// Set to 0 to disable the limit.
func WithMaxPayloadSize(limit uint64) ReaderOption {
	return func(r *Reader) {
		r.maxPayload = limit
	}
}

// NewReader creates a Reader over the first size bytes of src with the
// cursor at offset 0.
func NewReader(src io.ReaderAt, size int64, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:        src,
		size:       size,
		order:      binary.BigEndian,
		format:     FormatUnformatted,
		maxPayload: DefaultMaxPayloadSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Format returns the configured file encoding.
func (r *Reader) Format() Format { return r.format }

// ByteOrder returns the configured payload byte order.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.order }

// Size returns the source size in bytes.
func (r *Reader) Size() int64 { return r.size }

// Offset returns the current cursor position.
func (r *Reader) Offset() int64 { return r.pos }

// ReadHeader decodes the record header at the cursor and advances the
// cursor to the start of the payload, returning the header and the
// payload offset. At a clean record boundary with no bytes left it
// returns io.EOF; a header that is cut short or structurally invalid
// returns ErrTruncated or ErrCorrupt.
func (r *Reader) ReadHeader() (Header, int64, error) {
	if r.format == FormatFormatted {
		return r.readHeaderText()
	}
	return r.readHeaderBinary()
}

// SkipPayload advances the cursor past the payload of h, whose header
// was just consumed, and returns the new cursor position: the end of
// the record and the start of the next one.
func (r *Reader) SkipPayload(h Header) (int64, error) {
	if r.format == FormatFormatted {
		return r.skipPayloadText(h)
	}
	r.pos += payloadSize(h)
	return r.pos, nil
}

// PayloadBytesAt reads the raw payload span [off, end) without
// decoding it. The bytes are exactly as stored, Fortran record
// markers included for the unformatted encoding. A span extending
// past the source returns ErrTruncated.
func (r *Reader) PayloadBytesAt(off, end int64) ([]byte, error) {
	if off < 0 || end < off {
		return nil, fmt.Errorf("%w: invalid payload span [%d, %d)", ErrCorrupt, off, end)
	}
	if r.maxPayload > 0 && uint64(end-off) > r.maxPayload {
		return nil, fmt.Errorf("%w: %d bytes at offset %d", ErrPayloadTooLarge, end-off, off)
	}
	if end == off {
		return nil, nil
	}
	buf := make([]byte, end-off)
	n, err := r.src.ReadAt(buf, off)
	if n < len(buf) {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: payload at offset %d ends after %d of %d bytes", ErrTruncated, off, n, len(buf))
		}
		return nil, err
	}
	return buf, nil
}

// DecodePayload decodes a raw payload span previously located by a
// header scan. raw must be the exact span [offset, end) of the record.
func (r *Reader) DecodePayload(h Header, raw []byte) (Payload, error) {
	if h.Type == TypeMess {
		return NewMessage(), nil
	}
	if r.format == FormatFormatted {
		return decodeTextPayload(h, raw)
	}
	return decodeBinaryPayload(h, raw, r.order)
}

// ReadPayloadAt reads and decodes the payload span [off, end) of h.
func (r *Reader) ReadPayloadAt(h Header, off, end int64) (Payload, error) {
	if h.Type == TypeMess {
		return NewMessage(), nil
	}
	raw, err := r.PayloadBytesAt(off, end)
	if err != nil {
		return Payload{}, err
	}
	return r.DecodePayload(h, raw)
}

func (r *Reader) readHeaderBinary() (Header, int64, error) {
	if r.pos >= r.size {
		return Header{}, 0, io.EOF
	}
	var buf [headerSize]byte
	n, err := r.src.ReadAt(buf[:], r.pos)
	if n < len(buf) {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Header{}, 0, fmt.Errorf("%w: header at offset %d ends after %d of %d bytes", ErrTruncated, r.pos, n, len(buf))
		}
		return Header{}, 0, err
	}

	lead := r.order.Uint32(buf[0:4])
	tail := r.order.Uint32(buf[20:24])
	if lead != headerMarker || tail != headerMarker {
		return Header{}, 0, fmt.Errorf("%w: header markers %d/%d at offset %d", ErrCorrupt, lead, tail, r.pos)
	}

	h, err := parseHeaderFields(buf[4:12], int32(r.order.Uint32(buf[12:16])), string(buf[16:20]), r.pos)
	if err != nil {
		return Header{}, 0, err
	}
	if err := r.checkDeclaredSize(h); err != nil {
		return Header{}, 0, err
	}

	r.pos += headerSize
	return h, r.pos, nil
}

// parseHeaderFields validates the raw header fields shared by both
// encodings: an 8-byte printable name, a non-negative count, and a
// known type mnemonic.
func parseHeaderFields(name []byte, count int32, mnemonic string, off int64) (Header, error) {
	for _, c := range name {
		if c < 0x20 || c > 0x7e {
			return Header{}, fmt.Errorf("%w: unprintable name byte 0x%02x at offset %d", ErrCorrupt, c, off)
		}
	}
	if count < 0 {
		return Header{}, fmt.Errorf("%w: negative count %d at offset %d", ErrCorrupt, count, off)
	}
	typ, ok := ParseType(mnemonic)
	if !ok {
		return Header{}, fmt.Errorf("%w: unknown type mnemonic %q at offset %d", ErrCorrupt, mnemonic, off)
	}
	return Header{
		Name:  strings.TrimRight(string(name), " "),
		Type:  typ,
		Count: int(count),
	}, nil
}

func (r *Reader) checkDeclaredSize(h Header) error {
	if r.maxPayload == 0 {
		return nil
	}
	declared := uint64(h.Count) * uint64(h.Type.ElemSize())
	if declared > r.maxPayload {
		return fmt.Errorf("%w: %s declares %d bytes", ErrPayloadTooLarge, h.Name, declared)
	}
	return nil
}

// payloadSize returns the on-disk byte size of an unformatted payload,
// record markers included. TypeMess records carry no payload whatever
// their count says.
func payloadSize(h Header) int64 {
	if h.Count == 0 || h.Type == TypeMess {
		return 0
	}
	bs := h.Type.blockSize()
	blocks := (h.Count + bs - 1) / bs
	return int64(h.Count)*int64(h.Type.ElemSize()) + int64(blocks)*8
}
