package kwio

import (
	"encoding/binary"
	"io"
)

// Writer serializes keyword records to a stream. Records are written
// strictly sequentially; the Writer holds no buffer of its own, so
// wrapping the destination in a bufio.Writer is the caller's call.
type Writer struct {
	w      io.Writer
	order  binary.ByteOrder
	format Format
}

// NewWriter creates a Writer emitting the given encoding. A nil order
// selects big-endian, the conventional byte order of unformatted
// files; the order is ignored for the formatted encoding.
func NewWriter(w io.Writer, format Format, order binary.ByteOrder) *Writer {
	if order == nil {
		order = binary.BigEndian
	}
	return &Writer{w: w, order: order, format: format}
}

// Format returns the encoding the Writer emits.
func (w *Writer) Format() Format { return w.format }

// ByteOrder returns the payload byte order for unformatted output.
func (w *Writer) ByteOrder() binary.ByteOrder { return w.order }

// WriteRecord serializes one record: the header, then the payload
// split into blocks. The element count written is p.Len().
func (w *Writer) WriteRecord(name string, p Payload) error {
	h := Header{Name: name, Type: p.Type(), Count: p.Len()}
	if w.format == FormatFormatted {
		if err := writeTextHeader(w.w, h); err != nil {
			return err
		}
		return writeTextPayload(w.w, p)
	}
	if err := writeBinaryHeader(w.w, h, w.order); err != nil {
		return err
	}
	return writeBinaryPayload(w.w, p, w.order)
}
