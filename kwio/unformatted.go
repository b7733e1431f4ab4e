package kwio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// decodeBinaryPayload decodes an unformatted payload span. raw holds
// the Fortran payload records verbatim, length markers included.
func decodeBinaryPayload(h Header, raw []byte, order binary.ByteOrder) (Payload, error) {
	switch h.Type {
	case TypeInte:
		out := make([]int32, 0, h.Count)
		err := forEachBlock(h, raw, order, func(elems []byte) {
			for i := 0; i+4 <= len(elems); i += 4 {
				out = append(out, int32(order.Uint32(elems[i:i+4])))
			}
		})
		if err != nil {
			return Payload{}, err
		}
		return NewInts(out), nil

	case TypeReal:
		out := make([]float32, 0, h.Count)
		err := forEachBlock(h, raw, order, func(elems []byte) {
			for i := 0; i+4 <= len(elems); i += 4 {
				out = append(out, math.Float32frombits(order.Uint32(elems[i:i+4])))
			}
		})
		if err != nil {
			return Payload{}, err
		}
		return NewReals(out), nil

	case TypeDoub:
		out := make([]float64, 0, h.Count)
		err := forEachBlock(h, raw, order, func(elems []byte) {
			for i := 0; i+8 <= len(elems); i += 8 {
				out = append(out, math.Float64frombits(order.Uint64(elems[i:i+8])))
			}
		})
		if err != nil {
			return Payload{}, err
		}
		return NewDoubs(out), nil

	case TypeLogi:
		// Canonical encodings are -1 (true) and 0 (false); any other
		// nonzero value is read as true.
		out := make([]bool, 0, h.Count)
		err := forEachBlock(h, raw, order, func(elems []byte) {
			for i := 0; i+4 <= len(elems); i += 4 {
				out = append(out, order.Uint32(elems[i:i+4]) != 0)
			}
		})
		if err != nil {
			return Payload{}, err
		}
		return NewBools(out), nil

	case TypeChar:
		out := make([]string, 0, h.Count)
		err := forEachBlock(h, raw, order, func(elems []byte) {
			for i := 0; i+NameLen <= len(elems); i += NameLen {
				out = append(out, strings.TrimRight(string(elems[i:i+NameLen]), " "))
			}
		})
		if err != nil {
			return Payload{}, err
		}
		return NewStrings(out), nil

	case TypeMess:
		return NewMessage(), nil

	default:
		return Payload{}, fmt.Errorf("%w: unhandled type %d", ErrCorrupt, h.Type)
	}
}

// forEachBlock walks the Fortran records of an unformatted payload,
// validating every length marker against the block layout the header
// declares, and passes the bare element bytes of each record to fn.
func forEachBlock(h Header, raw []byte, order binary.ByteOrder, fn func(elems []byte)) error {
	es := h.Type.ElemSize()
	bs := h.Type.blockSize()
	remaining := h.Count
	pos := 0
	for remaining > 0 {
		want := min(remaining, bs)
		wantBytes := want * es
		if len(raw)-pos < 4 {
			return fmt.Errorf("%w: %s payload record marker cut short", ErrTruncated, h.Name)
		}
		lead := int(int32(order.Uint32(raw[pos : pos+4])))
		if lead != wantBytes {
			return fmt.Errorf("%w: %s payload record of %d bytes, want %d", ErrCorrupt, h.Name, lead, wantBytes)
		}
		pos += 4
		if len(raw)-pos < wantBytes+4 {
			return fmt.Errorf("%w: %s payload record cut short", ErrTruncated, h.Name)
		}
		fn(raw[pos : pos+wantBytes])
		pos += wantBytes
		tail := int(int32(order.Uint32(raw[pos : pos+4])))
		if tail != wantBytes {
			return fmt.Errorf("%w: %s trailing marker %d, want %d", ErrCorrupt, h.Name, tail, wantBytes)
		}
		pos += 4
		remaining -= want
	}
	if pos != len(raw) {
		return fmt.Errorf("%w: %d stray bytes after %s payload", ErrCorrupt, len(raw)-pos, h.Name)
	}
	return nil
}

// writeBinaryHeader serializes an unformatted header record.
func writeBinaryHeader(w io.Writer, h Header, order binary.ByteOrder) error {
	if len(h.Name) > NameLen {
		return fmt.Errorf("%w: keyword name %q", ErrStringTooLong, h.Name)
	}
	var buf [headerSize]byte
	order.PutUint32(buf[0:4], headerMarker)
	copy(buf[4:12], "        ")
	copy(buf[4:12], h.Name)
	order.PutUint32(buf[12:16], uint32(h.Count))
	copy(buf[16:20], h.Type.String())
	order.PutUint32(buf[20:24], headerMarker)
	_, err := w.Write(buf[:])
	return err
}

// writeBinaryPayload serializes a payload as blocked Fortran records.
func writeBinaryPayload(w io.Writer, p Payload, order binary.ByteOrder) error {
	switch p.Type() {
	case TypeInte:
		v := p.Ints()
		return writeBinaryBlocks(w, len(v), 4, blockNumeric, order, func(buf []byte, i int) {
			order.PutUint32(buf, uint32(v[i]))
		})

	case TypeReal:
		v := p.Reals()
		return writeBinaryBlocks(w, len(v), 4, blockNumeric, order, func(buf []byte, i int) {
			order.PutUint32(buf, math.Float32bits(v[i]))
		})

	case TypeDoub:
		v := p.Doubs()
		return writeBinaryBlocks(w, len(v), 8, blockNumeric, order, func(buf []byte, i int) {
			order.PutUint64(buf, math.Float64bits(v[i]))
		})

	case TypeLogi:
		v := p.Bools()
		return writeBinaryBlocks(w, len(v), 4, blockNumeric, order, func(buf []byte, i int) {
			if v[i] {
				order.PutUint32(buf, uint32(0xffffffff))
			} else {
				order.PutUint32(buf, 0)
			}
		})

	case TypeChar:
		v := p.Strings()
		for _, s := range v {
			if len(s) > NameLen {
				return fmt.Errorf("%w: %q", ErrStringTooLong, s)
			}
		}
		return writeBinaryBlocks(w, len(v), NameLen, blockChar, order, func(buf []byte, i int) {
			copy(buf, "        ")
			copy(buf, v[i])
		})

	case TypeMess:
		return nil

	default:
		return fmt.Errorf("%w: unhandled type %d", ErrCorrupt, p.Type())
	}
}

// writeBinaryBlocks chunks count elements into Fortran records of at
// most blockSize elements and writes each with its length markers.
// put serializes element i into its elemSize-byte slot.
func writeBinaryBlocks(w io.Writer, count, elemSize, blockSize int, order binary.ByteOrder, put func(buf []byte, i int)) error {
	var marker [4]byte
	for start := 0; start < count; start += blockSize {
		n := min(count-start, blockSize)
		nb := n * elemSize
		order.PutUint32(marker[:], uint32(nb))
		if _, err := w.Write(marker[:]); err != nil {
			return err
		}
		buf := make([]byte, nb)
		for i := range n {
			put(buf[i*elemSize:(i+1)*elemSize], start+i)
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
		if _, err := w.Write(marker[:]); err != nil {
			return err
		}
	}
	return nil
}
