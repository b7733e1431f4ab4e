package kwio

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The formatted encoding writes each record as fixed-column text:
//
//	'SPECGRID'           4 'INTE'
//	          40          64          14           1
//
// Reading is tolerant of any whitespace layout: records are decoded
// from a flat token stream where a token is either a quoted string or
// a bare whitespace-delimited word. Byte offsets of token boundaries
// are tracked so payload spans can be re-read later without rescanning
// from the start of the file.

const tokenizerBufSize = 4096

type token struct {
	text   string
	quoted bool
	off    int64
}

// tokenizer produces tokens from an io.ReaderAt while tracking the
// absolute byte offset of its progress.
type tokenizer struct {
	src      io.ReaderAt
	size     int64
	pos      int64
	buf      []byte
	bufStart int64
}

func newTokenizer(src io.ReaderAt, size, pos int64) *tokenizer {
	return &tokenizer{src: src, size: size, pos: pos}
}

// next returns the next token. Quoted tokens keep their inner text
// verbatim with the quotes stripped. Returns io.EOF when only
// whitespace remains, ErrTruncated for an unterminated quote.
func (t *tokenizer) next() (token, error) {
	for {
		c, err := t.byteAt(t.pos)
		if err != nil {
			return token{}, err
		}
		if !isSpace(c) {
			break
		}
		t.pos++
	}

	start := t.pos
	c, _ := t.byteAt(t.pos)
	if c == '\'' {
		t.pos++
		var sb strings.Builder
		for {
			c, err := t.byteAt(t.pos)
			if err != nil {
				return token{}, fmt.Errorf("%w: unterminated string at offset %d", ErrTruncated, start)
			}
			t.pos++
			if c == '\'' {
				return token{text: sb.String(), quoted: true, off: start}, nil
			}
			sb.WriteByte(c)
		}
	}

	var sb strings.Builder
	for {
		c, err := t.byteAt(t.pos)
		if err != nil || isSpace(c) {
			break
		}
		sb.WriteByte(c)
		t.pos++
	}
	return token{text: sb.String(), off: start}, nil
}

// byteAt returns the byte at absolute offset off, sliding the buffered
// window as needed. Returns io.EOF at or past the source size.
func (t *tokenizer) byteAt(off int64) (byte, error) {
	if off >= t.size {
		return 0, io.EOF
	}
	if off < t.bufStart || off >= t.bufStart+int64(len(t.buf)) {
		if err := t.fill(off); err != nil {
			return 0, err
		}
	}
	return t.buf[off-t.bufStart], nil
}

func (t *tokenizer) fill(off int64) error {
	want := int64(tokenizerBufSize)
	if rem := t.size - off; want > rem {
		want = rem
	}
	if int64(cap(t.buf)) < want {
		t.buf = make([]byte, want)
	}
	t.buf = t.buf[:want]
	n, err := t.src.ReadAt(t.buf, off)
	t.buf = t.buf[:n]
	t.bufStart = off
	if n == 0 {
		if err == nil || err == io.EOF {
			return io.EOF
		}
		return err
	}
	return nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// cursor returns the tokenizer carrying the Reader's scan position.
func (r *Reader) cursor() *tokenizer {
	if r.toks == nil {
		r.toks = newTokenizer(r.src, r.size, r.pos)
	}
	return r.toks
}

func (r *Reader) readHeaderText() (Header, int64, error) {
	toks := r.cursor()

	nameTok, err := toks.next()
	if err != nil {
		r.pos = toks.pos
		return Header{}, 0, err
	}
	if !nameTok.quoted {
		return Header{}, 0, fmt.Errorf("%w: keyword name %q at offset %d is not quoted", ErrCorrupt, nameTok.text, nameTok.off)
	}
	if len(nameTok.text) > NameLen {
		return Header{}, 0, fmt.Errorf("%w: keyword name %q", ErrStringTooLong, nameTok.text)
	}

	countTok, err := toks.next()
	if err != nil {
		return Header{}, 0, headerCutShort(nameTok.off, err)
	}
	count, err := strconv.ParseInt(countTok.text, 10, 32)
	if err != nil || countTok.quoted {
		return Header{}, 0, fmt.Errorf("%w: bad element count %q at offset %d", ErrCorrupt, countTok.text, countTok.off)
	}

	typeTok, err := toks.next()
	if err != nil {
		return Header{}, 0, headerCutShort(nameTok.off, err)
	}
	if !typeTok.quoted {
		return Header{}, 0, fmt.Errorf("%w: type mnemonic %q at offset %d is not quoted", ErrCorrupt, typeTok.text, typeTok.off)
	}

	var name [NameLen]byte
	copy(name[:], "        ")
	copy(name[:], nameTok.text)
	h, err := parseHeaderFields(name[:], int32(count), strings.TrimRight(typeTok.text, " "), nameTok.off)
	if err != nil {
		return Header{}, 0, err
	}
	if err := r.checkDeclaredSize(h); err != nil {
		return Header{}, 0, err
	}

	r.pos = toks.pos
	return h, r.pos, nil
}

func headerCutShort(off int64, err error) error {
	if err == io.EOF {
		return fmt.Errorf("%w: header at offset %d cut short", ErrTruncated, off)
	}
	return err
}

// skipPayloadText advances past the payload of h by consuming one
// token per element. Values are not parsed here; a record reachable by
// the scan is validated only when its payload is materialized.
func (r *Reader) skipPayloadText(h Header) (int64, error) {
	toks := r.cursor()
	n := h.Count
	if h.Type == TypeMess {
		n = 0
	}
	for range n {
		if _, err := toks.next(); err != nil {
			r.pos = toks.pos
			if err == io.EOF {
				return r.pos, fmt.Errorf("%w: %s payload ends early", ErrTruncated, h.Name)
			}
			return r.pos, err
		}
	}
	r.pos = toks.pos
	return r.pos, nil
}

// decodeTextPayload decodes the raw text span of a payload located by
// an earlier scan.
func decodeTextPayload(h Header, raw []byte) (Payload, error) {
	toks := newTokenizer(bytes.NewReader(raw), int64(len(raw)), 0)
	got := 0
	next := func() (token, error) {
		tok, err := toks.next()
		if err == io.EOF {
			return token{}, fmt.Errorf("%w: %s payload ends after %d of %d elements", ErrTruncated, h.Name, got, h.Count)
		}
		if err == nil {
			got++
		}
		return tok, err
	}

	switch h.Type {
	case TypeInte:
		out := make([]int32, 0, h.Count)
		for range h.Count {
			tok, err := next()
			if err != nil {
				return Payload{}, err
			}
			v, perr := strconv.ParseInt(tok.text, 10, 32)
			if perr != nil || tok.quoted {
				return Payload{}, badElem(h, tok)
			}
			out = append(out, int32(v))
		}
		return NewInts(out), nil

	case TypeReal:
		out := make([]float32, 0, h.Count)
		for range h.Count {
			tok, err := next()
			if err != nil {
				return Payload{}, err
			}
			v, perr := parseFortranFloat(tok.text, 32)
			if perr != nil || tok.quoted {
				return Payload{}, badElem(h, tok)
			}
			out = append(out, float32(v))
		}
		return NewReals(out), nil

	case TypeDoub:
		out := make([]float64, 0, h.Count)
		for range h.Count {
			tok, err := next()
			if err != nil {
				return Payload{}, err
			}
			v, perr := parseFortranFloat(tok.text, 64)
			if perr != nil || tok.quoted {
				return Payload{}, badElem(h, tok)
			}
			out = append(out, v)
		}
		return NewDoubs(out), nil

	case TypeLogi:
		out := make([]bool, 0, h.Count)
		for range h.Count {
			tok, err := next()
			if err != nil {
				return Payload{}, err
			}
			switch tok.text {
			case "T":
				out = append(out, true)
			case "F":
				out = append(out, false)
			default:
				return Payload{}, badElem(h, tok)
			}
		}
		return NewBools(out), nil

	case TypeChar:
		out := make([]string, 0, h.Count)
		for range h.Count {
			tok, err := next()
			if err != nil {
				return Payload{}, err
			}
			if !tok.quoted || len(tok.text) > NameLen {
				return Payload{}, badElem(h, tok)
			}
			out = append(out, strings.TrimRight(tok.text, " "))
		}
		return NewStrings(out), nil

	default:
		return Payload{}, fmt.Errorf("%w: unhandled type %d", ErrCorrupt, h.Type)
	}
}

func badElem(h Header, tok token) error {
	return fmt.Errorf("%w: bad %s element %q at offset %d", ErrCorrupt, h.Type, tok.text, tok.off)
}

// parseFortranFloat parses a float accepting Fortran D exponents
// ("0.314D+01") alongside the usual E form.
func parseFortranFloat(s string, bits int) (float64, error) {
	if i := strings.IndexAny(s, "Dd"); i >= 0 {
		s = s[:i] + "E" + s[i+1:]
	}
	return strconv.ParseFloat(s, bits)
}

// writeTextHeader serializes a formatted header line.
func writeTextHeader(w io.Writer, h Header) error {
	if len(h.Name) > NameLen {
		return fmt.Errorf("%w: keyword name %q", ErrStringTooLong, h.Name)
	}
	_, err := fmt.Fprintf(w, " '%-8s' %11d '%-4s'\n", h.Name, h.Count, h.Type.String())
	return err
}

// Formatted column layouts per element type.
const (
	colsInte = 6
	colsReal = 4
	colsDoub = 3
	colsLogi = 25
	colsChar = 7
)

// writeTextPayload serializes a payload in fixed columns.
func writeTextPayload(w io.Writer, p Payload) error {
	switch p.Type() {
	case TypeInte:
		v := p.Ints()
		return writeTextColumns(w, len(v), colsInte, func(wr io.Writer, i int) error {
			_, err := fmt.Fprintf(wr, " %11d", v[i])
			return err
		})

	case TypeReal:
		v := p.Reals()
		return writeTextColumns(w, len(v), colsReal, func(wr io.Writer, i int) error {
			_, err := fmt.Fprintf(wr, " %15.7E", v[i])
			return err
		})

	case TypeDoub:
		// ECLIPSE writes doubles with a Fortran D exponent.
		v := p.Doubs()
		return writeTextColumns(w, len(v), colsDoub, func(wr io.Writer, i int) error {
			s := strconv.FormatFloat(v[i], 'E', 14, 64)
			s = strings.Replace(s, "E", "D", 1)
			_, err := fmt.Fprintf(wr, " %22s", s)
			return err
		})

	case TypeLogi:
		v := p.Bools()
		return writeTextColumns(w, len(v), colsLogi, func(wr io.Writer, i int) error {
			s := "  F"
			if v[i] {
				s = "  T"
			}
			_, err := io.WriteString(wr, s)
			return err
		})

	case TypeChar:
		v := p.Strings()
		for _, s := range v {
			if len(s) > NameLen {
				return fmt.Errorf("%w: %q", ErrStringTooLong, s)
			}
		}
		return writeTextColumns(w, len(v), colsChar, func(wr io.Writer, i int) error {
			_, err := fmt.Fprintf(wr, " '%-8s'", v[i])
			return err
		})

	case TypeMess:
		return nil

	default:
		return fmt.Errorf("%w: unhandled type %d", ErrCorrupt, p.Type())
	}
}

func writeTextColumns(w io.Writer, count, perLine int, elem func(io.Writer, int) error) error {
	for i := range count {
		if err := elem(w, i); err != nil {
			return err
		}
		if (i+1)%perLine == 0 || i == count-1 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
	}
	return nil
}
