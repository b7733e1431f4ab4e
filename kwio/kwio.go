// Package kwio implements the record codec for ECLIPSE-style keyword
// files: flat streams of records, each an 8-character name, an element
// type, and a typed array payload.
//
// Two encodings exist for the same logical content. The unformatted
// encoding stores Fortran sequential records (4-byte length markers on
// both sides of every record) with big-endian payloads by default; the
// formatted encoding stores the same records as fixed-column text.
// The encoding is a property of the whole file, never negotiated per
// record.
//
// Reader scans headers and decodes payloads from an io.ReaderAt.
// Writer serializes records to an io.Writer. DetectFormat and
// FormatFromPath recover the encoding from content or file naming
// conventions.
package kwio

import "errors"

const (
	// NameLen is the fixed on-disk length of a keyword name. Shorter
	// names are space-padded; Reader returns them trimmed.
	NameLen = 8

	// mnemonicLen is the on-disk length of a type mnemonic ("INTE").
	mnemonicLen = 4

	// Payloads are split into Fortran records of bounded element count.
	blockNumeric = 1000
	blockChar    = 105

	// headerMarker is the Fortran record length of every header record:
	// 8 name bytes + 4 count bytes + 4 mnemonic bytes.
	headerMarker = 16

	// headerSize is the full on-disk size of an unformatted header
	// record, leading and trailing markers included.
	headerSize = 4 + headerMarker + 4
)

// DefaultMaxPayloadSize caps the decoded size of a single payload (256MB).
// Headers declaring a larger payload are treated as corrupt.
const DefaultMaxPayloadSize = 256 << 20

var (
	// ErrCorrupt reports a structurally invalid record: bad length
	// markers, an unknown type mnemonic, a negative count, or an
	// unparseable formatted token.
	ErrCorrupt = errors.New("kwio: corrupt record")

	// ErrTruncated reports a record whose payload ends before the
	// declared element count is satisfied.
	ErrTruncated = errors.New("kwio: truncated record")

	// ErrPayloadTooLarge reports a header declaring a payload beyond
	// the configured size limit.
	ErrPayloadTooLarge = errors.New("kwio: payload exceeds size limit")

	// ErrUnknownFormat reports content that is neither a valid
	// unformatted header nor plausible formatted text.
	ErrUnknownFormat = errors.New("kwio: cannot determine file format")

	// ErrStringTooLong reports a keyword name or CHAR element longer
	// than NameLen bytes.
	ErrStringTooLong = errors.New("kwio: string exceeds 8 characters")
)

// Header describes one keyword record: the trimmed name, the element
// type, and the declared element count. It says nothing about where
// the payload lives; Reader tracks offsets separately.
type Header struct {
	Name  string
	Type  Type
	Count int
}

// Format selects the on-disk encoding of a keyword file.
type Format uint8

const (
	// FormatUnformatted is the binary encoding: Fortran sequential
	// records with length markers and big-endian payloads by default.
	FormatUnformatted Format = iota

	// FormatFormatted is the fixed-column text encoding.
	FormatFormatted
)

// String returns the human-readable name of the format.
func (f Format) String() string {
	switch f {
	case FormatUnformatted:
		return "unformatted"
	case FormatFormatted:
		return "formatted"
	default:
		return "unknown"
	}
}
