package kwio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Simulator output extensions with a fixed encoding. Step extensions
// (X0012, F0012 and the summary S/A variants) are matched separately.
var (
	formattedExts = map[string]bool{
		"FUNRST": true, "FUNSMRY": true, "FSMSPEC": true, "FINIT": true,
		"FEGRID": true, "FGRID": true, "FRFT": true,
	}
	unformattedExts = map[string]bool{
		"UNRST": true, "UNSMRY": true, "SMSPEC": true, "INIT": true,
		"EGRID": true, "GRID": true, "RFT": true,
	}
)

// FormatFromPath recovers the file encoding from simulator naming
// conventions. The second return is false when the extension is not a
// recognized convention, in which case content probing with
// DetectFormat is the fallback.
func FormatFromPath(path string) (Format, bool) {
	ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
	switch {
	case formattedExts[ext]:
		return FormatFormatted, true
	case unformattedExts[ext]:
		return FormatUnformatted, true
	}
	if len(ext) == 5 && allDigits(ext[1:]) {
		switch ext[0] {
		case 'F', 'A':
			return FormatFormatted, true
		case 'X', 'S':
			return FormatUnformatted, true
		}
	}
	return 0, false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// DetectFormat probes leading content to recover the encoding and, for
// unformatted files, the byte order. An unformatted file necessarily
// opens with the 4-byte length marker of its first header record; a
// formatted file opens with whitespace and a quoted keyword name.
func DetectFormat(src io.ReaderAt, size int64) (Format, binary.ByteOrder, error) {
	probe := int64(256)
	if probe > size {
		probe = size
	}
	buf := make([]byte, probe)
	n, err := src.ReadAt(buf, 0)
	if n == 0 {
		if err == nil || err == io.EOF {
			return 0, nil, fmt.Errorf("%w: empty content", ErrUnknownFormat)
		}
		return 0, nil, err
	}
	buf = buf[:n]

	if n >= 4 {
		if binary.BigEndian.Uint32(buf) == headerMarker {
			return FormatUnformatted, binary.BigEndian, nil
		}
		if binary.LittleEndian.Uint32(buf) == headerMarker {
			return FormatUnformatted, binary.LittleEndian, nil
		}
	}

	for _, c := range buf {
		if !isSpace(c) && (c < 0x20 || c > 0x7e) {
			return 0, nil, fmt.Errorf("%w: binary content without a leading record marker", ErrUnknownFormat)
		}
	}
	if trimmed := bytes.TrimLeft(buf, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '\'' {
		return FormatFormatted, binary.BigEndian, nil
	}
	return 0, nil, fmt.Errorf("%w: text content without a leading keyword", ErrUnknownFormat)
}
