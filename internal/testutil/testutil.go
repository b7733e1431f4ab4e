// Package testutil provides fixture builders and byte sources for
// keyword-file tests.
package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/petrolog/kwfile/kwio"
)

// Rec pairs a keyword name with its payload for fixture building.
type Rec struct {
	Name    string
	Payload kwio.Payload
}

// Encode serializes recs into one keyword stream. A nil order selects
// big-endian.
func Encode(tb testing.TB, format kwio.Format, order binary.ByteOrder, recs []Rec) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w := kwio.NewWriter(&buf, format, order)
	for _, r := range recs {
		if err := w.WriteRecord(r.Name, r.Payload); err != nil {
			tb.Fatalf("encode fixture record %s: %v", r.Name, err)
		}
	}
	return buf.Bytes()
}

// WriteFile writes data to dir/name and returns the full path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}

// StepFile returns records shaped like a unified result file: one
// SEQHDR, then steps repetitions of MINISTEP followed by PARAMS. The
// MINISTEP payload carries the step ordinal so tests can tell blocks
// apart.
func StepFile(steps int) []Rec {
	recs := []Rec{{Name: "SEQHDR", Payload: kwio.NewInts([]int32{600})}}
	for i := range steps {
		recs = append(recs,
			Rec{Name: "MINISTEP", Payload: kwio.NewInts([]int32{int32(i)})},
			Rec{Name: "PARAMS", Payload: kwio.NewReals([]float32{float32(i), float32(i) + 0.5})},
		)
	}
	return recs
}

// Source is an in-memory ByteSource.
type Source struct {
	data     []byte
	sourceID string

	// reads counts ReadAt calls; bytesRead sums bytes served.
	reads     atomic.Int64
	bytesRead atomic.Int64
}

// NewSource returns a byte source backed by data, identified by a
// digest of its content.
func NewSource(data []byte) *Source {
	sum := sha256.Sum256(data)
	return &Source{
		data:     data,
		sourceID: "mem:" + hex.EncodeToString(sum[:8]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	s.reads.Add(1)
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	s.bytesRead.Add(int64(n))
	if off+int64(n) >= int64(len(s.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (s *Source) Size() int64 {
	return int64(len(s.data))
}

// SourceID returns a stable identifier for the source data.
func (s *Source) SourceID() string {
	return s.sourceID
}

// Bytes returns the backing slice for tests that need to mutate data.
func (s *Source) Bytes() []byte {
	return s.data
}

// Reads returns the number of ReadAt calls served so far.
func (s *Source) Reads() int64 {
	return s.reads.Load()
}

// BytesRead returns the total bytes served so far.
func (s *Source) BytesRead() int64 {
	return s.bytesRead.Load()
}

// ResetCounters zeroes the read counters.
func (s *Source) ResetCounters() {
	s.reads.Store(0)
	s.bytesRead.Store(0)
}
