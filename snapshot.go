package kwfile

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"

	"github.com/petrolog/kwfile/internal/fb"
	"github.com/petrolog/kwfile/kwio"
)

// An index snapshot persists the result of a scan so a large file can
// be reopened without re-reading every record header. A snapshot is a
// small envelope (magic, version, compression) around a
// FlatBuffers-encoded record list plus a fingerprint of the source it
// was taken from: the source size and a digest of the leading bytes.
// OpenWithIndex refuses a snapshot whose fingerprint no longer
// matches with ErrStaleIndex.

const (
	snapshotMagic   = "KWIX"
	snapshotVersion = 1

	// Envelope: magic, version byte, compression byte.
	snapshotHeaderLen = len(snapshotMagic) + 2

	// fingerprintLen bounds how much leading content the staleness
	// digest covers. Simulator outputs are appended or rewritten
	// wholesale, so the leading bytes plus the exact size pin the
	// content without hashing multi-gigabyte files.
	fingerprintLen = 64 << 10

	// maxSnapshotSize caps the decompressed snapshot payload.
	maxSnapshotSize = 256 << 20
)

// Compression identifies the codec applied to snapshot payloads.
type Compression uint8

// Supported snapshot compression codecs.
const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionZstd
)

// String returns the codec name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// SnapshotOption configures SaveIndex.
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	compression Compression
}

// SnapshotWithCompression sets the snapshot payload compression
// (default: none).
func SnapshotWithCompression(c Compression) SnapshotOption {
	return func(cfg *snapshotConfig) {
		cfg.compression = c
	}
}

// SaveIndex writes a snapshot of the global index to path.
//
// The snapshot always covers the global index, whichever index is
// active; block views are re-derived cheaply after OpenWithIndex. The
// file is written atomically via a temp file and rename; parent
// directories are created as needed.
func (f *File) SaveIndex(path string, opts ...SnapshotOption) error {
	if f.closed.Load() {
		return ErrClosed
	}

	cfg := snapshotConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	fp, err := fingerprintSource(f.src)
	if err != nil {
		return fmt.Errorf("fingerprint source: %w", err)
	}

	payload, err := compressSnapshot(f.encodeSnapshot(fp), cfg.compression)
	if err != nil {
		return err
	}

	data := make([]byte, 0, snapshotHeaderLen+len(payload))
	data = append(data, snapshotMagic...)
	data = append(data, snapshotVersion, byte(cfg.compression))
	data = append(data, payload...)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write index snapshot: %w", err)
	}

	f.log().Info("saved index snapshot",
		"path", path,
		"records", f.global.len(),
		"compression", cfg.compression.String(),
		"bytes", len(data))
	return nil
}

// OpenWithIndex opens the keyword file at path using the index
// snapshot at indexPath instead of scanning.
//
// The snapshot's fingerprint is verified against the live file;
// a mismatch in size or leading-content digest fails with
// ErrStaleIndex. The encoding and byte order recorded in the snapshot
// override any WithFormat or WithByteOrder option, since the record
// offsets were computed under them.
func OpenWithIndex(path, indexPath string, opts ...Option) (*File, error) {
	snapData, err := os.ReadFile(indexPath) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("read index snapshot: %w", err)
	}
	snap, err := decodeSnapshot(snapData)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open keyword file: %w", err)
	}
	// The fingerprint digest identifies the content, so reuse it as
	// the source ID: cached payload spans survive reopening.
	src, err := newFileSource(fh, snap.sourceDigest.String())
	if err != nil {
		fh.Close()
		return nil, err
	}

	f, err := openSnapshot(src, path, snap, opts...)
	if err != nil {
		fh.Close()
		return nil, err
	}
	f.closer = fh
	return f, nil
}

// OpenSourceWithIndex is OpenWithIndex for an arbitrary ByteSource.
// Closing the File does not close the source.
func OpenSourceWithIndex(src ByteSource, snapData []byte, opts ...Option) (*File, error) {
	snap, err := decodeSnapshot(snapData)
	if err != nil {
		return nil, err
	}
	return openSnapshot(src, "", snap, opts...)
}

func openSnapshot(src ByteSource, path string, snap *snapshot, opts ...Option) (*File, error) {
	if src.Size() != snap.sourceSize {
		return nil, fmt.Errorf("%w: source is %d bytes, snapshot took %d", ErrStaleIndex, src.Size(), snap.sourceSize)
	}
	fp, err := fingerprintSource(src)
	if err != nil {
		return nil, fmt.Errorf("fingerprint source: %w", err)
	}
	if fp != snap.sourceDigest {
		return nil, fmt.Errorf("%w: source digest %s, snapshot took %s", ErrStaleIndex, fp, snap.sourceDigest)
	}

	f := &File{
		path:  path,
		src:   src,
		views: make(map[blockKey]*View),
	}
	for _, opt := range opts {
		opt(f)
	}

	readerOpts := []kwio.ReaderOption{
		kwio.WithFormat(snap.format),
		kwio.WithByteOrder(snap.order),
	}
	if f.maxSet {
		readerOpts = append(readerOpts, kwio.WithMaxPayloadSize(f.maxPayload))
	}
	f.reader = kwio.NewReader(src, src.Size(), readerOpts...)

	records := make([]Record, len(snap.records))
	for i, sr := range snap.records {
		records[i] = Record{f: f, hdr: sr.hdr, off: sr.off, end: sr.end}
	}
	f.global = newIndexMap(records)
	f.active = f.global
	f.log().Debug("loaded index snapshot",
		"source", src.SourceID(),
		"records", len(records),
		"distinct", f.global.numDistinct())
	return f, nil
}

// snapshot is the decoded form of a snapshot file.
type snapshot struct {
	sourceSize   int64
	sourceDigest digest.Digest
	format       kwio.Format
	order        binary.ByteOrder
	records      []snapshotRecord
}

type snapshotRecord struct {
	hdr kwio.Header
	off int64
	end int64
}

// encodeSnapshot serializes the global index into a FlatBuffers
// buffer.
func (f *File) encodeSnapshot(fp digest.Digest) []byte {
	builder := flatbuffers.NewBuilder(1024)
	global := f.global

	recordOffsets := make([]flatbuffers.UOffsetT, len(global.records))
	for i := range global.records {
		rec := &global.records[i]
		nameOffset := builder.CreateString(rec.hdr.Name)

		fb.RecordStart(builder)
		fb.RecordAddName(builder, nameOffset)
		fb.RecordAddTag(builder, byte(rec.hdr.Type))
		fb.RecordAddCount(builder, int32(rec.hdr.Count)) //nolint:gosec // counts are parsed from int32
		fb.RecordAddOffset(builder, rec.off)
		fb.RecordAddSize(builder, rec.end-rec.off)
		recordOffsets[i] = fb.RecordEnd(builder)
	}

	fb.SnapshotStartRecordsVector(builder, len(recordOffsets))
	for i := len(recordOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(recordOffsets[i])
	}
	recordsOffset := builder.EndVector(len(recordOffsets))

	digestOffset := builder.CreateString(fp.String())

	fb.SnapshotStart(builder)
	fb.SnapshotAddVersion(builder, snapshotVersion)
	fb.SnapshotAddSourceSize(builder, f.src.Size())
	fb.SnapshotAddSourceDigest(builder, digestOffset)
	fb.SnapshotAddFormat(builder, byte(f.reader.Format()))
	fb.SnapshotAddByteOrder(builder, orderByte(f.reader.ByteOrder()))
	fb.SnapshotAddRecords(builder, recordsOffset)
	builder.Finish(fb.SnapshotEnd(builder))
	return builder.FinishedBytes()
}

// decodeSnapshot parses a snapshot file: envelope, decompression, then
// the FlatBuffers record list.
func decodeSnapshot(data []byte) (snap *snapshot, err error) {
	if len(data) < snapshotHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadSnapshot, len(data))
	}
	if string(data[:len(snapshotMagic)]) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadSnapshot)
	}
	if data[4] != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, data[4])
	}
	payload, err := decompressSnapshot(data[snapshotHeaderLen:], Compression(data[5]))
	if err != nil {
		return nil, err
	}

	// FlatBuffers accessors index into the buffer without bounds
	// proofs; a corrupt payload surfaces as a panic.
	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = fmt.Errorf("%w: %v", ErrBadSnapshot, r)
		}
	}()

	root := fb.GetRootAsSnapshot(payload, 0)
	dgst, err := digest.Parse(string(root.SourceDigest()))
	if err != nil {
		return nil, fmt.Errorf("%w: source digest: %v", ErrBadSnapshot, err)
	}

	n := root.RecordsLength()
	if n == 0 {
		return nil, fmt.Errorf("%w: no records", ErrBadSnapshot)
	}
	records := make([]snapshotRecord, 0, n)
	var fbRec fb.Record
	for i := 0; i < n; i++ {
		if !root.Records(&fbRec, i) {
			return nil, fmt.Errorf("%w: record %d missing", ErrBadSnapshot, i)
		}
		typ := kwio.Type(fbRec.Tag())
		if typ > kwio.TypeMess {
			return nil, fmt.Errorf("%w: record %d has type tag %d", ErrBadSnapshot, i, fbRec.Tag())
		}
		if fbRec.Count() < 0 || fbRec.Offset() < 0 || fbRec.Size() < 0 {
			return nil, fmt.Errorf("%w: record %d has a negative field", ErrBadSnapshot, i)
		}
		records = append(records, snapshotRecord{
			hdr: kwio.Header{
				Name:  string(fbRec.Name()),
				Type:  typ,
				Count: int(fbRec.Count()),
			},
			off: fbRec.Offset(),
			end: fbRec.Offset() + fbRec.Size(),
		})
	}

	format := kwio.Format(root.Format())
	if format > kwio.FormatFormatted {
		return nil, fmt.Errorf("%w: format byte %d", ErrBadSnapshot, root.Format())
	}

	return &snapshot{
		sourceSize:   root.SourceSize(),
		sourceDigest: dgst,
		format:       format,
		order:        orderFromByte(root.ByteOrder()),
		records:      records,
	}, nil
}

// fingerprintSource digests the leading bytes of the source. Together
// with the source size this pins the content a snapshot was taken
// from.
func fingerprintSource(src ByteSource) (digest.Digest, error) {
	n := min(src.Size(), fingerprintLen)
	buf := make([]byte, n)
	if n > 0 {
		if m, err := src.ReadAt(buf, 0); int64(m) < n {
			return "", fmt.Errorf("read leading %d bytes: %w", n, err)
		}
	}
	return digest.FromBytes(buf), nil
}

func compressSnapshot(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("kwfile: unknown compression %d", c)
	}
}

func decompressSnapshot(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrBadSnapshot, err)
		}
		return out, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(maxSnapshotSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrBadSnapshot, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrBadSnapshot, c)
	}
}

func orderByte(order binary.ByteOrder) byte {
	if order == binary.ByteOrder(binary.LittleEndian) {
		return 1
	}
	return 0
}

func orderFromByte(b byte) binary.ByteOrder {
	if b == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// writeFileAtomic writes data to a temp file then renames to target,
// ensuring atomic replacement of the target file.
func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".kwfile-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
