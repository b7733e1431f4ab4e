package kwfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/petrolog/kwfile/kwio"
)

// WriteRecords re-encodes the active index's records from local
// position offset onward through w, in order, materializing each
// payload in turn. The destination encoding may differ from the
// source's; payloads are decoded and re-encoded, so this converts
// between the formatted and unformatted variants and between byte
// orders.
//
// The source stream is never written to; a File stays valid while its
// records are re-encoded elsewhere.
func (f *File) WriteRecords(w *kwio.Writer, offset int) error {
	if f.closed.Load() {
		return ErrClosed
	}
	return f.active.writeRecords(w, offset)
}

func (m *indexMap) writeRecords(w *kwio.Writer, offset int) error {
	if offset < 0 || offset > len(m.records) {
		return fmt.Errorf("kwfile: write offset %d out of range [0, %d]", offset, len(m.records))
	}
	for i := offset; i < len(m.records); i++ {
		rec := &m.records[i]
		p, err := rec.Payload()
		if err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
		if err := w.WriteRecord(rec.hdr.Name, p); err != nil {
			return fmt.Errorf("write record %d (%s): %w", i, rec.hdr.Name, err)
		}
	}
	return nil
}

// WriteOption configures WriteFile.
type WriteOption func(*writeConfig)

type writeConfig struct {
	format    kwio.Format
	formatSet bool
	order     binary.ByteOrder
}

// WriteWithFormat forces the destination encoding instead of
// recovering it from the destination filename.
func WriteWithFormat(format kwio.Format) WriteOption {
	return func(c *writeConfig) {
		c.format = format
		c.formatSet = true
	}
}

// WriteWithByteOrder sets the destination byte order for unformatted
// output (default: the source's byte order).
func WriteWithByteOrder(order binary.ByteOrder) WriteOption {
	return func(c *writeConfig) {
		c.order = order
	}
}

// WriteFile writes the active index's records to a new keyword file.
//
// The destination encoding is taken from WriteWithFormat when given,
// recovered from the destination filename, or inherited from the
// source. The file is written atomically via a temp file and rename;
// parent directories are created as needed.
func (f *File) WriteFile(path string, opts ...WriteOption) error {
	if f.closed.Load() {
		return ErrClosed
	}

	cfg := writeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	format := cfg.format
	if !cfg.formatSet {
		var ok bool
		format, ok = kwio.FormatFromPath(path)
		if !ok {
			format = f.reader.Format()
		}
	}
	order := cfg.order
	if order == nil {
		order = f.reader.ByteOrder()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	if err := f.streamRecordsAtomic(path, format, order); err != nil {
		return fmt.Errorf("write keyword file: %w", err)
	}

	f.log().Debug("wrote keyword file",
		"path", path,
		"format", format.String(),
		"records", f.Len())
	return nil
}

// streamRecordsAtomic encodes the active records into a temp file then
// renames it to target, ensuring atomic replacement of the target.
func (f *File) streamRecordsAtomic(target string, format kwio.Format, order binary.ByteOrder) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".kwfile-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := f.WriteRecords(kwio.NewWriter(bw, format, order), 0); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
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
