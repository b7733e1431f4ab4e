package kwfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/petrolog/kwfile/cache"
	"github.com/petrolog/kwfile/kwio"
)

// File indexes a keyword file for lazy access.
//
// Open scans the record headers once, builds the global name index,
// and defers every payload read until a Record asks for it. Queries
// are served by the active index: the global one after Open, or a
// delimiter-bounded block after SelectBlock.
//
// Payload reads go through io.ReaderAt, so concurrent Payload calls on
// one File are safe. SelectBlock, SelectGlobal, and Close mutate File
// state and need external serialization when the File is shared across
// goroutines.
type File struct {
	path   string
	src    ByteSource
	closer io.Closer
	reader *kwio.Reader

	global *indexMap
	active *indexMap
	views  map[blockKey]*View

	cache     cache.Cache        // nil = no caching
	loadGroup singleflight.Group // zero value is valid
	logger    *slog.Logger
	closed    atomic.Bool

	// Lazy computed stats
	statsOnce sync.Once
	stats     Stats

	// Pending reader configuration gathered from options.
	format     kwio.Format
	formatSet  bool
	order      binary.ByteOrder
	maxPayload uint64
	maxSet     bool
}

// blockKey identifies a derived block view.
type blockKey struct {
	name string
	occ  int
}

// log returns the logger, falling back to a discard logger if nil.
func (f *File) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.logger
}

// Open opens and scans the keyword file at path.
//
// The encoding is taken from WithFormat when given, recovered from the
// file extension, or probed from leading content; probing also detects
// the byte order of unformatted files. A file from which no record
// header can be read fails with ErrNoRecords.
//
// The returned File must be closed to release the file handle.
func Open(path string, opts ...Option) (*File, error) {
	fh, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open keyword file: %w", err)
	}
	src, err := newFileSource(fh, "")
	if err != nil {
		fh.Close()
		return nil, err
	}
	f, err := newFile(src, path, opts...)
	if err != nil {
		fh.Close()
		return nil, err
	}
	f.closer = fh
	return f, nil
}

// OpenSource opens and scans a keyword file exposed by an arbitrary
// ByteSource, such as an HTTP range source. Closing the File does not
// close the source.
//
// Without WithFormat the encoding is probed from leading content;
// there is no path to recover it from.
func OpenSource(src ByteSource, opts ...Option) (*File, error) {
	return newFile(src, "", opts...)
}

// OpenAt opens the keyword file at path and selects the block bounded
// by the given occurrence of name. When the block does not exist the
// file is closed and ErrBlockNotFound is returned; OpenAt never
// returns an open File positioned on nothing.
func OpenAt(path, name string, occ int, opts ...Option) (*File, error) {
	f, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	if !f.SelectBlock(name, occ) {
		f.Close()
		return nil, fmt.Errorf("%w: %s occurrence %d in %s", ErrBlockNotFound, name, occ, path)
	}
	return f, nil
}

func newFile(src ByteSource, path string, opts ...Option) (*File, error) {
	f := &File{
		path:  path,
		src:   src,
		views: make(map[blockKey]*View),
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.initReader(); err != nil {
		return nil, err
	}
	if err := f.scan(); err != nil {
		return nil, err
	}
	return f, nil
}

// initReader resolves the encoding and builds the codec reader.
// Resolution order: explicit option, then filename convention, then
// content probe.
func (f *File) initReader() error {
	format := f.format
	order := f.order
	if !f.formatSet {
		var ok bool
		format, ok = kwio.FormatFromPath(f.path)
		if !ok {
			detected, detectedOrder, err := kwio.DetectFormat(f.src, f.src.Size())
			if err != nil {
				return fmt.Errorf("detect format: %w", err)
			}
			format = detected
			if order == nil {
				order = detectedOrder
			}
		}
	}

	readerOpts := []kwio.ReaderOption{kwio.WithFormat(format)}
	if order != nil {
		readerOpts = append(readerOpts, kwio.WithByteOrder(order))
	}
	if f.maxSet {
		readerOpts = append(readerOpts, kwio.WithMaxPayloadSize(f.maxPayload))
	}
	f.reader = kwio.NewReader(f.src, f.src.Size(), readerOpts...)
	return nil
}

// Close releases the underlying source handle and discards the global
// index and every derived view. Close is idempotent.
//
// A closed File is terminal. Operations that return errors, Payload
// and the write and snapshot paths among them, fail with ErrClosed;
// checked queries (Has, Count, Len, Block) degrade to the absent
// result over the discarded index; the unchecked accessors (Record,
// Named, DistinctName, Occurrence) panic, as they do for any violated
// precondition.
func (f *File) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	f.global = emptyIndex
	f.active = emptyIndex
	f.views = nil
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// mustBeOpen guards the unchecked accessors against use after Close.
func (f *File) mustBeOpen() {
	if f.closed.Load() {
		panic("kwfile: use of closed File")
	}
}

// Path returns the path the File was opened from, or "" for a File
// opened from a ByteSource.
func (f *File) Path() string { return f.path }

// Size returns the size of the source stream in bytes.
func (f *File) Size() int64 { return f.src.Size() }

// Format returns the encoding the file was scanned with.
func (f *File) Format() kwio.Format { return f.reader.Format() }

// ByteOrder returns the payload byte order of the unformatted
// encoding.
func (f *File) ByteOrder() binary.ByteOrder { return f.reader.ByteOrder() }

// Block derives the view spanning the given occurrence of name from
// the global index, regardless of which index is active. ok is false
// when name has no such occurrence; that is a normal negative result,
// not an error.
//
// Views are retained by the File, so repeated requests for the same
// block return the same View.
func (f *File) Block(name string, occ int) (*View, bool) {
	key := blockKey{name: name, occ: occ}
	if v, ok := f.views[key]; ok {
		return v, true
	}
	window, start, ok := f.global.block(name, occ)
	if !ok {
		return nil, false
	}
	v := &View{f: f, name: name, occ: occ, start: start, idx: newIndexMap(window)}
	f.views[key] = v
	f.log().Debug("derived block view",
		"delimiter", name,
		"occurrence", occ,
		"start", start,
		"records", v.Len())
	return v, true
}

// SelectBlock derives the block for the given occurrence of name and
// makes it the active index. When the block does not exist the active
// index is left unchanged and SelectBlock returns false.
func (f *File) SelectBlock(name string, occ int) bool {
	v, ok := f.Block(name, occ)
	if !ok {
		return false
	}
	f.active = v.idx
	return true
}

// SelectGlobal makes the global index active again.
func (f *File) SelectGlobal() {
	f.active = f.global
}

// Len returns the number of records in the active index.
func (f *File) Len() int { return f.active.len() }

// Has reports whether the active index contains at least one record
// named name.
func (f *File) Has(name string) bool { return f.active.has(name) }

// Count returns the number of records named name in the active index,
// 0 when absent.
func (f *File) Count(name string) int { return f.active.count(name) }

// NumDistinct returns the number of distinct keyword names in the
// active index.
func (f *File) NumDistinct() int { return f.active.numDistinct() }

// DistinctName returns the ith distinct name in first-occurrence
// order. Panics if i is out of range or the File is closed.
func (f *File) DistinctName(i int) string {
	f.mustBeOpen()
	return f.active.distinctName(i)
}

// Record returns the record at position i of the active index.
// Panics if i is out of range or the File is closed.
func (f *File) Record(i int) *Record {
	f.mustBeOpen()
	return f.active.at(i)
}

// Named returns the ith record named name in the active index. Panics
// if name is absent, ith is out of range, or the File is closed;
// callers needing safety check with Has or Count first.
func (f *File) Named(name string, ith int) *Record {
	f.mustBeOpen()
	return f.active.at(f.active.position(name, ith))
}

// Occurrence returns which occurrence of its own name the record at
// position i of the active index is. Panics if i is out of range or
// the File is closed.
func (f *File) Occurrence(i int) int {
	f.mustBeOpen()
	return f.active.occurrence(i)
}

// Names iterates the active index's distinct keyword names in
// first-occurrence order.
func (f *File) Names() iter.Seq[string] { return f.active.iterNames() }

// Records iterates the active index's records in file order.
func (f *File) Records() iter.Seq[*Record] { return f.active.iterRecords() }
