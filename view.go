package kwfile

import (
	"iter"

	"github.com/petrolog/kwfile/kwio"
)

// View is a contiguous, delimiter-bounded window of the file's global
// record sequence, re-indexed locally so queries address it the same
// way they address the whole file. A view spans from one occurrence of
// its delimiter keyword up to but excluding the next, or the end of
// the file.
//
// Views alias the records owned by their File: they hold no source
// resource of their own, stay valid until the File is closed, and are
// always derived from the global index, never from another view.
//
// View query methods mirror those on [File] for consistency.
type View struct {
	f     *File
	name  string
	occ   int
	start int
	idx   *indexMap
}

// index returns the view's local index, or the empty index once the
// owning File is closed: closing a File invalidates its views.
func (v *View) index() *indexMap {
	if v.f.closed.Load() {
		return emptyIndex
	}
	return v.idx
}

// Delimiter returns the keyword name that bounds this view.
func (v *View) Delimiter() string { return v.name }

// Ordinal returns which occurrence of the delimiter opened this view.
func (v *View) Ordinal() int { return v.occ }

// Start returns the global position of the view's first record.
func (v *View) Start() int { return v.start }

// Len returns the number of records in the view.
func (v *View) Len() int { return v.index().len() }

// Has reports whether the view contains at least one record named name.
func (v *View) Has(name string) bool { return v.index().has(name) }

// Count returns the number of records named name in the view,
// 0 when absent.
func (v *View) Count(name string) int { return v.index().count(name) }

// NumDistinct returns the number of distinct keyword names in the view.
func (v *View) NumDistinct() int { return v.index().numDistinct() }

// DistinctName returns the ith distinct name in first-occurrence
// order. Panics if i is out of range or the File is closed.
func (v *View) DistinctName(i int) string {
	v.f.mustBeOpen()
	return v.idx.distinctName(i)
}

// Record returns the record at view-local position i.
// Panics if i is out of range or the File is closed.
func (v *View) Record(i int) *Record {
	v.f.mustBeOpen()
	return v.idx.at(i)
}

// Named returns the ith record named name within the view. Panics if
// name is absent, ith is out of range, or the File is closed; check
// Has or Count first.
func (v *View) Named(name string, ith int) *Record {
	v.f.mustBeOpen()
	return v.idx.at(v.idx.position(name, ith))
}

// Occurrence returns which occurrence of its own name the record at
// view-local position i is. Panics if i is out of range or the File
// is closed.
func (v *View) Occurrence(i int) int {
	v.f.mustBeOpen()
	return v.idx.occurrence(i)
}

// Names iterates the view's distinct keyword names in first-occurrence
// order.
func (v *View) Names() iter.Seq[string] { return v.index().iterNames() }

// Records iterates the view's records in file order.
func (v *View) Records() iter.Seq[*Record] { return v.index().iterRecords() }

// WriteRecords re-encodes the view's records from view-local position
// offset onward through w, materializing each payload in turn. The
// destination encoding may differ from the source's; payloads are
// decoded and re-encoded, so this converts between the formatted and
// unformatted variants and between byte orders.
func (v *View) WriteRecords(w *kwio.Writer, offset int) error {
	if v.f.closed.Load() {
		return ErrClosed
	}
	return v.idx.writeRecords(w, offset)
}
