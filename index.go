package kwfile

import (
	"fmt"
	"iter"
	"slices"
)

// indexMap indexes an ordered run of records by name. The global map
// owns the full scanned sequence; block views are built over a
// subslice of the same backing array and re-index it locally, so a
// view never copies or mutates handles.
type indexMap struct {
	records []Record
	byName  map[string][]int
	names   []string // distinct names in first-occurrence order
}

// emptyIndex serves queries on a closed File: every checked query
// degrades to the absent result.
var emptyIndex = newIndexMap(nil)

// newIndexMap builds the name index over records in one pass. For
// every name the position list is strictly increasing by
// construction.
func newIndexMap(records []Record) *indexMap {
	m := &indexMap{
		records: records,
		byName:  make(map[string][]int),
	}
	for i := range records {
		name := records[i].hdr.Name
		if _, seen := m.byName[name]; !seen {
			m.names = append(m.names, name)
		}
		m.byName[name] = append(m.byName[name], i)
	}
	return m
}

func (m *indexMap) len() int { return len(m.records) }

func (m *indexMap) has(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// count returns the number of occurrences of name, 0 when absent.
func (m *indexMap) count(name string) int {
	return len(m.byName[name])
}

func (m *indexMap) numDistinct() int { return len(m.names) }

func (m *indexMap) distinctName(i int) string {
	if i < 0 || i >= len(m.names) {
		panic(fmt.Sprintf("kwfile: distinct name index %d out of range [0, %d)", i, len(m.names)))
	}
	return m.names[i]
}

// at returns the record at position i. Panics when i is out of range.
func (m *indexMap) at(i int) *Record {
	if i < 0 || i >= len(m.records) {
		panic(fmt.Sprintf("kwfile: record index %d out of range [0, %d)", i, len(m.records)))
	}
	return &m.records[i]
}

// position returns the position of the ith occurrence of name. Panics
// when name is absent or ith is out of range; callers needing safety
// check with has or count first.
func (m *indexMap) position(name string, ith int) int {
	positions := m.byName[name]
	if ith < 0 || ith >= len(positions) {
		panic(fmt.Sprintf("kwfile: no occurrence %d of keyword %q", ith, name))
	}
	return positions[ith]
}

// occurrence returns which occurrence of its own name the record at
// position pos is. Panics when pos is out of range.
func (m *indexMap) occurrence(pos int) int {
	name := m.at(pos).hdr.Name
	occ := slices.Index(m.byName[name], pos)
	if occ < 0 {
		// Unreachable: newIndexMap records every position.
		panic(fmt.Sprintf("kwfile: position list for %q is missing position %d", name, pos))
	}
	return occ
}

// block returns the half-open window of records spanning the ith
// occurrence of name up to but excluding its next occurrence, or the
// end of the sequence. The window start is returned as a position in
// m. ok is false when name has no ith occurrence.
func (m *indexMap) block(name string, occ int) (window []Record, start int, ok bool) {
	positions := m.byName[name]
	if occ < 0 || occ >= len(positions) {
		return nil, 0, false
	}
	start = positions[occ]
	end := len(m.records)
	if occ+1 < len(positions) {
		end = positions[occ+1]
	}
	return m.records[start:end], start, true
}

// iterNames iterates distinct names in first-occurrence order.
func (m *indexMap) iterNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range m.names {
			if !yield(name) {
				return
			}
		}
	}
}

// iterRecords iterates records in sequence order.
func (m *indexMap) iterRecords() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for i := range m.records {
			if !yield(&m.records[i]) {
				return
			}
		}
	}
}
