package kwfile

import "github.com/petrolog/kwfile/kwio"

// Stats aggregates header metadata over a file's global index.
type Stats struct {
	// Records is the total number of indexed records.
	Records int

	// Distinct is the number of distinct keyword names.
	Distinct int

	// Elements is the sum of declared element counts.
	Elements int64

	// PayloadBytes is the total byte span of payloads, record framing
	// included.
	PayloadBytes int64

	// ByType counts records per element type.
	ByType map[kwio.Type]int
}

// Stats returns aggregate statistics for the whole file, independent
// of the active index. Headers only; no payload is read. Computed on
// first call; the result is cached. A closed File reports zero stats,
// its index having been discarded.
func (f *File) Stats() Stats {
	if f.closed.Load() {
		return Stats{}
	}
	f.statsOnce.Do(func() {
		s := Stats{
			Records:  f.global.len(),
			Distinct: f.global.numDistinct(),
			ByType:   make(map[kwio.Type]int),
		}
		for i := range f.global.records {
			rec := &f.global.records[i]
			s.Elements += int64(rec.hdr.Count)
			s.PayloadBytes += rec.end - rec.off
			s.ByType[rec.hdr.Type]++
		}
		f.stats = s
	})
	return f.stats
}
