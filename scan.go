package kwfile

import "fmt"

// scan runs the single-pass header traversal that populates the global
// index: read a header, wrap it into a Record at its payload offset,
// skip the payload without decoding it, repeat. Any failure to read a
// header ends the scan silently, so a truncated file indexes exactly
// the records whose headers were read in full. A record whose header
// survived but whose payload was cut off is kept with the span that
// remains.
func (f *File) scan() error {
	var records []Record
	for {
		hdr, off, err := f.reader.ReadHeader()
		if err != nil {
			break
		}
		end, err := f.reader.SkipPayload(hdr)
		if err != nil {
			records = append(records, Record{f: f, hdr: hdr, off: off, end: f.reader.Offset()})
			break
		}
		records = append(records, Record{f: f, hdr: hdr, off: off, end: end})
	}

	if len(records) == 0 {
		return fmt.Errorf("%w: scanned %d bytes", ErrNoRecords, f.src.Size())
	}

	f.global = newIndexMap(records)
	f.active = f.global
	f.log().Debug("scanned keyword file",
		"source", f.src.SourceID(),
		"records", len(records),
		"distinct", f.global.numDistinct(),
		"bytes", f.src.Size())
	return nil
}
