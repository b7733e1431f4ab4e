// Package kwfile indexes keyword-record files for lazy random access.
//
// Reservoir simulators emit results as flat sequences of named, typed
// records ("keywords"): restart files, summary files, grids. A single
// unified file can hold thousands of records and many repetitions of
// the same name, one per simulation step. This package scans record
// headers once, builds a name and occurrence index, and defers every
// payload read until a [Record] is asked for it, so querying a
// multi-gigabyte file costs one pass over its headers.
//
// # Quick Start
//
// Open a file and read one record:
//
//	f, err := kwfile.Open("CASE.UNRST")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	if f.Has("PRESSURE") {
//	    p, err := f.Named("PRESSURE", 0).Payload()
//	    if err != nil {
//	        return err
//	    }
//	    use(p.Reals())
//	}
//
// # Blocks
//
// Records belonging to one logical unit, a report step in a unified
// restart file, span from one occurrence of a delimiter keyword to the
// next. SelectBlock narrows all queries to such a window:
//
//	if f.SelectBlock("SEQNUM", 3) {
//	    pressure := f.Named("PRESSURE", 0)
//	    ...
//	}
//	f.SelectGlobal()
//
// Block views are windows into the global index, never copies, and are
// always derived from the global index even while another block is
// selected.
//
// # Snapshots
//
// The scan of a very large file can be persisted with
// [File.SaveIndex] and reused with [OpenWithIndex], which verifies a
// fingerprint of the source before trusting the stored offsets.
//
// # Caching
//
// Payload reads re-read the source by default. WithCache keeps raw
// payload spans in memory or on disk:
//
//	f, err := kwfile.Open("CASE.UNRST",
//	    kwfile.WithCache(cache.NewMemory()),
//	)
package kwfile

//go:generate flatc --go --go-namespace fb -o internal schema/snapshot.fbs
