package kwfile

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// preloadConcurrency bounds parallel payload reads during Preload.
const preloadConcurrency = 4

// Preload materializes payloads ahead of use. With no arguments every
// record of the active index is loaded; with names, only records
// bearing those names. Names absent from the active index are
// skipped.
//
// With a cache configured this warms it; without one it verifies that
// every covered payload decodes, which makes Preload a whole-file
// integrity check. Reads are issued through io.ReaderAt from a
// bounded set of goroutines, so Preload is safe alongside concurrent
// Payload calls. The first failure cancels the remaining loads.
func (f *File) Preload(ctx context.Context, names ...string) error {
	if f.closed.Load() {
		return ErrClosed
	}

	positions := f.preloadPositions(names)
	if len(positions) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadConcurrency)
	for _, pos := range positions {
		rec := f.active.at(pos)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := rec.Payload(); err != nil {
				return fmt.Errorf("preload record %d: %w", pos, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.log().Debug("preloaded payloads", "records", len(positions))
	return nil
}

func (f *File) preloadPositions(names []string) []int {
	if len(names) == 0 {
		positions := make([]int, f.active.len())
		for i := range positions {
			positions[i] = i
		}
		return positions
	}
	var positions []int
	for _, name := range names {
		positions = append(positions, f.active.byName[name]...)
	}
	return positions
}
