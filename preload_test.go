package kwfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrolog/kwfile/cache"
	"github.com/petrolog/kwfile/internal/testutil"
	"github.com/petrolog/kwfile/kwio"
)

func TestPreload_WarmsCache(t *testing.T) {
	t.Parallel()

	f, src := openMem(t, typedRecords(), WithCache(cache.NewMemory()))
	src.ResetCounters()

	require.NoError(t, f.Preload(t.Context()))

	// One span read per record with a payload; the MESS record has
	// nothing to load.
	assert.Equal(t, int64(5), src.Reads())

	for rec := range f.Records() {
		_, err := rec.Payload()
		require.NoError(t, err)
	}
	assert.Equal(t, int64(5), src.Reads(), "preloaded payloads must come from the cache")
}

func TestPreload_NamedSubset(t *testing.T) {
	t.Parallel()

	f, src := openMem(t, typedRecords(), WithCache(cache.NewMemory()))
	src.ResetCounters()

	require.NoError(t, f.Preload(t.Context(), "PRESSURE", "ZWEL"))
	assert.Equal(t, int64(2), src.Reads())

	// Absent names are skipped, not errors.
	require.NoError(t, f.Preload(t.Context(), "NOSUCHKW"))
	assert.Equal(t, int64(2), src.Reads())
}

func TestPreload_FollowsActiveSelection(t *testing.T) {
	t.Parallel()

	data := testutil.Encode(t, kwio.FormatUnformatted, nil, restartRecords())
	src := testutil.NewSource(data)
	f, err := OpenSource(src, WithCache(cache.NewMemory()))
	require.NoError(t, err)

	require.True(t, f.SelectBlock("MINISTEP", 1))
	src.ResetCounters()

	require.NoError(t, f.Preload(t.Context()))
	assert.Equal(t, int64(2), src.Reads(), "only the selected block loads")
}

func TestPreload_ReportsDecodeFailures(t *testing.T) {
	t.Parallel()

	recs := []testutil.Rec{
		{Name: "SEQHDR", Payload: kwio.NewInts([]int32{600})},
		{Name: "PARAMS", Payload: kwio.NewReals([]float32{1, 2})},
	}
	data := testutil.Encode(t, kwio.FormatUnformatted, nil, recs)

	f, err := OpenSource(testutil.NewSource(data[:len(data)-8]))
	require.NoError(t, err)

	err = f.Preload(t.Context())
	require.ErrorIs(t, err, kwio.ErrTruncated)
}

func TestPreload_HonorsContext(t *testing.T) {
	t.Parallel()

	f, _ := openMem(t, typedRecords())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := f.Preload(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
