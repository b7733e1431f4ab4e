package kwfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrolog/kwfile/internal/testutil"
	"github.com/petrolog/kwfile/kwio"
)

// restartRecords is a restart-shaped fixture with uneven step
// contents: not every step carries every solution array.
//
//	0 INTEHEAD   4 MINISTEP(1)
//	1 MINISTEP(0) 5 PRESSURE
//	2 PRESSURE   6 MINISTEP(2)
//	3 SWAT       7 SWAT
func restartRecords() []testutil.Rec {
	return []testutil.Rec{
		{Name: "INTEHEAD", Payload: kwio.NewInts([]int32{100, 200})},
		{Name: "MINISTEP", Payload: kwio.NewInts([]int32{0})},
		{Name: "PRESSURE", Payload: kwio.NewReals([]float32{1, 2, 3})},
		{Name: "SWAT", Payload: kwio.NewReals([]float32{0.1, 0.2, 0.3})},
		{Name: "MINISTEP", Payload: kwio.NewInts([]int32{1})},
		{Name: "PRESSURE", Payload: kwio.NewReals([]float32{4, 5, 6})},
		{Name: "MINISTEP", Payload: kwio.NewInts([]int32{2})},
		{Name: "SWAT", Payload: kwio.NewReals([]float32{0.4, 0.5, 0.6})},
	}
}

func TestBlock_Bounds(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())

	tests := []struct {
		name      string
		occ       int
		wantStart int
		wantLen   int
	}{
		{"first step", 0, 1, 3},
		{"middle step", 1, 4, 2},
		{"last step extends to end", 2, 6, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, ok := f.Block("MINISTEP", tt.occ)
			require.True(t, ok)
			assert.Equal(t, "MINISTEP", v.Delimiter())
			assert.Equal(t, tt.occ, v.Ordinal())
			assert.Equal(t, tt.wantStart, v.Start())
			assert.Equal(t, tt.wantLen, v.Len())
			assert.Equal(t, "MINISTEP", v.Record(0).Name())
		})
	}
}

func TestBlock_ViewsAreRetained(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())

	v1, ok := f.Block("MINISTEP", 1)
	require.True(t, ok)
	v2, ok := f.Block("MINISTEP", 1)
	require.True(t, ok)
	assert.Same(t, v1, v2)

	other, ok := f.Block("MINISTEP", 2)
	require.True(t, ok)
	assert.NotSame(t, v1, other)
}

func TestBlock_SharesRecordHandles(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())

	v, ok := f.Block("MINISTEP", 0)
	require.True(t, ok)

	// A view re-indexes a window of the scanned records; it does not
	// copy them.
	assert.Same(t, f.Record(1), v.Record(0))
	assert.Same(t, f.Record(3), v.Record(2))
}

func TestBlock_DerivationIgnoresActiveSelection(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())

	// Select the middle step: the active index has no SWAT records.
	require.True(t, f.SelectBlock("MINISTEP", 1))
	require.False(t, f.Has("SWAT"))

	// Blocks still derive from the global index, so SWAT's block is
	// reachable and spans from position 3 to the next SWAT.
	v, ok := f.Block("SWAT", 0)
	require.True(t, ok)
	assert.Equal(t, 3, v.Start())
	assert.Equal(t, 4, v.Len())

	// So is a later step the active selection cannot see.
	later, ok := f.Block("MINISTEP", 2)
	require.True(t, ok)
	assert.Equal(t, 6, later.Start())
}

func TestView_QueriesAreViewLocal(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())

	v, ok := f.Block("MINISTEP", 0)
	require.True(t, ok)

	assert.Equal(t, 3, v.Len())
	assert.True(t, v.Has("PRESSURE"))
	assert.False(t, v.Has("INTEHEAD"), "records before the delimiter are outside the block")
	assert.Equal(t, 1, v.Count("SWAT"))
	assert.Equal(t, 3, v.NumDistinct())
	assert.Equal(t, "MINISTEP", v.DistinctName(0))
	assert.Equal(t, "PRESSURE", v.DistinctName(1))

	p, err := v.Named("PRESSURE", 0).Payload()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, p.Reals())

	// Each step's view resolves the same name to its own records.
	v1, ok := f.Block("MINISTEP", 1)
	require.True(t, ok)
	p1, err := v1.Named("PRESSURE", 0).Payload()
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, p1.Reals())
}

func TestView_OccurrenceIsViewLocal(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())

	v, ok := f.Block("MINISTEP", 2)
	require.True(t, ok)

	// Globally this SWAT is occurrence 1; within the block it is the
	// first and only one.
	assert.Equal(t, 0, v.Occurrence(1))
	assert.Same(t, v.Named("SWAT", 0), f.Named("SWAT", 1))
}

func TestView_Iterators(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())

	v, ok := f.Block("MINISTEP", 0)
	require.True(t, ok)

	var names []string
	for name := range v.Names() {
		names = append(names, name)
	}
	assert.Equal(t, []string{"MINISTEP", "PRESSURE", "SWAT"}, names)

	var order []string
	for rec := range v.Records() {
		order = append(order, rec.Name())
	}
	assert.Equal(t, []string{"MINISTEP", "PRESSURE", "SWAT"}, order)
}

func TestView_UncheckedTierPanics(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())

	v, ok := f.Block("MINISTEP", 1)
	require.True(t, ok)

	assert.Panics(t, func() { v.Record(2) })
	assert.Panics(t, func() { v.Named("SWAT", 0) })
	assert.Panics(t, func() { v.DistinctName(5) })
	assert.Panics(t, func() { v.Occurrence(-1) })
}

func TestView_StepTraversal(t *testing.T) {
	t.Parallel()

	// Walking every MINISTEP block visits each post-prologue record
	// exactly once.
	f := openFixture(t, restartRecords())

	seen := 0
	for occ := range f.Count("MINISTEP") {
		v, ok := f.Block("MINISTEP", occ)
		require.True(t, ok)
		step, err := v.Named("MINISTEP", 0).Payload()
		require.NoError(t, err)
		assert.Equal(t, int32(occ), step.Ints()[0])
		seen += v.Len()
	}
	assert.Equal(t, f.Len()-1, seen, "blocks cover everything after the prologue")
}
