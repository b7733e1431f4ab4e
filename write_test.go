package kwfile

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrolog/kwfile/internal/testutil"
	"github.com/petrolog/kwfile/kwio"
)

// assertSameRecords checks that got carries the same record sequence
// as want: names in order, headers, and payload values.
func assertSameRecords(t *testing.T, want, got *File) {
	t.Helper()

	require.Equal(t, want.Len(), got.Len())
	for i := range want.Len() {
		w, g := want.Record(i), got.Record(i)
		assert.Equal(t, w.Header(), g.Header(), "record %d", i)

		wp, err := w.Payload()
		require.NoError(t, err)
		gp, err := g.Payload()
		require.NoError(t, err)
		assert.Equal(t, wp, gp, "record %d (%s)", i, w.Name())
	}
}

func TestWriteRecords_RoundTrip(t *testing.T) {
	t.Parallel()

	f, _ := openMem(t, typedRecords())

	var buf bytes.Buffer
	require.NoError(t, f.WriteRecords(kwio.NewWriter(&buf, kwio.FormatUnformatted, binary.BigEndian), 0))

	g, err := OpenSource(testutil.NewSource(buf.Bytes()), WithFormat(kwio.FormatUnformatted))
	require.NoError(t, err)
	assertSameRecords(t, f, g)
}

func TestWriteRecords_Offset(t *testing.T) {
	t.Parallel()

	f, _ := openMem(t, typedRecords())

	t.Run("tail", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, f.WriteRecords(kwio.NewWriter(&buf, kwio.FormatUnformatted, binary.BigEndian), 4))

		g, err := OpenSource(testutil.NewSource(buf.Bytes()), WithFormat(kwio.FormatUnformatted))
		require.NoError(t, err)
		assert.Equal(t, 2, g.Len())
		assert.Equal(t, "ZWEL", g.Record(0).Name())
		assert.Equal(t, "ENDSOL", g.Record(1).Name())
	})

	t.Run("offset at end writes nothing", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, f.WriteRecords(kwio.NewWriter(&buf, kwio.FormatUnformatted, binary.BigEndian), f.Len()))
		assert.Zero(t, buf.Len())
	})

	t.Run("out of range", func(t *testing.T) {
		t.Parallel()
		w := kwio.NewWriter(&bytes.Buffer{}, kwio.FormatUnformatted, binary.BigEndian)
		require.Error(t, f.WriteRecords(w, -1))
		require.Error(t, f.WriteRecords(w, f.Len()+1))
	})
}

func TestWriteRecords_FollowsActiveSelection(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())
	require.True(t, f.SelectBlock("MINISTEP", 1))

	var buf bytes.Buffer
	require.NoError(t, f.WriteRecords(kwio.NewWriter(&buf, kwio.FormatUnformatted, binary.BigEndian), 0))

	g, err := OpenSource(testutil.NewSource(buf.Bytes()), WithFormat(kwio.FormatUnformatted))
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, "MINISTEP", g.Record(0).Name())
	assert.Equal(t, "PRESSURE", g.Record(1).Name())
}

func TestView_WriteRecords(t *testing.T) {
	t.Parallel()

	f := openFixture(t, restartRecords())
	v, ok := f.Block("MINISTEP", 0)
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, v.WriteRecords(kwio.NewWriter(&buf, kwio.FormatUnformatted, binary.BigEndian), 0))

	g, err := OpenSource(testutil.NewSource(buf.Bytes()), WithFormat(kwio.FormatUnformatted))
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, "MINISTEP", g.Record(0).Name())
	assert.Equal(t, "SWAT", g.Record(2).Name())

	p, err := g.Named("PRESSURE", 0).Payload()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, p.Reals())
}

func TestWriteFile_FormatConversion(t *testing.T) {
	t.Parallel()

	recs := []testutil.Rec{
		{Name: "INTEHEAD", Payload: kwio.NewInts([]int32{-7, 42})},
		{Name: "PRESSURE", Payload: kwio.NewReals([]float32{251.5, 0.25})},
		{Name: "DOUBHEAD", Payload: kwio.NewDoubs([]float64{0.5, 1e10})},
		{Name: "LOGIHEAD", Payload: kwio.NewBools([]bool{true, false})},
		{Name: "ZWEL", Payload: kwio.NewStrings([]string{"OP1"})},
	}
	f := openFixture(t, recs)
	dir := t.TempDir()

	t.Run("to formatted by extension", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(dir, "CASE.FUNRST")
		require.NoError(t, f.WriteFile(out))

		g, err := Open(out)
		require.NoError(t, err)
		defer g.Close()
		assert.Equal(t, kwio.FormatFormatted, g.Format())
		assertSameRecords(t, f, g)
	})

	t.Run("to little endian", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(dir, "LE.UNRST")
		require.NoError(t, f.WriteFile(out, WriteWithByteOrder(binary.LittleEndian)))

		g, err := Open(out, WithByteOrder(binary.LittleEndian))
		require.NoError(t, err)
		defer g.Close()
		assertSameRecords(t, f, g)
	})

	t.Run("explicit format beats extension", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(dir, "CASE.UNRST")
		require.NoError(t, f.WriteFile(out, WriteWithFormat(kwio.FormatFormatted)))

		g, err := Open(out, WithFormat(kwio.FormatFormatted))
		require.NoError(t, err)
		defer g.Close()
		assertSameRecords(t, f, g)
	})

	t.Run("unrecognized name inherits source format", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(dir, "export.dat")
		require.NoError(t, f.WriteFile(out))

		g, err := Open(out, WithFormat(kwio.FormatUnformatted))
		require.NoError(t, err)
		defer g.Close()
		assertSameRecords(t, f, g)
	})
}

func TestWriteFile_CreatesParentDirectories(t *testing.T) {
	t.Parallel()

	f := openFixture(t, stepRecords())

	out := filepath.Join(t.TempDir(), "deep", "nested", "CASE.UNRST")
	require.NoError(t, f.WriteFile(out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWriteFile_ReplacesExistingFile(t *testing.T) {
	t.Parallel()

	f := openFixture(t, stepRecords())

	out := filepath.Join(t.TempDir(), "CASE.UNRST")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0o600))
	require.NoError(t, f.WriteFile(out))

	g, err := Open(out)
	require.NoError(t, err)
	defer g.Close()
	assert.Equal(t, f.Len(), g.Len())
}
