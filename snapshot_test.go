package kwfile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrolog/kwfile/internal/testutil"
	"github.com/petrolog/kwfile/kwio"
)

// saveFixture opens a canonical file, snapshots its index, and returns
// both paths.
func saveFixture(t *testing.T, opts ...SnapshotOption) (dataPath, indexPath string) {
	t.Helper()

	dir := t.TempDir()
	data := testutil.Encode(t, kwio.FormatUnformatted, nil, stepRecords())
	dataPath = testutil.WriteFile(t, dir, "CASE.UNRST", data)
	indexPath = filepath.Join(dir, "CASE.kwix")

	f, err := Open(dataPath)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.SaveIndex(indexPath, opts...))
	return dataPath, indexPath
}

func TestSaveIndex_RoundTrip(t *testing.T) {
	t.Parallel()

	compressions := []Compression{CompressionNone, CompressionSnappy, CompressionZstd}
	for _, c := range compressions {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			dataPath, indexPath := saveFixture(t, SnapshotWithCompression(c))

			scanned, err := Open(dataPath)
			require.NoError(t, err)
			defer scanned.Close()

			loaded, err := OpenWithIndex(dataPath, indexPath)
			require.NoError(t, err)
			defer loaded.Close()

			assertSameRecords(t, scanned, loaded)
			assert.Equal(t, scanned.NumDistinct(), loaded.NumDistinct())
			assert.Equal(t, kwio.FormatUnformatted, loaded.Format())
		})
	}
}

func TestOpenSourceWithIndex_SkipsTheScan(t *testing.T) {
	t.Parallel()

	data := testutil.Encode(t, kwio.FormatUnformatted, nil, stepRecords())
	src := testutil.NewSource(data)

	f, err := OpenSource(src, WithFormat(kwio.FormatUnformatted))
	require.NoError(t, err)

	indexPath := filepath.Join(t.TempDir(), "CASE.kwix")
	require.NoError(t, f.SaveIndex(indexPath))
	snapData, err := os.ReadFile(indexPath)
	require.NoError(t, err)

	reopened := testutil.NewSource(data)
	g, err := OpenSourceWithIndex(reopened, snapData)
	require.NoError(t, err)

	// One read for the staleness fingerprint; record headers come from
	// the snapshot.
	assert.Equal(t, int64(1), reopened.Reads())
	assert.Equal(t, 7, g.Len())

	p, err := g.Named("MINISTEP", 2).Payload()
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, p.Ints())
}

func TestSaveIndex_CoversGlobalIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := testutil.Encode(t, kwio.FormatUnformatted, nil, stepRecords())
	dataPath := testutil.WriteFile(t, dir, "CASE.UNRST", data)
	indexPath := filepath.Join(dir, "CASE.kwix")

	f, err := Open(dataPath)
	require.NoError(t, err)
	defer f.Close()

	// A narrowed selection must not narrow the snapshot.
	require.True(t, f.SelectBlock("MINISTEP", 1))
	require.NoError(t, f.SaveIndex(indexPath))

	g, err := OpenWithIndex(dataPath, indexPath)
	require.NoError(t, err)
	defer g.Close()
	assert.Equal(t, 7, g.Len())
}

func TestOpenWithIndex_RecordsEncodingAndOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := testutil.Encode(t, kwio.FormatUnformatted, binary.LittleEndian, stepRecords())
	dataPath := testutil.WriteFile(t, dir, "CASE.UNRST", data)
	indexPath := filepath.Join(dir, "CASE.kwix")

	f, err := Open(dataPath, WithByteOrder(binary.LittleEndian))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.SaveIndex(indexPath))

	// Reopening needs no byte-order option: the snapshot recorded it.
	g, err := OpenWithIndex(dataPath, indexPath)
	require.NoError(t, err)
	defer g.Close()
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), g.ByteOrder())

	p, err := g.Named("PARAMS", 1).Payload()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1.5}, p.Reals())
}

func TestOpenWithIndex_StaleSnapshot(t *testing.T) {
	t.Parallel()

	t.Run("size changed", func(t *testing.T) {
		t.Parallel()
		dataPath, indexPath := saveFixture(t)

		orig, err := os.ReadFile(dataPath)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(dataPath, append(orig, 0), 0o600))

		_, err = OpenWithIndex(dataPath, indexPath)
		require.ErrorIs(t, err, ErrStaleIndex)
	})

	t.Run("content changed", func(t *testing.T) {
		t.Parallel()
		dataPath, indexPath := saveFixture(t)

		orig, err := os.ReadFile(dataPath)
		require.NoError(t, err)
		orig[30] ^= 0xff
		require.NoError(t, os.WriteFile(dataPath, orig, 0o600))

		_, err = OpenWithIndex(dataPath, indexPath)
		require.ErrorIs(t, err, ErrStaleIndex)
	})
}

func TestOpenWithIndex_MalformedSnapshot(t *testing.T) {
	t.Parallel()

	dataPath, indexPath := saveFixture(t)
	valid, err := os.ReadFile(indexPath)
	require.NoError(t, err)

	corrupt := func(mutate func([]byte) []byte) []byte {
		return mutate(append([]byte(nil), valid...))
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("KWIX")},
		{"bad magic", corrupt(func(b []byte) []byte { b[0] = 'X'; return b })},
		{"unsupported version", corrupt(func(b []byte) []byte { b[4] = 99; return b })},
		{"unknown compression", corrupt(func(b []byte) []byte { b[5] = 7; return b })},
		{"garbage payload", append([]byte("KWIX\x01\x00"), 1, 2, 3)},
		{"truncated payload", valid[:len(valid)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bad := filepath.Join(t.TempDir(), "bad.kwix")
			require.NoError(t, os.WriteFile(bad, tt.data, 0o600))

			_, err := OpenWithIndex(dataPath, bad)
			require.ErrorIs(t, err, ErrBadSnapshot)
		})
	}
}

func TestOpenWithIndex_MissingFiles(t *testing.T) {
	t.Parallel()

	dataPath, indexPath := saveFixture(t)

	_, err := OpenWithIndex(dataPath, filepath.Join(t.TempDir(), "absent.kwix"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = OpenWithIndex(filepath.Join(t.TempDir(), "absent.UNRST"), indexPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}
