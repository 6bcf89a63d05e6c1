package index_test

import (
	"testing"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(t *testing.T, path string) index.Entry {
	t.Helper()
	oid, err := ginternals.NewOidFromStr("bd9dbf5aae1a3862dd1526723246b20206e5fc37")
	require.NoError(t, err)
	return index.Entry{
		Path:  path,
		ID:    oid,
		MTime: 1566115917,
		Mode:  0o100644,
		Size:  16,
	}
}

func TestIndexRoundTrip(t *testing.T) {
	t.Parallel()

	idx := index.New()
	idx.Add(testEntry(t, "a.txt"))
	idx.Add(testEntry(t, "docs/readme.md"))
	idx.Add(testEntry(t, "Makefile"))

	parsed, err := index.NewFromBytes(idx.Bytes())
	require.NoError(t, err)
	require.Equal(t, idx.Len(), parsed.Len())
	assert.Equal(t, idx.Entries(), parsed.Entries())
}

func TestEntriesOrdering(t *testing.T) {
	t.Parallel()

	idx := index.New()
	idx.Add(testEntry(t, "b.txt"))
	idx.Add(testEntry(t, "A.txt"))
	idx.Add(testEntry(t, "a.md"))

	entries := idx.Entries()
	require.Len(t, entries, 3)
	// ordering is case-insensitive
	assert.Equal(t, "a.md", entries[0].Path)
	assert.Equal(t, "A.txt", entries[1].Path)
	assert.Equal(t, "b.txt", entries[2].Path)
}

func TestAddReplacesByPath(t *testing.T) {
	t.Parallel()

	idx := index.New()
	idx.Add(testEntry(t, "a.txt"))

	updated := testEntry(t, "a.txt")
	updated.Size = 42
	idx.Add(updated)

	require.Equal(t, 1, idx.Len())
	e, ok := idx.Entry("a.txt")
	require.True(t, ok)
	assert.Equal(t, uint32(42), e.Size)
}

func TestConflictStage(t *testing.T) {
	t.Parallel()

	e := testEntry(t, "a.txt")
	e.Stage = 2
	idx := index.New()
	idx.Add(e)

	parsed, err := index.NewFromBytes(idx.Bytes())
	require.NoError(t, err)
	got, ok := parsed.Entry("a.txt")
	require.True(t, ok)
	assert.Equal(t, uint8(2), got.Stage)
}

func TestNewFromBytesInvalid(t *testing.T) {
	t.Parallel()

	t.Run("bad magic should fail", func(t *testing.T) {
		t.Parallel()

		data := index.New().Bytes()
		data[0] = 'X'
		_, err := index.NewFromBytes(data)
		require.ErrorIs(t, err, index.ErrIndexInvalid)
	})

	t.Run("corrupted checksum should fail", func(t *testing.T) {
		t.Parallel()

		idx := index.New()
		idx.Add(testEntry(t, "a.txt"))
		data := idx.Bytes()
		// flip a bit in the middle of the entry
		data[20] ^= 0xff
		_, err := index.NewFromBytes(data)
		require.ErrorIs(t, err, index.ErrIndexInvalid)
	})

	t.Run("truncated file should fail", func(t *testing.T) {
		t.Parallel()

		_, err := index.NewFromBytes([]byte("DIRC"))
		require.ErrorIs(t, err, index.ErrIndexInvalid)
	})
}
