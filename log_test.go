package gitcore_test

import (
	"testing"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	t.Parallel()

	r, fs := newTestRepo(t)

	writeFile(t, fs, r, "a.txt", "v1")
	first, err := r.Commit([]string{"a.txt"}, "add a")
	require.NoError(t, err)

	writeFile(t, fs, r, "b.txt", "v1")
	second, err := r.Commit([]string{"b.txt"}, "add b")
	require.NoError(t, err)

	writeFile(t, fs, r, "a.txt", "v2")
	third, err := r.Commit([]string{"a.txt"}, "update a")
	require.NoError(t, err)

	t.Run("log should list the commits most recent first", func(t *testing.T) {
		commits, err := r.Log()
		require.NoError(t, err)
		require.Len(t, commits, 3)
		assert.Equal(t, third, commits[0].ID())
		assert.Equal(t, second, commits[1].ID())
		assert.Equal(t, first, commits[2].ID())
	})

	t.Run("timeline should only list the commits touching the path", func(t *testing.T) {
		commits, err := r.Timeline("a.txt")
		require.NoError(t, err)
		require.Len(t, commits, 2)
		assert.Equal(t, third, commits[0].ID())
		assert.Equal(t, first, commits[1].ID())
	})

	t.Run("previous version should return the content before HEAD", func(t *testing.T) {
		data, err := r.PreviousVersion("a.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), data)
	})

	t.Run("previous version of a new file should not exist", func(t *testing.T) {
		writeFile(t, fs, r, "c.txt", "v1")
		_, err := r.Commit([]string{"c.txt"}, "add c")
		require.NoError(t, err)

		_, err = r.PreviousVersion("c.txt")
		require.ErrorIs(t, err, ginternals.ErrObjectNotFound)
	})
}

func TestCheckAndReset(t *testing.T) {
	t.Parallel()

	t.Run("check should detach HEAD on the given commit", func(t *testing.T) {
		t.Parallel()

		r, fs := newTestRepo(t)
		writeFile(t, fs, r, "a.txt", "v1")
		first, err := r.Commit([]string{"a.txt"}, "add a")
		require.NoError(t, err)
		writeFile(t, fs, r, "a.txt", "v2")
		_, err = r.Commit([]string{"a.txt"}, "update a")
		require.NoError(t, err)

		require.NoError(t, r.Check(first))
		assert.Equal(t, "v1", readFile(t, fs, r, "a.txt"))

		_, err = r.Branch()
		require.ErrorIs(t, err, ginternals.ErrRefNotFound)
	})

	t.Run("reset should move the branch back", func(t *testing.T) {
		t.Parallel()

		r, fs := newTestRepo(t)
		writeFile(t, fs, r, "a.txt", "v1")
		first, err := r.Commit([]string{"a.txt"}, "add a")
		require.NoError(t, err)
		writeFile(t, fs, r, "b.txt", "v1")
		_, err = r.Commit([]string{"b.txt"}, "add b")
		require.NoError(t, err)

		require.NoError(t, r.Reset(first))
		assert.Equal(t, "v1", readFile(t, fs, r, "a.txt"))

		// still on the branch, with a single commit left
		branch, err := r.Branch()
		require.NoError(t, err)
		assert.Equal(t, ginternals.Master, branch)

		commits, err := r.Log()
		require.NoError(t, err)
		require.Len(t, commits, 1)
		assert.Equal(t, first, commits[0].ID())

		// b.txt was not part of the target commit
		_, err = fs.Stat(r.Path() + "/b.txt")
		require.Error(t, err)
	})
}
