package gitcore_test

import (
	"path/filepath"
	"testing"

	"github.com/go-vcs/gitcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	t.Parallel()

	r, fs := newTestRepo(t)
	writeFile(t, fs, r, "a.txt", "hi")
	writeFile(t, fs, r, ".gitignore", "*.log\n")
	_, err := r.Commit([]string{"a.txt", ".gitignore"}, "first commit")
	require.NoError(t, err)

	t.Run("fresh commit should leave a clean tree", func(t *testing.T) {
		s := r.Status()
		assert.True(t, s.IsClean())
	})

	t.Run("new file should be untracked", func(t *testing.T) {
		writeFile(t, fs, r, "b.txt", "new")
		s := r.Status()
		assert.Equal(t, []string{"b.txt"}, s.Untracked)
		require.NoError(t, fs.Remove(filepath.Join(r.Path(), "b.txt")))
	})

	t.Run("ignored file should not show up", func(t *testing.T) {
		writeFile(t, fs, r, "debug.log", "data")
		s := r.Status()
		assert.True(t, s.IsClean())
	})

	t.Run("edited file should be modified", func(t *testing.T) {
		writeFile(t, fs, r, "a.txt", "changed")
		s := r.Status()
		assert.Equal(t, []string{"a.txt"}, s.Modified)

		// put the committed content back
		writeFile(t, fs, r, "a.txt", "hi")
	})

	t.Run("missing file should be deleted", func(t *testing.T) {
		require.NoError(t, fs.Remove(filepath.Join(r.Path(), "a.txt")))
		// a real filesystem bumps the parent dir mtime on removal,
		// MemMapFs doesn't, so the refresh needs a nudge
		writeFile(t, fs, r, ".gitignore", "*.log\n")
		s := r.Status()
		assert.Equal(t, []string{"a.txt"}, s.Deleted)
	})
}

func TestOnStatusChange(t *testing.T) {
	t.Parallel()

	r, fs := newTestRepo(t)
	writeFile(t, fs, r, "a.txt", "hi")
	_, err := r.Commit([]string{"a.txt"}, "first commit")
	require.NoError(t, err)

	var got []string
	r.OnStatusChange(func(s gitcore.Status) {
		got = append(got, s.Untracked...)
	})

	writeFile(t, fs, r, "b.txt", "new")
	s := r.Status()
	require.Equal(t, []string{"b.txt"}, s.Untracked)
	assert.Equal(t, []string{"b.txt"}, got)
}
