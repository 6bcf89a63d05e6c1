package gitcore_test

import (
	"context"
	"testing"

	"github.com/go-vcs/gitcore"
	"github.com/go-vcs/gitcore/ginternals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush(t *testing.T) {
	t.Parallel()

	t.Run("push should create the branch on an empty remote", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote(t)
		ctx := context.Background()

		r, fs := newTestRepo(t)
		writeFile(t, fs, r, "a.txt", "hi")
		tip, err := r.Commit([]string{"a.txt"}, "first commit")
		require.NoError(t, err)
		require.NoError(t, r.SetRemote(rem.URL()))

		require.NoError(t, r.Push(ctx))

		remoteTip, ok := rem.ref(ginternals.LocalBranchFullName(ginternals.Master))
		require.True(t, ok)
		assert.Equal(t, tip, remoteTip)
		assert.True(t, rem.hasObject(tip))
	})

	t.Run("push with nothing new should be a no-op", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote(t)
		ctx := context.Background()

		r, fs := newTestRepo(t)
		writeFile(t, fs, r, "a.txt", "hi")
		_, err := r.Commit([]string{"a.txt"}, "first commit")
		require.NoError(t, err)
		require.NoError(t, r.SetRemote(rem.URL()))

		require.NoError(t, r.Push(ctx))
		require.NoError(t, r.Push(ctx))
	})

	t.Run("push after a new commit should advance the remote", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote(t)
		ctx := context.Background()

		r, fs := newTestRepo(t)
		writeFile(t, fs, r, "a.txt", "hi")
		_, err := r.Commit([]string{"a.txt"}, "first commit")
		require.NoError(t, err)
		require.NoError(t, r.SetRemote(rem.URL()))
		require.NoError(t, r.Push(ctx))

		writeFile(t, fs, r, "a.txt", "updated")
		tip, err := r.Commit([]string{"a.txt"}, "second commit")
		require.NoError(t, err)
		require.NoError(t, r.Push(ctx))

		remoteTip, ok := rem.ref(ginternals.LocalBranchFullName(ginternals.Master))
		require.True(t, ok)
		assert.Equal(t, tip, remoteTip)
	})

	t.Run("push should refuse to overwrite unseen remote work", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote(t)
		ctx := context.Background()

		r, fs := newTestRepo(t)
		writeFile(t, fs, r, "a.txt", "hi")
		_, err := r.Commit([]string{"a.txt"}, "first commit")
		require.NoError(t, err)
		require.NoError(t, r.SetRemote(rem.URL()))
		require.NoError(t, r.Push(ctx))

		// someone else moves the remote branch
		other, otherFs := newTestRepo(t)
		writeFile(t, otherFs, other, "b.txt", "other")
		otherTip, err := other.Commit([]string{"b.txt"}, "other commit")
		require.NoError(t, err)
		rem.setRef(ginternals.LocalBranchFullName(ginternals.Master), otherTip)

		writeFile(t, fs, r, "a.txt", "updated")
		_, err = r.Commit([]string{"a.txt"}, "second commit")
		require.NoError(t, err)

		err = r.Push(ctx)
		require.ErrorIs(t, err, gitcore.ErrNonFastForward)
	})

	t.Run("push with no commit should fail", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote(t)
		r, _ := newTestRepo(t)
		require.NoError(t, r.SetRemote(rem.URL()))

		err := r.Push(context.Background())
		require.Error(t, err)
	})
}
