package backend_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-vcs/gitcore/backend"
	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) (b *backend.Backend, fs afero.Fs) {
	t.Helper()

	fs = afero.NewMemMapFs()
	dotGitPath := filepath.Join("/", "repo", ginternals.DotGitName)
	b, err := backend.New(fs, dotGitPath)
	require.NoError(t, err)
	require.NoError(t, b.Init(ginternals.Master))
	t.Cleanup(func() {
		require.NoError(t, b.Close())
	})
	return b, fs
}

func TestInit(t *testing.T) {
	t.Parallel()

	b, fs := newBackend(t)

	t.Run("should create the directory skeleton", func(t *testing.T) {
		dirs := []string{
			ginternals.RefsPath(b.Path()),
			ginternals.LocalBranchesPath(b.Path()),
			ginternals.TagsPath(b.Path()),
			ginternals.ObjectsPath(b.Path()),
			ginternals.ObjectsInfoPath(b.Path()),
			ginternals.ObjectsPacksPath(b.Path()),
		}
		for _, d := range dirs {
			ok, err := afero.DirExists(fs, d)
			require.NoError(t, err)
			assert.True(t, ok, "dir %s should exist", d)
		}
	})

	t.Run("should write a symbolic HEAD", func(t *testing.T) {
		data, err := b.ReferenceContent(ginternals.Head)
		require.NoError(t, err)
		assert.Equal(t, "ref: refs/heads/master\n", string(data))
	})

	t.Run("should write a config file", func(t *testing.T) {
		ok, err := afero.Exists(fs, ginternals.ConfigPath(b.Path()))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestWriteObject(t *testing.T) {
	t.Parallel()

	b, fs := newBackend(t)
	o := object.New(object.TypeBlob, []byte("what is up, doc?"))

	oid, err := b.WriteObject(o)
	require.NoError(t, err)
	assert.Equal(t, "bd9dbf5aae1a3862dd1526723246b20206e5fc37", oid.String())

	t.Run("should store the object as a loose file", func(t *testing.T) {
		ok, err := afero.Exists(fs, ginternals.LooseObjectPath(b.Path(), oid.String()))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("should be readable back", func(t *testing.T) {
		stored, err := b.Object(oid)
		require.NoError(t, err)
		assert.Equal(t, object.TypeBlob, stored.Type())
		assert.Equal(t, []byte("what is up, doc?"), stored.Bytes())
	})

	t.Run("should report the object as present", func(t *testing.T) {
		ok, err := b.HasObject(oid)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("writing twice should be a no-op", func(t *testing.T) {
		again, err := b.WriteObject(o)
		require.NoError(t, err)
		assert.Equal(t, oid, again)
	})
}

func TestObjectNotFound(t *testing.T) {
	t.Parallel()

	b, _ := newBackend(t)

	oid, err := ginternals.NewOidFromStr("4b825dc642cb6eb9a060e54bf8d69288fbee4904")
	require.NoError(t, err)

	_, err = b.Object(oid)
	require.ErrorIs(t, err, ginternals.ErrObjectNotFound)

	ok, err := b.HasObject(oid)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWalkLooseObjectIDs(t *testing.T) {
	t.Parallel()

	b, _ := newBackend(t)

	seen := map[ginternals.Oid]struct{}{}
	for i := 0; i < 3; i++ {
		oid, err := b.WriteObject(object.New(object.TypeBlob, []byte(fmt.Sprintf("content %d", i))))
		require.NoError(t, err)
		seen[oid] = struct{}{}
	}

	t.Run("should report every object", func(t *testing.T) {
		count := 0
		err := b.WalkLooseObjectIDs(func(oid ginternals.Oid) error {
			_, ok := seen[oid]
			assert.True(t, ok, "unexpected oid %s", oid.String())
			count++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, len(seen), count)
	})

	t.Run("WalkStop should end the walk without error", func(t *testing.T) {
		count := 0
		err := b.WalkLooseObjectIDs(func(ginternals.Oid) error {
			count++
			return backend.WalkStop
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestWriteReference(t *testing.T) {
	t.Parallel()

	b, _ := newBackend(t)

	oid, err := ginternals.NewOidFromStr("bd9dbf5aae1a3862dd1526723246b20206e5fc37")
	require.NoError(t, err)
	refName := ginternals.LocalBranchFullName("dev")

	t.Run("should persist an oid reference", func(t *testing.T) {
		require.NoError(t, b.WriteReference(ginternals.NewReference(refName, oid)))

		ref, err := b.Reference(refName)
		require.NoError(t, err)
		assert.Equal(t, oid, ref.Target())
	})

	t.Run("safe write should refuse to overwrite", func(t *testing.T) {
		err := b.WriteReferenceSafe(ginternals.NewReference(refName, oid))
		require.ErrorIs(t, err, ginternals.ErrRefExists)
	})

	t.Run("invalid names should be rejected", func(t *testing.T) {
		err := b.WriteReference(ginternals.NewReference("refs/heads/..", oid))
		require.ErrorIs(t, err, ginternals.ErrRefNameInvalid)
	})

	t.Run("unknown references should not resolve", func(t *testing.T) {
		_, err := b.Reference(ginternals.LocalBranchFullName("nope"))
		require.ErrorIs(t, err, ginternals.ErrRefNotFound)
		assert.False(t, b.HasReference(ginternals.LocalBranchFullName("nope")))
	})
}

func TestPackedRefs(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	dotGitPath := filepath.Join("/", "repo", ginternals.DotGitName)

	b, err := backend.New(fs, dotGitPath)
	require.NoError(t, err)
	require.NoError(t, b.Init(ginternals.Master))

	packed := "# pack-refs with: peeled fully-peeled sorted\n" +
		"bd9dbf5aae1a3862dd1526723246b20206e5fc37 refs/heads/packed\n" +
		"^4b825dc642cb6eb9a060e54bf8d69288fbee4904\n"
	require.NoError(t, afero.WriteFile(fs, ginternals.PackedRefsPath(dotGitPath), []byte(packed), 0o644))
	require.NoError(t, b.Close())

	// a fresh backend picks the packed refs up at load time
	b, err = backend.New(fs, dotGitPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, b.Close())
	}()

	ref, err := b.Reference(ginternals.LocalBranchFullName("packed"))
	require.NoError(t, err)
	assert.Equal(t, "bd9dbf5aae1a3862dd1526723246b20206e5fc37", ref.Target().String())
}

func TestWalkReferences(t *testing.T) {
	t.Parallel()

	b, _ := newBackend(t)

	oid, err := ginternals.NewOidFromStr("bd9dbf5aae1a3862dd1526723246b20206e5fc37")
	require.NoError(t, err)
	require.NoError(t, b.WriteReference(ginternals.NewReference(ginternals.LocalBranchFullName(ginternals.Master), oid)))
	require.NoError(t, b.WriteReference(ginternals.NewReference(ginternals.LocalBranchFullName("dev"), oid)))

	names := map[string]struct{}{}
	err = b.WalkReferences(func(ref *ginternals.Reference) error {
		names[ref.Name()] = struct{}{}
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, names, ginternals.Head)
	assert.Contains(t, names, ginternals.LocalBranchFullName(ginternals.Master))
	assert.Contains(t, names, ginternals.LocalBranchFullName("dev"))
}
