package config_test

import (
	"testing"

	"github.com/go-vcs/gitcore/ginternals/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(afero.NewMemMapFs(), "/repo/.git/config")
	require.NoError(t, err)

	_, ok := cfg.UserName()
	assert.False(t, ok)
	_, err = cfg.Remote("origin")
	assert.ErrorIs(t, err, config.ErrRemoteNotFound)
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := config.Load(fs, "/repo/.git/config")
	require.NoError(t, err)

	cfg.SetUser("John Doe", "john@domain.tld")
	require.NoError(t, cfg.Save())

	reloaded, err := config.Load(fs, "/repo/.git/config")
	require.NoError(t, err)

	name, ok := reloaded.UserName()
	require.True(t, ok)
	assert.Equal(t, "John Doe", name)

	email, ok := reloaded.UserEmail()
	require.True(t, ok)
	assert.Equal(t, "john@domain.tld", email)
}

func TestRemoteRoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := config.Load(fs, "/repo/.git/config")
	require.NoError(t, err)

	cfg.SetRemote("origin", "https://example.com/repo.git")
	require.NoError(t, cfg.Save())

	reloaded, err := config.Load(fs, "/repo/.git/config")
	require.NoError(t, err)

	remote, err := reloaded.Remote("origin")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/repo.git", remote.URL)
	assert.Equal(t, "+refs/heads/*:refs/remotes/origin/*", remote.Fetch)

	_, err = reloaded.Remote("upstream")
	assert.ErrorIs(t, err, config.ErrRemoteNotFound)
}

func TestBranchRoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := config.Load(fs, "/repo/.git/config")
	require.NoError(t, err)

	cfg.SetBranch("master", "origin", "refs/heads/master")
	require.NoError(t, cfg.Save())

	reloaded, err := config.Load(fs, "/repo/.git/config")
	require.NoError(t, err)

	branch, err := reloaded.Branch("master")
	require.NoError(t, err)
	assert.Equal(t, "origin", branch.Remote)
	assert.Equal(t, "refs/heads/master", branch.Merge)

	_, err = reloaded.Branch("dev")
	assert.ErrorIs(t, err, config.ErrBranchNotFound)
}

func TestSetCoreDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(afero.NewMemMapFs(), "/repo/.git/config")
	require.NoError(t, err)

	cfg.SetCoreDefaults(false)
	version, ok := cfg.RepoFormatVersion()
	require.True(t, ok)
	assert.Equal(t, 0, version)
}
