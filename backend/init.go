package backend

import (
	"github.com/go-vcs/gitcore/ginternals"
	gconfig "github.com/go-vcs/gitcore/ginternals/config"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Init initializes a repository.
// This method cannot be called concurrently with other methods
func (b *Backend) Init(branchName string) error {
	// Create the directories
	dirs := []string{
		b.dotGitPath,
		ginternals.RefsPath(b.dotGitPath),
		ginternals.LocalBranchesPath(b.dotGitPath),
		ginternals.TagsPath(b.dotGitPath),
		ginternals.ObjectsPath(b.dotGitPath),
		ginternals.ObjectsInfoPath(b.dotGitPath),
		ginternals.ObjectsPacksPath(b.dotGitPath),
	}
	for _, d := range dirs {
		if err := b.fs.MkdirAll(d, 0o750); err != nil {
			return xerrors.Errorf("could not create directory %s: %w", d, err)
		}
	}

	// Create the files with the default content
	// (taken from a repo created on github)
	files := []struct {
		path    string
		content []byte
	}{
		{
			path:    ginternals.DescriptionFilePath(b.dotGitPath),
			content: []byte("Unnamed repository; edit this file 'description' to name the repository.\n"),
		},
	}
	for _, f := range files {
		if err := afero.WriteFile(b.fs, f.path, f.content, 0o644); err != nil {
			return xerrors.Errorf("could not create file %s: %w", f.path, err)
		}
	}

	if err := b.setDefaultCfg(); err != nil {
		return xerrors.Errorf("could not set the default config: %w", err)
	}

	ref := ginternals.NewSymbolicReference(ginternals.Head, ginternals.LocalBranchFullName(branchName))
	if err := b.WriteReferenceSafe(ref); err != nil {
		return xerrors.Errorf("could not write HEAD: %w", err)
	}
	return nil
}

// setDefaultCfg sets and persists the default configuration of the
// repository
func (b *Backend) setDefaultCfg() error {
	cfg, err := gconfig.Load(b.fs, ginternals.ConfigPath(b.dotGitPath))
	if err != nil {
		return xerrors.Errorf("could not load the config: %w", err)
	}
	cfg.SetCoreDefaults(false)
	if err := cfg.Save(); err != nil {
		return xerrors.Errorf("could not save the config: %w", err)
	}
	return nil
}
