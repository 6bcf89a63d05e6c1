// Package gitcore implements git repositories: storing and retrieving
// objects, staging and committing files, and exchanging data with
// remote repositories over smart HTTP
package gitcore

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-vcs/gitcore/backend"
	"github.com/go-vcs/gitcore/ginternals"
	gconfig "github.com/go-vcs/gitcore/ginternals/config"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/go-vcs/gitcore/ginternals/transport"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// List of errors returned by the Repository struct
var (
	ErrRepositoryNotExist = errors.New("repository does not exist")
	ErrRepositoryExists   = errors.New("repository already exists")
)

// Options contains the optional data used to create or open a
// repository
type Options struct {
	// Fs represents the filesystem holding both the working tree and
	// the .git directory.
	// By default the OS filesystem will be used
	Fs afero.Fs

	// HTTPClient is the client used to talk to remotes.
	// By default a client with a timeout will be used
	HTTPClient *http.Client

	// InitialBranch is the name of the branch created by Init.
	// Defaults to master
	InitialBranch string
}

func (opts *Options) setDefaults() {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.InitialBranch == "" {
		opts.InitialBranch = ginternals.Master
	}
}

// Repository represents a git repository: a working tree and the
// .git directory that tracks all the changes made to it over time.
// Each subsystem (odb, index, config, status view) is guarded by its
// own lock, so operations touching different subsystems can run
// concurrently
type Repository struct {
	repoRoot   string
	dotGitPath string

	fs     afero.Fs
	dotGit *backend.Backend
	client *transport.Client

	indexMu  sync.Mutex
	configMu sync.Mutex

	statusMu       sync.Mutex
	status         Status
	lastRefresh    time.Time
	onStatusChange func(Status)
}

// InitRepository initializes a new git repository by creating the
// .git directory in the given path
func InitRepository(repoPath string) (*Repository, error) {
	return InitRepositoryWithOptions(repoPath, Options{})
}

// InitRepositoryWithOptions initializes a new git repository by
// creating the .git directory in the given path.
// ErrRepositoryExists is returned if the path already holds one
func InitRepositoryWithOptions(repoPath string, opts Options) (*Repository, error) {
	opts.setDefaults()
	r, err := newRepository(repoPath, opts)
	if err != nil {
		return nil, err
	}

	if r.dotGit.HasReference(ginternals.Head) {
		return nil, ErrRepositoryExists
	}
	if err := r.dotGit.Init(opts.InitialBranch); err != nil {
		return nil, xerrors.Errorf("could not init the backend: %w", err)
	}

	r.refreshStatus()
	return r, nil
}

// OpenRepository loads an existing git repository from the given path
func OpenRepository(repoPath string) (*Repository, error) {
	return OpenRepositoryWithOptions(repoPath, Options{})
}

// OpenRepositoryWithOptions loads an existing git repository from the
// given path.
// ErrRepositoryNotExist is returned if the path holds no repository
func OpenRepositoryWithOptions(repoPath string, opts Options) (*Repository, error) {
	opts.setDefaults()
	r, err := newRepository(repoPath, opts)
	if err != nil {
		return nil, err
	}

	// HEAD always exists in a valid repository, so we use it to
	// check that we're opening one
	if !r.dotGit.HasReference(ginternals.Head) {
		return nil, ErrRepositoryNotExist
	}

	r.refreshStatus()
	return r, nil
}

// Clone initializes a new repository at localPath with the content of
// the remote repository at remoteURL
func Clone(ctx context.Context, remoteURL, localPath string) (*Repository, error) {
	return CloneWithOptions(ctx, remoteURL, localPath, Options{})
}

// CloneWithOptions initializes a new repository at localPath with the
// content of the remote repository at remoteURL
func CloneWithOptions(ctx context.Context, remoteURL, localPath string, opts Options) (*Repository, error) {
	r, err := InitRepositoryWithOptions(localPath, opts)
	if err != nil {
		return nil, err
	}
	if err = r.SetRemote(remoteURL); err != nil {
		return nil, xerrors.Errorf("could not set the remote: %w", err)
	}
	if _, err = r.Pull(ctx); err != nil {
		return nil, xerrors.Errorf("could not fetch from %s: %w", remoteURL, err)
	}
	return r, nil
}

func newRepository(repoPath string, opts Options) (*Repository, error) {
	dotGitPath := filepath.Join(repoPath, ginternals.DotGitName)
	dotGit, err := backend.New(opts.Fs, dotGitPath)
	if err != nil {
		return nil, xerrors.Errorf("could not create the backend: %w", err)
	}

	return &Repository{
		repoRoot:   repoPath,
		dotGitPath: dotGitPath,
		fs:         opts.Fs,
		dotGit:     dotGit,
		client:     transport.NewClient(opts.HTTPClient),
	}, nil
}

// Path returns the path of the working tree
func (r *Repository) Path() string {
	return r.repoRoot
}

// Close frees the resources used by the repository
func (r *Repository) Close() error {
	return r.dotGit.Close()
}

// Delete closes the repository and removes it from the filesystem,
// working tree included
func (r *Repository) Delete() error {
	if err := r.Close(); err != nil {
		return xerrors.Errorf("could not close the repository: %w", err)
	}
	if err := r.fs.RemoveAll(r.repoRoot); err != nil {
		return xerrors.Errorf("could not remove %s: %w", r.repoRoot, err)
	}
	return nil
}

// Object returns the object matching the given oid
func (r *Repository) Object(oid ginternals.Oid) (*object.Object, error) {
	return r.dotGit.Object(oid)
}

// Branch returns the name of the current branch.
// Example: master
func (r *Repository) Branch() (string, error) {
	data, err := r.dotGit.ReferenceContent(ginternals.Head)
	if err != nil {
		return "", xerrors.Errorf("could not read HEAD: %w", err)
	}
	content := strings.Trim(string(data), " \n")
	if !strings.HasPrefix(content, "ref: ") {
		// detached HEAD has no branch
		return "", ginternals.ErrRefNotFound
	}
	return ginternals.LocalBranchShortName(strings.TrimPrefix(content, "ref: ")), nil
}

// headCommitID returns the oid of the commit HEAD points to.
// unborn is set when HEAD targets a branch that has no commit yet
func (r *Repository) headCommitID() (oid ginternals.Oid, unborn bool, err error) {
	ref, err := r.dotGit.Reference(ginternals.Head)
	if err != nil {
		if errors.Is(err, ginternals.ErrRefNotFound) {
			return ginternals.NullOid, true, nil
		}
		return ginternals.NullOid, false, xerrors.Errorf("could not resolve HEAD: %w", err)
	}
	return ref.Target(), false, nil
}

// headCommit returns the commit HEAD points to
func (r *Repository) headCommit() (*object.Commit, error) {
	oid, unborn, err := r.headCommitID()
	if err != nil {
		return nil, err
	}
	if unborn {
		return nil, ginternals.ErrRefNotFound
	}
	o, err := r.dotGit.Object(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not get commit %s: %w", oid.String(), err)
	}
	return o.AsCommit()
}

// config returns the typed view over .git/config.
// The callers must hold configMu for the duration of their use
func (r *Repository) config() (*gconfig.File, error) {
	return gconfig.Load(r.fs, ginternals.ConfigPath(r.dotGitPath))
}
