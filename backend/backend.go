// Package backend contains methods and structs to store and retrieve
// objects and references from a .git directory on a filesystem
package backend

import (
	"errors"
	"sync"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/internal/cache"
	"github.com/go-vcs/gitcore/internal/syncutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

const (
	// cacheSize is the number of decoded objects kept in memory
	cacheSize = 1000

	// mutexCount is the number of stripes used to lock objects by oid
	mutexCount = 100
)

// RefWalkFunc represents a function that will be applied on all
// references found by WalkReferences()
type RefWalkFunc = func(ref *ginternals.Reference) error

// OidWalkFunc represents a function that will be applied on all the
// oids found by WalkLooseObjectIDs()
type OidWalkFunc = func(oid ginternals.Oid) error

// WalkStop is a fake error used to tell a walk to stop
var WalkStop = errors.New("stop walking") //nolint // the linter expects all errors to start with Err, but since here we're faking an error we don't want that

// Backend stores and retrieves data from a .git directory.
// All its methods can be called concurrently unless stated otherwise
type Backend struct {
	fs         afero.Fs
	dotGitPath string

	objectMu     *syncutil.NamedMutex
	looseObjects sync.Map
	refs         sync.Map
	cache        *cache.LRU
}

// New returns a new Backend for the given .git directory.
// The directory doesn't need to exist yet, Init() takes care of
// creating it
func New(fs afero.Fs, dotGitPath string) (*Backend, error) {
	c, err := cache.NewLRU(cacheSize)
	if err != nil {
		return nil, xerrors.Errorf("could not create the object cache: %w", err)
	}

	b := &Backend{
		fs:         fs,
		dotGitPath: dotGitPath,
		objectMu:   syncutil.NewNamedMutex(mutexCount),
		cache:      c,
	}
	if err = b.loadLooseObjects(); err != nil {
		return nil, xerrors.Errorf("could not load the loose objects: %w", err)
	}
	if err = b.loadRefs(); err != nil {
		return nil, xerrors.Errorf("could not load the references: %w", err)
	}
	return b, nil
}

// Path returns the path of the .git directory
func (b *Backend) Path() string {
	return b.dotGitPath
}

// Close frees the resources used by the backend
func (b *Backend) Close() error {
	b.cache.Clear()
	return nil
}
