package backend

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/go-vcs/gitcore/internal/errutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Object returns the object that has the given oid.
// This method can be called concurrently
func (b *Backend) Object(oid ginternals.Oid) (*object.Object, error) {
	key := oid.Bytes()
	b.objectMu.RLock(key)
	defer b.objectMu.RUnlock(key)

	return b.objectUnsafe(oid)
}

func (b *Backend) objectUnsafe(oid ginternals.Oid) (*object.Object, error) {
	if cachedO, found := b.cache.Get(oid); found {
		if o, valid := cachedO.(*object.Object); valid {
			return o, nil
		}
	}

	o, err := b.looseObject(oid)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, xerrors.Errorf("object %s: %w", oid.String(), ginternals.ErrObjectNotFound)
		}
		return nil, xerrors.Errorf("failed looking for loose object: %w", err)
	}

	b.cache.Add(oid, o)
	return o, nil
}

// looseObject reads the object matching the given oid from disk.
// The format of an object is an ascii encoded type, an ascii encoded
// space, then an ascii encoded length of the object, then a null
// character, then the body of the object
func (b *Backend) looseObject(oid ginternals.Oid) (o *object.Object, err error) {
	if _, exists := b.looseObjects.Load(oid); !exists {
		return nil, os.ErrNotExist
	}

	strOid := oid.String()
	p := ginternals.LooseObjectPath(b.dotGitPath, strOid)
	f, err := b.fs.Open(p)
	if err != nil {
		return nil, xerrors.Errorf("could not get object %s at path %s: %w", strOid, p, err)
	}
	defer errutil.Close(f, &err)

	o, err = object.NewFromLoose(oid, f)
	if err != nil {
		return nil, xerrors.Errorf("could not parse object %s at path %s: %w", strOid, p, err)
	}
	return o, nil
}

// HasObject returns whether an object exists in the odb.
// This method can be called concurrently
func (b *Backend) HasObject(oid ginternals.Oid) (bool, error) {
	key := oid.Bytes()
	b.objectMu.RLock(key)
	defer b.objectMu.RUnlock(key)

	return b.hasObjectUnsafe(oid)
}

func (b *Backend) hasObjectUnsafe(oid ginternals.Oid) (bool, error) {
	_, err := b.objectUnsafe(oid)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ginternals.ErrObjectNotFound) {
		return false, nil
	}
	return false, xerrors.Errorf("could not get object: %w", err)
}

// WriteObject adds an object to the odb.
// Writing an object that already exists is a no-op, the content of an
// object never changes for a given oid.
// This method can be called concurrently
func (b *Backend) WriteObject(o *object.Object) (ginternals.Oid, error) {
	data, err := o.Compress()
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not compress object: %w", err)
	}

	oid := o.ID()
	b.objectMu.Lock(oid.Bytes())
	defer b.objectMu.Unlock(oid.Bytes())

	found, err := b.hasObjectUnsafe(oid)
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not check if object %s already exists: %w", oid.String(), err)
	}
	if found {
		return oid, nil
	}

	sha := oid.String()
	p := ginternals.LooseObjectPath(b.dotGitPath, sha)

	dest := filepath.Dir(p)
	if err = b.fs.MkdirAll(dest, 0o755); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not create the destination directory %s: %w", dest, err)
	}

	// We use 444 because git objects are read-only
	if err = afero.WriteFile(b.fs, p, data, 0o444); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not persist object %s at path %s: %w", sha, p, err)
	}

	b.looseObjects.Store(oid, struct{}{})
	b.cache.Add(oid, o)
	return oid, nil
}

// WalkLooseObjectIDs runs the provided method on all the oids of the
// loose objects
func (b *Backend) WalkLooseObjectIDs(f OidWalkFunc) (err error) {
	b.looseObjects.Range(func(key, value interface{}) bool {
		err = f(key.(ginternals.Oid))
		if err != nil {
			if err == WalkStop { //nolint:errorlint,goerr113 // it's a fake error so no need to use Error.Is()
				err = nil
			}
			return false
		}
		return true
	})
	return err
}

// loadLooseObjects loads the oids of the loose objects in memory
func (b *Backend) loadLooseObjects() error {
	objectsPath := ginternals.ObjectsPath(b.dotGitPath)
	return afero.Walk(b.fs, objectsPath, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			//nolint:nilerr // in case of error we just skip it and move on.
			// this will happen if the repo is empty and the ./objects
			// folder doesn't exists
			return nil
		}
		if path == objectsPath {
			return nil
		}

		// We're interested in all the directories that are named "00"
		// up to "ff"
		if info.IsDir() {
			if !isLooseObjectDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		prefix := filepath.Base(filepath.Dir(path))
		if !isLooseObjectDir(prefix) {
			return nil
		}

		sha := prefix + info.Name()
		oid, err := ginternals.NewOidFromStr(sha)
		if err != nil {
			return xerrors.Errorf("could not get oid from %s: %w", sha, err)
		}
		b.looseObjects.Store(oid, struct{}{})
		return nil
	})
}

// isLooseObjectDir checks if a directory name is anything between 00
// and ff
func isLooseObjectDir(name string) bool {
	if len(name) != 2 {
		return false
	}
	_, err := strconv.ParseInt(name, 16, 64)
	return err == nil
}
