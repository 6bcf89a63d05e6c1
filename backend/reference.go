package backend

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/internal/errutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// Reference returns a stored reference from its name.
// ErrRefNotFound is returned if the reference doesn't exist.
// This method can be called concurrently
func (b *Backend) Reference(name string) (*ginternals.Reference, error) {
	finder := func(name string) ([]byte, error) {
		data, ok := b.refs.Load(name)
		if !ok {
			return nil, xerrors.Errorf(`ref "%s": %w`, name, ginternals.ErrRefNotFound)
		}
		return data.([]byte), nil
	}
	return ginternals.ResolveReference(name, finder)
}

// HasReference returns whether a reference with the given name exists
func (b *Backend) HasReference(name string) bool {
	_, ok := b.refs.Load(name)
	return ok
}

// ReferenceContent returns the raw content of a reference without
// resolving it. This is needed to read the symbolic target of HEAD
// when the branch it points to has no commit yet
func (b *Backend) ReferenceContent(name string) ([]byte, error) {
	data, ok := b.refs.Load(name)
	if !ok {
		return nil, xerrors.Errorf(`ref "%s": %w`, name, ginternals.ErrRefNotFound)
	}
	return data.([]byte), nil
}

// systemPath returns a path from a ref name.
// Ex.: On windows refs/heads/master would return refs\heads\master
func (b *Backend) systemPath(name string) string {
	return filepath.Join(b.dotGitPath, filepath.FromSlash(name))
}

// loadRefs loads the references in memory
func (b *Backend) loadRefs() (err error) {
	// We first parse the packed-refs file which may or may not exist
	// and may or may not contain outdated information
	// (outdated information will be overwritten once we parse the
	// on-disk references)
	packedRefPath := ginternals.PackedRefsPath(b.dotGitPath)
	f, err := b.fs.Open(packedRefPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return xerrors.Errorf("could not open %s: %w", packedRefPath, err)
	}
	if err == nil {
		defer errutil.Close(f, &err)

		sc := bufio.NewScanner(f)
		for i := 1; sc.Scan(); i++ {
			line := sc.Text()
			// we skip empty lines, comments, and annotated tag targets
			if line == "" || line[0] == '#' || line[0] == '^' {
				continue
			}
			// We expect data to have the format:
			// "oid ref-name"
			parts := strings.Split(line, " ")
			if len(parts) != 2 {
				return xerrors.Errorf("could not parse %s, unexpected data line %d: %w", packedRefPath, i, ginternals.ErrPackedRefInvalid)
			}
			b.refs.Store(filepath.ToSlash(parts[1]), []byte(parts[0]))
		}
		if sc.Err() != nil {
			return xerrors.Errorf("could not parse %s: %w", packedRefPath, sc.Err())
		}
	}

	// Now we browse all the references on disk
	refsPath := ginternals.RefsPath(b.dotGitPath)
	err = afero.Walk(b.fs, refsPath, func(path string, info fs.FileInfo, e error) error {
		// if refsPath doesn't exist this will return nil and skip the
		// error, which is useful in case the repo is empty and has no
		// references yet
		if path == refsPath {
			return nil
		}
		if e != nil {
			return xerrors.Errorf("could not walk %s: %w", path, e)
		}
		if info.IsDir() {
			return nil
		}
		data, e := afero.ReadFile(b.fs, path)
		if e != nil {
			return xerrors.Errorf("could not read reference at %s: %w", path, e)
		}
		relpath, e := filepath.Rel(b.dotGitPath, path)
		if e != nil {
			return e //nolint:wrapcheck // the error message is already pretty descriptive
		}
		// the name of the ref is its UNIX path
		b.refs.Store(filepath.ToSlash(relpath), data)
		return nil
	})
	if err != nil {
		return xerrors.Errorf("could not browse the refs directory: %w", err)
	}

	// Now we look for HEAD
	data, err := afero.ReadFile(b.fs, filepath.Join(b.dotGitPath, ginternals.Head))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return xerrors.Errorf("could not read reference at %s: %w", ginternals.Head, err)
	}
	b.refs.Store(ginternals.Head, data)
	return nil
}

// WriteReference writes the given reference on disk. If the
// reference already exists it will be overwritten
func (b *Backend) WriteReference(ref *ginternals.Reference) error {
	return b.writeReference(ref)
}

// WriteReferenceSafe writes the given reference on disk.
// ErrRefExists is returned if the reference already exists
func (b *Backend) WriteReferenceSafe(ref *ginternals.Reference) error {
	if _, ok := b.refs.Load(ref.Name()); ok {
		return ginternals.ErrRefExists
	}
	return b.writeReference(ref)
}

func (b *Backend) writeReference(ref *ginternals.Reference) error {
	if !ginternals.IsRefNameValid(ref.Name()) {
		return ginternals.ErrRefNameInvalid
	}

	var target string
	switch ref.Type() {
	case ginternals.SymbolicReference:
		target = "ref: " + ref.SymbolicTarget() + "\n"
	case ginternals.OidReference:
		target = ref.Target().String() + "\n"
	default:
		return xerrors.Errorf("reference type %d: %w", ref.Type(), ginternals.ErrUnknownRefType)
	}

	refPath := b.systemPath(ref.Name())
	// Since we can have `/` in the ref name, we need to create
	// the path on the FS
	dir := filepath.Dir(refPath)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Errorf("could not persist reference to disk: %w", err)
	}
	data := []byte(target)
	if err := afero.WriteFile(b.fs, refPath, data, 0o644); err != nil {
		return xerrors.Errorf("could not persist reference to disk: %w", err)
	}
	b.refs.Store(ref.Name(), data)
	return nil
}

// WalkReferences runs the provided method on all the references
func (b *Backend) WalkReferences(f RefWalkFunc) error {
	var topError error
	b.refs.Range(func(key, value interface{}) bool {
		name := key.(string)
		ref, err := b.Reference(name)
		if err != nil {
			topError = xerrors.Errorf("could not resolve reference %s: %w", name, err)
			return false
		}

		if err = f(ref); err != nil {
			if err != WalkStop { //nolint:errorlint,goerr113 // it's a fake error so no need to use Error.Is()
				topError = err
			}
			return false
		}
		return true
	})
	return topError
}
