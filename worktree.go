package gitcore

import (
	"os"
	"path/filepath"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/index"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// flattenTree returns all the file entries reachable from the given
// tree, keyed by their slash-separated path relative to the root of
// the tree.
// Malformed trees referencing themselves are reported as an error
// instead of looping forever
func (r *Repository) flattenTree(treeID ginternals.Oid) (map[string]object.TreeEntry, error) {
	files := map[string]object.TreeEntry{}
	err := r.flattenTreeTo(files, treeID, "", map[ginternals.Oid]struct{}{})
	return files, err
}

func (r *Repository) flattenTreeTo(files map[string]object.TreeEntry, treeID ginternals.Oid, prefix string, visited map[ginternals.Oid]struct{}) error {
	if _, ok := visited[treeID]; ok {
		return xerrors.Errorf("tree %s references itself: %w", treeID.String(), object.ErrTreeInvalid)
	}
	visited[treeID] = struct{}{}

	o, err := r.dotGit.Object(treeID)
	if err != nil {
		return xerrors.Errorf("could not get tree %s: %w", treeID.String(), err)
	}
	tree, err := o.AsTree()
	if err != nil {
		return err
	}

	for _, e := range tree.Entries() {
		p := e.Path
		if prefix != "" {
			p = prefix + "/" + e.Path
		}
		if e.Mode == object.ModeDirectory {
			if err := r.flattenTreeTo(files, e.ID, p, visited); err != nil {
				return err
			}
			continue
		}
		e.Path = p
		files[p] = e
	}
	return nil
}

// checkoutTree writes the content of the given tree into the working
// tree, and removes the previously tracked files that the tree
// doesn't contain anymore.
// It returns the new staging index describing the tree
func (r *Repository) checkoutTree(treeID ginternals.Oid, previous *index.Index) (*index.Index, error) {
	files, err := r.flattenTree(treeID)
	if err != nil {
		return nil, err
	}

	idx := index.New()
	for p, e := range files {
		o, err := r.dotGit.Object(e.ID)
		if err != nil {
			return nil, xerrors.Errorf("could not get blob %s: %w", e.ID.String(), err)
		}

		fullPath := filepath.Join(r.repoRoot, filepath.FromSlash(p))
		if err = r.fs.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return nil, xerrors.Errorf("could not create the directory of %s: %w", p, err)
		}
		perm := os.FileMode(0o644)
		if e.Mode == object.ModeExecutable {
			perm = 0o755
		}
		if err = afero.WriteFile(r.fs, fullPath, o.Bytes(), perm); err != nil {
			return nil, xerrors.Errorf("could not write %s: %w", p, err)
		}

		entry := index.Entry{
			Path: p,
			ID:   e.ID,
			Mode: uint32(e.Mode),
			Size: uint32(o.Size()),
		}
		if fi, err := r.fs.Stat(fullPath); err == nil {
			entry.MTime = uint32(fi.ModTime().Unix())
			entry.MTimeNano = uint32(fi.ModTime().Nanosecond())
			entry.CTime = entry.MTime
			entry.CTimeNano = entry.MTimeNano
		}
		idx.Add(entry)
	}

	// drop the files that were tracked but are gone from the new tree
	if previous != nil {
		for _, e := range previous.Entries() {
			if _, stillThere := files[e.Path]; stillThere {
				continue
			}
			fullPath := filepath.Join(r.repoRoot, filepath.FromSlash(e.Path))
			if err := r.fs.Remove(fullPath); err != nil {
				// the file may have been removed by hand already
				continue
			}
		}
	}
	return idx, nil
}
