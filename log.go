package gitcore

import (
	"errors"
	"path/filepath"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/object"
	"golang.org/x/xerrors"
)

// Log returns the commits reachable from HEAD, most recent first.
// A visited set bounds the walk, so a malformed cyclic history
// terminates instead of looping
func (r *Repository) Log() ([]*object.Commit, error) {
	headID, unborn, err := r.headCommitID()
	if err != nil {
		return nil, err
	}
	if unborn {
		return nil, nil
	}

	var commits []*object.Commit
	r.walkHistory(headID, func(c *object.Commit) {
		commits = append(commits, c)
	})
	return commits, nil
}

// walkHistory runs visit on every commit reachable from start,
// parents after children
func (r *Repository) walkHistory(start ginternals.Oid, visit func(*object.Commit)) {
	visited := map[ginternals.Oid]struct{}{}
	queue := []ginternals.Oid{start}
	for len(queue) > 0 {
		oid := queue[0]
		queue = queue[1:]
		if _, ok := visited[oid]; ok {
			continue
		}
		visited[oid] = struct{}{}

		o, err := r.dotGit.Object(oid)
		if err != nil {
			continue
		}
		c, err := o.AsCommit()
		if err != nil {
			continue
		}
		visit(c)
		queue = append(queue, c.ParentIDs()...)
	}
}

// Timeline returns the commits of the log that changed the content of
// the given path, most recent first
func (r *Repository) Timeline(path string) ([]*object.Commit, error) {
	relPath := filepath.ToSlash(path)
	commits, err := r.Log()
	if err != nil {
		return nil, err
	}

	var timeline []*object.Commit
	for _, c := range commits {
		changed, err := r.pathChangedIn(c, relPath)
		if err != nil {
			return nil, err
		}
		if changed {
			timeline = append(timeline, c)
		}
	}
	return timeline, nil
}

// pathChangedIn returns whether the content of the given path in the
// commit differs from its content in the commit's first parent
func (r *Repository) pathChangedIn(c *object.Commit, relPath string) (bool, error) {
	currentID, hasCurrent, err := r.blobIDAt(c.ID(), relPath)
	if err != nil {
		return false, err
	}

	parents := c.ParentIDs()
	if len(parents) == 0 {
		return hasCurrent, nil
	}
	parentID, hasParent, err := r.blobIDAt(parents[0], relPath)
	if err != nil {
		return false, err
	}

	if hasCurrent != hasParent {
		return true, nil
	}
	return hasCurrent && currentID != parentID, nil
}

// blobIDAt returns the blob oid of the given path in the tree of the
// given commit
func (r *Repository) blobIDAt(commitID ginternals.Oid, relPath string) (oid ginternals.Oid, found bool, err error) {
	files, err := r.commitFiles(commitID)
	if err != nil {
		return ginternals.NullOid, false, err
	}
	e, ok := files[relPath]
	if !ok {
		return ginternals.NullOid, false, nil
	}
	return e.ID, true, nil
}

// PreviousVersion returns the content of the given path as it was one
// commit before HEAD.
// ErrObjectNotFound is returned if the path didn't exist back then
func (r *Repository) PreviousVersion(path string) ([]byte, error) {
	relPath := filepath.ToSlash(path)
	head, err := r.headCommit()
	if err != nil {
		return nil, err
	}

	parents := head.ParentIDs()
	if len(parents) == 0 {
		return nil, xerrors.Errorf("%s has no previous version: %w", relPath, ginternals.ErrObjectNotFound)
	}

	oid, found, err := r.blobIDAt(parents[0], relPath)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.Errorf("%s not in the previous commit: %w", relPath, ginternals.ErrObjectNotFound)
	}
	o, err := r.dotGit.Object(oid)
	if err != nil {
		return nil, err
	}
	if o.Type() != object.TypeBlob {
		return nil, errors.New("previous version is not a file")
	}
	return o.Bytes(), nil
}
