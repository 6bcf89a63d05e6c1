package gitcore

import (
	"errors"
	"fmt"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/index"
	"github.com/go-vcs/gitcore/ginternals/object"
	"golang.org/x/xerrors"
)

// ErrUnrelatedHistories is returned when merging two commits that
// share no common ancestor
var ErrUnrelatedHistories = errors.New("refusing to merge unrelated histories")

// merge creates a two-parent commit joining the local and the remote
// history.
// The merged tree is the union of both trees; a path present on both
// sides keeps the LOCAL content. This tie-break is part of the public
// behavior of Pull and must not be changed to a three-way merge
func (r *Repository) merge(localID, remoteID ginternals.Oid, branch string) (ginternals.Oid, error) {
	if !r.sharesHistory(localID, remoteID) {
		return ginternals.NullOid, ErrUnrelatedHistories
	}

	localFiles, err := r.commitFiles(localID)
	if err != nil {
		return ginternals.NullOid, err
	}
	remoteFiles, err := r.commitFiles(remoteID)
	if err != nil {
		return ginternals.NullOid, err
	}

	// union of both trees, local wins on collision
	merged := map[string]object.TreeEntry{}
	for p, e := range remoteFiles {
		merged[p] = e
	}
	for p, e := range localFiles {
		merged[p] = e
	}

	entries := make([]index.Entry, 0, len(merged))
	for p, e := range merged {
		entries = append(entries, index.Entry{
			Path: p,
			ID:   e.ID,
			Mode: uint32(e.Mode),
		})
	}
	treeID, err := r.writeTrees(entries)
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not write the merged trees: %w", err)
	}

	author, err := r.author()
	if err != nil {
		return ginternals.NullOid, err
	}
	c := object.NewCommit(treeID, author, &object.CommitOptions{
		Message:   fmt.Sprintf("Merge remote-tracking branch '%s/%s'", originRemote, branch),
		ParentsID: []ginternals.Oid{localID, remoteID},
	})
	commitID, err := r.dotGit.WriteObject(c.ToObject())
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not write the merge commit: %w", err)
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	prev, err := r.loadIndex()
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not load the index: %w", err)
	}
	idx, err := r.checkoutTree(treeID, prev)
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not checkout the merged tree: %w", err)
	}
	if err = r.saveIndex(idx); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not save the index: %w", err)
	}
	if err = r.advanceHead(commitID); err != nil {
		return ginternals.NullOid, err
	}
	return commitID, nil
}

// sharesHistory returns whether the two commits have at least one
// common ancestor
func (r *Repository) sharesHistory(a, b ginternals.Oid) bool {
	reachable := map[ginternals.Oid]struct{}{}
	r.walkHistory(a, func(c *object.Commit) {
		reachable[c.ID()] = struct{}{}
	})

	common := false
	r.walkHistory(b, func(c *object.Commit) {
		if _, ok := reachable[c.ID()]; ok {
			common = true
		}
	})
	return common
}

// commitFiles returns the flattened tree of the given commit
func (r *Repository) commitFiles(commitID ginternals.Oid) (map[string]object.TreeEntry, error) {
	o, err := r.dotGit.Object(commitID)
	if err != nil {
		return nil, xerrors.Errorf("could not get commit %s: %w", commitID.String(), err)
	}
	c, err := o.AsCommit()
	if err != nil {
		return nil, err
	}
	return r.flattenTree(c.TreeID())
}
