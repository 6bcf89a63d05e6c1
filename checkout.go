package gitcore

import (
	"github.com/go-vcs/gitcore/ginternals"
	"golang.org/x/xerrors"
)

// Check writes the tree of the given commit into the working tree and
// detaches HEAD on it.
// The previously tracked files that the commit doesn't contain are
// removed
func (r *Repository) Check(commitID ginternals.Oid) error {
	if err := r.restoreTree(commitID); err != nil {
		return err
	}
	ref := ginternals.NewReference(ginternals.Head, commitID)
	if err := r.dotGit.WriteReference(ref); err != nil {
		return xerrors.Errorf("could not detach HEAD on %s: %w", commitID.String(), err)
	}

	r.refreshStatus()
	return nil
}

// Reset moves the current branch to the given commit and restores the
// working tree and the index to its content, discarding everything
// that came after
func (r *Repository) Reset(commitID ginternals.Oid) error {
	if err := r.restoreTree(commitID); err != nil {
		return err
	}
	if err := r.advanceHead(commitID); err != nil {
		return err
	}

	r.refreshStatus()
	return nil
}

// restoreTree checks out the tree of the given commit and rewrites
// the index to match it
func (r *Repository) restoreTree(commitID ginternals.Oid) error {
	o, err := r.dotGit.Object(commitID)
	if err != nil {
		return xerrors.Errorf("could not get commit %s: %w", commitID.String(), err)
	}
	c, err := o.AsCommit()
	if err != nil {
		return err
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	prev, err := r.loadIndex()
	if err != nil {
		return xerrors.Errorf("could not load the index: %w", err)
	}
	idx, err := r.checkoutTree(c.TreeID(), prev)
	if err != nil {
		return xerrors.Errorf("could not checkout tree %s: %w", c.TreeID().String(), err)
	}
	if err = r.saveIndex(idx); err != nil {
		return xerrors.Errorf("could not save the index: %w", err)
	}
	return nil
}
