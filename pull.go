package gitcore

import (
	"context"
	"errors"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/packfile"
	"github.com/go-vcs/gitcore/ginternals/transport"
	"golang.org/x/xerrors"
)

// originRemote is the only remote the repository exchanges data with
const originRemote = "origin"

// Pull fetches the current branch from origin and integrates the
// result into the working tree.
// It returns false without any pack transfer when the remote's tip
// already matches the recorded remote-tracking ref.
// Integration is a fast-forward when possible, otherwise a two-parent
// merge (see merge.go)
func (r *Repository) Pull(ctx context.Context) (updated bool, err error) {
	url, err := r.Remote()
	if err != nil {
		return false, err
	}
	branch, err := r.Branch()
	if err != nil {
		return false, xerrors.Errorf("could not find the current branch: %w", err)
	}

	refs, err := r.client.AdvertiseRefs(ctx, url, transport.UploadPackService)
	if err != nil {
		return false, xerrors.Errorf("could not list the refs of %s: %w", url, err)
	}
	remoteTip, err := findRef(refs, ginternals.LocalBranchFullName(branch))
	if err != nil {
		return false, err
	}

	// nothing to do if we already know about the remote's tip
	remoteTrackingRef := ginternals.RemoteBranchFullName(originRemote, branch)
	if lastKnown, err := r.dotGit.Reference(remoteTrackingRef); err == nil {
		if lastKnown.Target() == remoteTip {
			return false, nil
		}
	}

	// we advertise everything we have so the remote only packs what
	// we miss
	var haves []ginternals.Oid
	err = r.dotGit.WalkLooseObjectIDs(func(oid ginternals.Oid) error {
		haves = append(haves, oid)
		return nil
	})
	if err != nil {
		return false, xerrors.Errorf("could not list the local objects: %w", err)
	}

	pack, err := r.client.FetchPack(ctx, url, []ginternals.Oid{remoteTip}, haves)
	if err != nil {
		return false, xerrors.Errorf("could not fetch the pack: %w", err)
	}
	if _, err = r.Unpack(pack); err != nil {
		return false, xerrors.Errorf("could not unpack the fetched pack: %w", err)
	}

	if err = r.integrate(remoteTip, branch); err != nil {
		return false, err
	}

	ref := ginternals.NewReference(remoteTrackingRef, remoteTip)
	if err = r.dotGit.WriteReference(ref); err != nil {
		return false, xerrors.Errorf("could not update %s: %w", remoteTrackingRef, err)
	}

	r.refreshStatus()
	return true, nil
}

// integrate brings the working tree and the current branch up to the
// fetched remote tip, fast-forwarding when the local tip is part of
// the fetched history
func (r *Repository) integrate(remoteTip ginternals.Oid, branch string) error {
	headID, unborn, err := r.headCommitID()
	if err != nil {
		return err
	}
	if headID == remoteTip {
		return nil
	}

	if unborn || r.isAncestor(headID, remoteTip) {
		return r.fastForward(remoteTip)
	}
	_, err = r.merge(headID, remoteTip, branch)
	return err
}

// fastForward checks out the given commit and moves the current
// branch to it
func (r *Repository) fastForward(commitID ginternals.Oid) error {
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
	return r.advanceHead(commitID)
}

// isAncestor returns whether ancestor is part of the history
// reachable from descendant
func (r *Repository) isAncestor(ancestor, descendant ginternals.Oid) bool {
	visited := map[ginternals.Oid]struct{}{}
	queue := []ginternals.Oid{descendant}
	for len(queue) > 0 {
		oid := queue[0]
		queue = queue[1:]
		if oid == ancestor {
			return true
		}
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
		queue = append(queue, c.ParentIDs()...)
	}
	return false
}

// Unpack explodes a packfile into loose objects in the odb and
// returns the number of objects written
func (r *Repository) Unpack(data []byte) (int, error) {
	pack, err := packfile.Parse(data)
	if err != nil {
		return 0, xerrors.Errorf("could not parse the pack: %w", err)
	}
	for _, o := range pack.Objects() {
		if _, err := r.dotGit.WriteObject(o); err != nil {
			return 0, xerrors.Errorf("could not write object %s: %w", o.ID().String(), err)
		}
	}
	r.refreshStatus()
	return pack.ObjectCount(), nil
}

// findRef returns the advertised tip of the given fully-qualified
// ref name
func findRef(refs []transport.Ref, name string) (ginternals.Oid, error) {
	for _, ref := range refs {
		if ref.Name == name {
			return ref.ID, nil
		}
	}
	return ginternals.NullOid, xerrors.Errorf("remote has no ref %s: %w", name, ginternals.ErrRefNotFound)
}

// findRefOrNull behaves like findRef but reports a missing ref as the
// null oid, which is how an about-to-be-created branch is pushed
func findRefOrNull(refs []transport.Ref, name string) ginternals.Oid {
	oid, err := findRef(refs, name)
	if err != nil && errors.Is(err, ginternals.ErrRefNotFound) {
		return ginternals.NullOid
	}
	return oid
}
