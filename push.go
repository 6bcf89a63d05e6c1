package gitcore

import (
	"context"
	"errors"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/packfile"
	"github.com/go-vcs/gitcore/ginternals/transport"
	"golang.org/x/xerrors"
)

// ErrNonFastForward is returned when the remote moved since the last
// pull. The push is refused instead of force-overwriting the remote
var ErrNonFastForward = errors.New("remote contains work you don't have, pull first")

// Push uploads the commits of the current branch that the remote
// doesn't have, and advances the remote's branch to the local tip
func (r *Repository) Push(ctx context.Context) error {
	url, err := r.Remote()
	if err != nil {
		return err
	}
	branch, err := r.Branch()
	if err != nil {
		return xerrors.Errorf("could not find the current branch: %w", err)
	}
	branchRef := ginternals.LocalBranchFullName(branch)

	headID, unborn, err := r.headCommitID()
	if err != nil {
		return err
	}
	if unborn {
		return xerrors.Errorf("current branch has no commit: %w", ginternals.ErrRefNotFound)
	}

	// an empty remote advertises nothing, which maps to a null tip
	var remoteTip ginternals.Oid
	refs, err := r.client.AdvertiseRefs(ctx, url, transport.ReceivePackService)
	if err != nil && !errors.Is(err, transport.ErrEmptyResponse) {
		return xerrors.Errorf("could not list the refs of %s: %w", url, err)
	}
	remoteTip = findRefOrNull(refs, branchRef)

	// we refuse to push over history we haven't integrated
	remoteTrackingRef := ginternals.RemoteBranchFullName(originRemote, branch)
	lastKnown := ginternals.NullOid
	if ref, err := r.dotGit.Reference(remoteTrackingRef); err == nil {
		lastKnown = ref.Target()
	}
	if remoteTip != lastKnown {
		return ErrNonFastForward
	}
	if remoteTip == headID {
		return nil
	}

	pack, err := packfile.Encode(r.dotGit.Object, headID, remoteTip)
	if err != nil {
		return xerrors.Errorf("could not encode the pack: %w", err)
	}
	if err = r.client.PushPack(ctx, url, remoteTip, headID, branchRef, pack); err != nil {
		return xerrors.Errorf("could not push to %s: %w", url, err)
	}

	ref := ginternals.NewReference(remoteTrackingRef, headID)
	if err = r.dotGit.WriteReference(ref); err != nil {
		return xerrors.Errorf("could not update %s: %w", remoteTrackingRef, err)
	}

	r.refreshStatus()
	return nil
}
