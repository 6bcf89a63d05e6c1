package gitcore

import (
	"github.com/go-vcs/gitcore/ginternals"
	"golang.org/x/xerrors"
)

// SetUser sets the identity used as author and committer of the
// commits created by this repository
func (r *Repository) SetUser(name, email string) error {
	r.configMu.Lock()
	defer r.configMu.Unlock()

	cfg, err := r.config()
	if err != nil {
		return xerrors.Errorf("could not load the config: %w", err)
	}
	cfg.SetUser(name, email)
	if err = cfg.Save(); err != nil {
		return xerrors.Errorf("could not save the config: %w", err)
	}
	return nil
}

// Remote returns the URL of origin.
// config.ErrRemoteNotFound is returned when no remote is configured
func (r *Repository) Remote() (string, error) {
	r.configMu.Lock()
	defer r.configMu.Unlock()

	cfg, err := r.config()
	if err != nil {
		return "", xerrors.Errorf("could not load the config: %w", err)
	}
	remote, err := cfg.Remote(originRemote)
	if err != nil {
		return "", err
	}
	return remote.URL, nil
}

// SetRemote sets the URL of origin, and ties the current branch to it
func (r *Repository) SetRemote(url string) error {
	branch, err := r.Branch()
	if err != nil {
		return xerrors.Errorf("could not find the current branch: %w", err)
	}

	r.configMu.Lock()
	defer r.configMu.Unlock()

	cfg, err := r.config()
	if err != nil {
		return xerrors.Errorf("could not load the config: %w", err)
	}
	cfg.SetRemote(originRemote, url)
	cfg.SetBranch(branch, originRemote, ginternals.LocalBranchFullName(branch))
	if err = cfg.Save(); err != nil {
		return xerrors.Errorf("could not save the config: %w", err)
	}
	return nil
}
