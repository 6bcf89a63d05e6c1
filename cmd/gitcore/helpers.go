package main

import (
	gitcore "github.com/go-vcs/gitcore"
	"github.com/pkg/errors"
)

func loadRepository(cfg *config) (*gitcore.Repository, error) {
	r, err := gitcore.OpenRepository(cfg.C)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open the repository at %s", cfg.C)
	}
	return r, nil
}
