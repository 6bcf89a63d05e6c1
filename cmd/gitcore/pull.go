package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPullCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "fetch the current branch from origin and integrate it",
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return pullCmd(cmd, cfg)
	}

	return cmd
}

func pullCmd(cmd *cobra.Command, cfg *config) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck // nothing to report at this point

	updated, err := r.Pull(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "could not pull")
	}
	if !updated {
		fmt.Fprintln(cmd.OutOrStdout(), "Already up to date.")
	}
	return nil
}
