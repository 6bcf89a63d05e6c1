package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPushCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "upload the current branch to origin",
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return pushCmd(cmd, cfg)
	}

	return cmd
}

func pushCmd(cmd *cobra.Command, cfg *config) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck // nothing to report at this point

	if err := r.Push(cmd.Context()); err != nil {
		return errors.Wrap(err, "could not push")
	}
	return nil
}
