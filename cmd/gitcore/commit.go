package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCommitCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit file...",
		Short: "record the content of the given files in a new commit",
		Args:  cobra.MinimumNArgs(1),
	}

	message := cmd.Flags().StringP("message", "m", "", "commit message")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return commitCmd(cmd, cfg, args, *message)
	}

	return cmd
}

func commitCmd(cmd *cobra.Command, cfg *config, files []string, message string) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck // nothing to report at this point

	oid, err := r.Commit(files, message)
	if err != nil {
		return errors.Wrap(err, "could not commit")
	}
	fmt.Fprintln(cmd.OutOrStdout(), oid.String())
	return nil
}
