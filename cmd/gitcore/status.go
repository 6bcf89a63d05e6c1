package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "show the state of the working tree",
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusCmd(cmd, cfg)
	}

	return cmd
}

func statusCmd(cmd *cobra.Command, cfg *config) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck // nothing to report at this point

	s := r.Status()
	if s.IsClean() {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to commit, working tree clean")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, p := range s.Added {
		fmt.Fprintf(out, "added:     %s\n", p)
	}
	for _, p := range s.Modified {
		fmt.Fprintf(out, "modified:  %s\n", p)
	}
	for _, p := range s.Deleted {
		fmt.Fprintf(out, "deleted:   %s\n", p)
	}
	for _, p := range s.Untracked {
		fmt.Fprintf(out, "untracked: %s\n", p)
	}
	return nil
}
