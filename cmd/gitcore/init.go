package main

import (
	"fmt"

	gitcore "github.com/go-vcs/gitcore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newInitCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "init a new repository",
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return initCmd(cmd, cfg)
	}

	return cmd
}

func initCmd(cmd *cobra.Command, cfg *config) error {
	r, err := gitcore.InitRepository(cfg.C)
	if err != nil {
		return errors.Wrap(err, "could not init the repository")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty repository in %s\n", r.Path())
	return r.Close()
}
