package main

import (
	"github.com/spf13/cobra"
)

type config struct {
	// C is a simpler version of git's -C:
	// https://git-scm.com/docs/git#Documentation/git.txt--Cltpathgt
	C string
}

func newRootCmd(cwd string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gitcore",
		Short:         "self-contained git client in pure Go",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg := &config{}
	cmd.PersistentFlags().StringVarP(&cfg.C, "directory", "C", cwd, "Run as if started in the provided path instead of the current working directory.")

	cmd.AddCommand(newInitCmd(cfg))
	cmd.AddCommand(newCloneCmd(cfg))
	cmd.AddCommand(newCommitCmd(cfg))
	cmd.AddCommand(newStatusCmd(cfg))
	cmd.AddCommand(newLogCmd(cfg))
	cmd.AddCommand(newPullCmd(cfg))
	cmd.AddCommand(newPushCmd(cfg))

	return cmd
}
