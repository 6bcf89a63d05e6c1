package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLogCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log [path]",
		Short: "show the commit history, optionally limited to one path",
		Args:  cobra.MaximumNArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return logCmd(cmd, cfg, args)
	}

	return cmd
}

func logCmd(cmd *cobra.Command, cfg *config, args []string) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck // nothing to report at this point

	commits, err := r.Log()
	if len(args) == 1 {
		commits, err = r.Timeline(args[0])
	}
	if err != nil {
		return errors.Wrap(err, "could not walk the history")
	}

	out := cmd.OutOrStdout()
	for _, c := range commits {
		fmt.Fprintf(out, "commit %s\n", c.ID().String())
		fmt.Fprintf(out, "Author: %s <%s>\n", c.Author().Name, c.Author().Email)
		fmt.Fprintf(out, "Date:   %s\n\n", c.Author().Time.Format("Mon Jan 2 15:04:05 2006 -0700"))
		for _, line := range strings.Split(strings.TrimRight(c.Message(), "\n"), "\n") {
			fmt.Fprintf(out, "    %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}
