package main

import (
	"path/filepath"
	"strings"

	gitcore "github.com/go-vcs/gitcore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCloneCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone url [directory]",
		Short: "clone a repository into a new directory",
		Args:  cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cloneCmd(cmd, cfg, args)
	}

	return cmd
}

func cloneCmd(cmd *cobra.Command, cfg *config, args []string) error {
	url := args[0]
	dir := defaultCloneDir(url)
	if len(args) == 2 {
		dir = args[1]
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.C, dir)
	}

	r, err := gitcore.Clone(cmd.Context(), url, dir)
	if err != nil {
		return errors.Wrapf(err, "could not clone %s", url)
	}
	return r.Close()
}

// defaultCloneDir extracts the name of the repository from its URL,
// the way git names the directory when none is given
func defaultCloneDir(url string) string {
	name := strings.TrimSuffix(url, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}
