package gitcore

import (
	"bufio"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/internal/errutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// ignoreChecker matches paths against the rules of the .gitignore
// file at the root of the working tree.
// Only a subset of the gitignore syntax is supported: comments, blank
// lines, directory patterns (trailing slash), and * globs. Patterns
// containing a slash match against the full relative path, the others
// match against any path segment
type ignoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern string
	dirOnly bool
	// rooted patterns contain a slash and match the full path
	rooted bool
}

// newIgnoreChecker loads the .gitignore file at the root of the given
// working tree. A missing file yields a checker that only ignores
// the .git directory
func newIgnoreChecker(fs afero.Fs, workTreePath string) (c *ignoreChecker, err error) {
	c = &ignoreChecker{}

	f, err := fs.Open(filepath.Join(workTreePath, ".gitignore"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, xerrors.Errorf("could not open .gitignore: %w", err)
	}
	defer errutil.Close(f, &err)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := ignorePattern{pattern: line}
		if strings.HasSuffix(p.pattern, "/") {
			p.dirOnly = true
			p.pattern = strings.TrimSuffix(p.pattern, "/")
		}
		p.pattern = strings.TrimPrefix(p.pattern, "/")
		p.rooted = strings.Contains(p.pattern, "/")
		c.patterns = append(c.patterns, p)
	}
	if sc.Err() != nil {
		return nil, xerrors.Errorf("could not read .gitignore: %w", sc.Err())
	}
	return c, nil
}

// IsIgnored returns whether the given slash-separated path, relative
// to the root of the working tree, is ignored
func (c *ignoreChecker) IsIgnored(relPath string, isDir bool) bool {
	relPath = path.Clean(filepath.ToSlash(relPath))

	// the repository data itself is never tracked
	if relPath == ginternals.DotGitName || strings.HasPrefix(relPath, ginternals.DotGitName+"/") {
		return true
	}

	for _, p := range c.patterns {
		if p.dirOnly && !isDir && !c.parentMatches(relPath, p) {
			continue
		}
		if p.matches(relPath) {
			return true
		}
	}
	return false
}

// parentMatches reports whether any parent directory of the path
// matches a directory-only pattern, which makes everything under it
// ignored
func (c *ignoreChecker) parentMatches(relPath string, p ignorePattern) bool {
	for dir := path.Dir(relPath); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if p.matches(dir) {
			return true
		}
	}
	return false
}

func (p ignorePattern) matches(relPath string) bool {
	if p.rooted {
		ok, err := path.Match(p.pattern, relPath)
		return err == nil && ok
	}
	// unrooted patterns can match any segment of the path
	for _, segment := range strings.Split(relPath, "/") {
		if ok, err := path.Match(p.pattern, segment); err == nil && ok {
			return true
		}
	}
	return false
}
