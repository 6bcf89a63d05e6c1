package gitcore

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/index"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// List of errors returned by Commit
var (
	// ErrNoFiles is returned when committing an empty list of files
	ErrNoFiles = errors.New("no files to commit")

	// ErrNoAuthor is returned when user.name or user.email is unset
	ErrNoAuthor = errors.New("author identity unknown, set user.name and user.email")

	// ErrEmptyMessage is returned when the commit message is empty
	ErrEmptyMessage = errors.New("commit message cannot be empty")

	// ErrOutsideWorkTree is returned when a path escapes the working
	// tree
	ErrOutsideWorkTree = errors.New("path is outside the working tree")

	// ErrPathIgnored is returned when explicitly committing a path
	// matched by the ignore rules
	ErrPathIgnored = errors.New("path is ignored")
)

// Commit records the content of the given files in a new commit.
// Only the named files are refreshed, the unmentioned tracked files
// keep their previous staged content. A named file missing from the
// working tree has its deletion recorded
func (r *Repository) Commit(files []string, message string) (ginternals.Oid, error) {
	if len(files) == 0 {
		return ginternals.NullOid, ErrNoFiles
	}
	if strings.TrimSpace(message) == "" {
		return ginternals.NullOid, ErrEmptyMessage
	}

	author, err := r.author()
	if err != nil {
		return ginternals.NullOid, err
	}

	relPaths, err := r.normalizePaths(files)
	if err != nil {
		return ginternals.NullOid, err
	}

	commitID, err := r.writeCommit(relPaths, message, author)
	if err != nil {
		return ginternals.NullOid, err
	}

	// the status must be refreshed after the index lock is released,
	// computeStatus takes it to read the staged entries
	r.refreshStatus()
	return commitID, nil
}

// writeCommit stages the given files, writes the trees and the commit
// object, and advances HEAD. It owns the index lock for the whole
// operation
func (r *Repository) writeCommit(relPaths []string, message string, author object.Signature) (ginternals.Oid, error) {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	idx, err := r.loadIndex()
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not load the index: %w", err)
	}

	// Blob the files and refresh their index entries
	for _, relPath := range relPaths {
		entry, exists, err := r.stageFile(relPath)
		if err != nil {
			return ginternals.NullOid, xerrors.Errorf("could not stage %s: %w", relPath, err)
		}
		if !exists {
			idx.Remove(relPath)
			continue
		}
		idx.Add(entry)
	}

	treeID, err := r.writeTrees(idx.Entries())
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not write the trees: %w", err)
	}

	var parents []ginternals.Oid
	headID, unborn, err := r.headCommitID()
	if err != nil {
		return ginternals.NullOid, err
	}
	if !unborn {
		parents = append(parents, headID)
	}

	c := object.NewCommit(treeID, author, &object.CommitOptions{
		Message:   message,
		ParentsID: parents,
	})
	commitID, err := r.dotGit.WriteObject(c.ToObject())
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not write the commit: %w", err)
	}

	if err = r.advanceHead(commitID); err != nil {
		return ginternals.NullOid, err
	}
	if err = r.saveIndex(idx); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not save the index: %w", err)
	}
	return commitID, nil
}

// author returns the signature configured in user.name / user.email
func (r *Repository) author() (object.Signature, error) {
	r.configMu.Lock()
	defer r.configMu.Unlock()

	cfg, err := r.config()
	if err != nil {
		return object.Signature{}, xerrors.Errorf("could not load the config: %w", err)
	}
	name, ok := cfg.UserName()
	if !ok {
		return object.Signature{}, ErrNoAuthor
	}
	email, ok := cfg.UserEmail()
	if !ok {
		return object.Signature{}, ErrNoAuthor
	}
	return object.NewSignature(name, email), nil
}

// normalizePaths turns the given paths into slash-separated paths
// relative to the root of the working tree, and validates them
// against the tree boundary and the ignore rules
func (r *Repository) normalizePaths(files []string) ([]string, error) {
	checker, err := newIgnoreChecker(r.fs, r.repoRoot)
	if err != nil {
		return nil, xerrors.Errorf("could not load the ignore rules: %w", err)
	}

	relPaths := make([]string, 0, len(files))
	for _, f := range files {
		p := f
		if filepath.IsAbs(p) {
			p, err = filepath.Rel(r.repoRoot, p)
			if err != nil {
				return nil, xerrors.Errorf("%s: %w", f, ErrOutsideWorkTree)
			}
		}
		p = filepath.ToSlash(filepath.Clean(p))
		if p == "." || p == ".." || strings.HasPrefix(p, "../") {
			return nil, xerrors.Errorf("%s: %w", f, ErrOutsideWorkTree)
		}
		if checker.IsIgnored(p, false) {
			return nil, xerrors.Errorf("%s: %w", f, ErrPathIgnored)
		}
		relPaths = append(relPaths, p)
	}
	return relPaths, nil
}

// stageFile blobs the content of the file at the given relative path
// and returns its new index entry.
// exists is unset if the file is not in the working tree anymore
func (r *Repository) stageFile(relPath string) (entry index.Entry, exists bool, err error) {
	fullPath := filepath.Join(r.repoRoot, filepath.FromSlash(relPath))
	fi, err := r.fs.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return index.Entry{}, false, nil
		}
		return index.Entry{}, false, xerrors.Errorf("could not stat %s: %w", fullPath, err)
	}

	data, err := afero.ReadFile(r.fs, fullPath)
	if err != nil {
		return index.Entry{}, false, xerrors.Errorf("could not read %s: %w", fullPath, err)
	}

	o := object.New(object.TypeBlob, data)
	oid, err := r.dotGit.WriteObject(o)
	if err != nil {
		return index.Entry{}, false, xerrors.Errorf("could not write the blob: %w", err)
	}

	mode := uint32(object.ModeFile)
	if fi.Mode()&0o111 != 0 {
		mode = uint32(object.ModeExecutable)
	}
	mtime := fi.ModTime()
	return index.Entry{
		Path:      relPath,
		ID:        oid,
		MTime:     uint32(mtime.Unix()),
		MTimeNano: uint32(mtime.Nanosecond()),
		CTime:     uint32(mtime.Unix()),
		CTimeNano: uint32(mtime.Nanosecond()),
		Mode:      mode,
		Size:      uint32(fi.Size()),
	}, true, nil
}

// writeTrees builds the nested tree objects for the given index
// entries, bottom-up, and returns the oid of the root tree
func (r *Repository) writeTrees(entries []index.Entry) (ginternals.Oid, error) {
	root := newTreeNode()
	for _, e := range entries {
		node := root
		parts := strings.Split(e.Path, "/")
		for _, dir := range parts[:len(parts)-1] {
			child, ok := node.children[dir]
			if !ok {
				child = newTreeNode()
				node.children[dir] = child
			}
			node = child
		}
		node.files = append(node.files, object.TreeEntry{
			Path: parts[len(parts)-1],
			ID:   e.ID,
			Mode: object.TreeObjectMode(e.Mode),
		})
	}
	return r.writeTreeNode(root)
}

type treeNode struct {
	children map[string]*treeNode
	files    []object.TreeEntry
}

func newTreeNode() *treeNode {
	return &treeNode{children: map[string]*treeNode{}}
}

func (r *Repository) writeTreeNode(node *treeNode) (ginternals.Oid, error) {
	entries := make([]object.TreeEntry, 0, len(node.files)+len(node.children))
	entries = append(entries, node.files...)

	// the subtrees need to be written first so we know their oids
	dirs := make([]string, 0, len(node.children))
	for name := range node.children {
		dirs = append(dirs, name)
	}
	sort.Strings(dirs)
	for _, name := range dirs {
		childID, err := r.writeTreeNode(node.children[name])
		if err != nil {
			return ginternals.NullOid, err
		}
		entries = append(entries, object.TreeEntry{
			Path: name,
			ID:   childID,
			Mode: object.ModeDirectory,
		})
	}

	o := object.NewTree(entries).ToObject()
	oid, err := r.dotGit.WriteObject(o)
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not write tree: %w", err)
	}
	return oid, nil
}

// advanceHead moves the current branch (or HEAD itself when detached)
// to the given commit
func (r *Repository) advanceHead(commitID ginternals.Oid) error {
	branch, err := r.Branch()
	if err != nil {
		if !errors.Is(err, ginternals.ErrRefNotFound) {
			return err
		}
		// detached HEAD, move it directly
		return r.dotGit.WriteReference(ginternals.NewReference(ginternals.Head, commitID))
	}
	ref := ginternals.NewReference(ginternals.LocalBranchFullName(branch), commitID)
	if err := r.dotGit.WriteReference(ref); err != nil {
		return xerrors.Errorf("could not advance %s: %w", ref.Name(), err)
	}
	return nil
}

// loadIndex reads the staging index from disk.
// A missing file yields an empty index.
// The callers must hold indexMu
func (r *Repository) loadIndex() (*index.Index, error) {
	data, err := afero.ReadFile(r.fs, ginternals.IndexPath(r.dotGitPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return index.New(), nil
		}
		return nil, xerrors.Errorf("could not read the index file: %w", err)
	}
	return index.NewFromBytes(data)
}

// saveIndex writes the staging index back on disk.
// The callers must hold indexMu
func (r *Repository) saveIndex(idx *index.Index) error {
	p := ginternals.IndexPath(r.dotGitPath)
	if err := afero.WriteFile(r.fs, p, idx.Bytes(), 0o644); err != nil {
		return xerrors.Errorf("could not write %s: %w", p, err)
	}
	return nil
}
