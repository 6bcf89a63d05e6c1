package gitcore

import (
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/spf13/afero"
)

// Status describes the state of the working tree relative to the last
// commit and the staging index
type Status struct {
	// Added lists the staged files that are not in the last commit
	Added []string
	// Modified lists the tracked files whose working tree content
	// differs from their staged content
	Modified []string
	// Deleted lists the tracked files missing from the working tree
	Deleted []string
	// Untracked lists the files that are neither staged nor ignored
	Untracked []string
}

// IsClean returns whether the working tree matches the last commit
func (s Status) IsClean() bool {
	return len(s.Added) == 0 && len(s.Modified) == 0 && len(s.Deleted) == 0 && len(s.Untracked) == 0
}

func (s Status) equal(other Status) bool {
	cmp := func(a, b []string) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	return cmp(s.Added, other.Added) && cmp(s.Modified, other.Modified) &&
		cmp(s.Deleted, other.Deleted) && cmp(s.Untracked, other.Untracked)
}

// Status returns the current state of the working tree.
// The view is recomputed only when something under the repository
// root has been modified since the last refresh
func (r *Repository) Status() Status {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()

	if r.maxMtime().After(r.lastRefresh) {
		r.refreshStatusUnsafe()
	}
	return r.status
}

// OnStatusChange registers a callback fired every time the status
// view changes. Only one callback can be registered at a time
func (r *Repository) OnStatusChange(f func(Status)) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.onStatusChange = f
}

// refreshStatus recomputes the status view and fires the
// status-change callback if the view changed.
// Every public mutation calls this before returning, so the callers
// never observe a stale view after a mutation
func (r *Repository) refreshStatus() {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.refreshStatusUnsafe()
}

func (r *Repository) refreshStatusUnsafe() {
	newStatus := r.computeStatus()
	changed := !newStatus.equal(r.status)
	r.status = newStatus
	r.lastRefresh = time.Now()

	if changed && r.onStatusChange != nil {
		r.onStatusChange(newStatus)
	}
}

// computeStatus classifies every non-ignored file of the working
// tree. Probe errors on individual files degrade to "nothing to
// report" instead of failing the whole computation
func (r *Repository) computeStatus() Status {
	var s Status

	checker, err := newIgnoreChecker(r.fs, r.repoRoot)
	if err != nil {
		return s
	}

	// content of the last commit
	headFiles := map[string]object.TreeEntry{}
	if head, err := r.headCommit(); err == nil {
		if files, err := r.flattenTree(head.TreeID()); err == nil {
			headFiles = files
		}
	}

	// content of the staging index
	indexFiles := map[string]ginternals.Oid{}
	r.indexMu.Lock()
	if idx, err := r.loadIndex(); err == nil {
		for _, e := range idx.Entries() {
			indexFiles[e.Path] = e.ID
		}
	}
	r.indexMu.Unlock()

	// content of the working tree, hashed
	workFiles := map[string]ginternals.Oid{}
	_ = afero.Walk(r.fs, r.repoRoot, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are not reported
		}
		rel, err := filepath.Rel(r.repoRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if checker.IsIgnored(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(r.fs, path)
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are not reported
		}
		workFiles[rel] = object.New(object.TypeBlob, data).ID()
		return nil
	})

	// tracked files are the union of the last commit and the index
	tracked := map[string]ginternals.Oid{}
	for p, e := range headFiles {
		tracked[p] = e.ID
	}
	for p, oid := range indexFiles {
		tracked[p] = oid
	}

	for p, stagedID := range tracked {
		workID, inWorkTree := workFiles[p]
		_, inHead := headFiles[p]
		switch {
		case !inWorkTree:
			s.Deleted = append(s.Deleted, p)
		case workID != stagedID:
			s.Modified = append(s.Modified, p)
		case !inHead:
			s.Added = append(s.Added, p)
		}
	}
	for p := range workFiles {
		if _, ok := tracked[p]; !ok {
			s.Untracked = append(s.Untracked, p)
		}
	}

	sort.Strings(s.Added)
	sort.Strings(s.Modified)
	sort.Strings(s.Deleted)
	sort.Strings(s.Untracked)
	return s
}

// maxMtime returns the most recent modification time found under the
// repository root
func (r *Repository) maxMtime() time.Time {
	var maxTime time.Time
	_ = afero.Walk(r.fs, r.repoRoot, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries don't gate the refresh
		}
		if info.ModTime().After(maxTime) {
			maxTime = info.ModTime()
		}
		return nil
	})
	return maxTime
}
