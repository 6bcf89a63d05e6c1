package ginternals

import (
	"path"
	"path/filepath"
	"strings"
)

// Files and directories of the .git directory.
// Ref names are kept in unix format since that's how they are stored;
// the backend converts them to the current system when needed
const (
	DotGitName     = ".git"
	ConfigName     = "config"
	IndexName      = "index"
	PackedRefsName = "packed-refs"
	ObjectsDirName = "objects"

	refsDirName        = "refs"
	refsHeadsRelPath   = refsDirName + "/heads"
	refsTagsRelPath    = refsDirName + "/tags"
	refsRemotesRelPath = refsDirName + "/remotes"
)

// LocalBranchFullName returns the full name of a branch.
// Ex. for `master` returns `refs/heads/master`
func LocalBranchFullName(shortName string) string {
	return path.Join(refsHeadsRelPath, shortName)
}

// LocalBranchShortName returns the short name of a branch.
// Ex. for `refs/heads/master` returns `master`
func LocalBranchShortName(fullName string) string {
	return strings.TrimPrefix(fullName, refsHeadsRelPath+"/")
}

// RemoteBranchFullName returns the full name of a remote-tracking
// branch.
// Ex. for ("origin", "master") returns `refs/remotes/origin/master`
func RemoteBranchFullName(remote, shortName string) string {
	return path.Join(refsRemotesRelPath, remote, shortName)
}

// LocalTagFullName returns the full name of a tag.
// Ex. for `v1.0.0` returns `refs/tags/v1.0.0`
func LocalTagFullName(shortName string) string {
	return path.Join(refsTagsRelPath, shortName)
}

// RefsPath returns the path to the directory that contains all the refs
func RefsPath(dotGitPath string) string {
	return filepath.Join(dotGitPath, refsDirName)
}

// LocalBranchesPath returns the path to the directory containing the
// local branches
func LocalBranchesPath(dotGitPath string) string {
	return filepath.Join(dotGitPath, "refs", "heads")
}

// RemoteBranchesPath returns the path to the directory containing the
// remote-tracking branches
func RemoteBranchesPath(dotGitPath string) string {
	return filepath.Join(dotGitPath, "refs", "remotes")
}

// TagsPath returns the path to the directory that contains the tags
func TagsPath(dotGitPath string) string {
	return filepath.Join(dotGitPath, "refs", "tags")
}

// PackedRefsPath returns the path of the packed-refs file
func PackedRefsPath(dotGitPath string) string {
	return filepath.Join(dotGitPath, PackedRefsName)
}

// ObjectsPath returns the path to the directory that contains the
// objects
func ObjectsPath(dotGitPath string) string {
	return filepath.Join(dotGitPath, ObjectsDirName)
}

// ObjectsInfoPath returns the path to the directory that contains the
// info about the objects
func ObjectsInfoPath(dotGitPath string) string {
	return filepath.Join(ObjectsPath(dotGitPath), "info")
}

// ObjectsPacksPath returns the path to the directory that contains the
// packfiles
func ObjectsPacksPath(dotGitPath string) string {
	return filepath.Join(ObjectsPath(dotGitPath), "pack")
}

// LooseObjectPath returns the path of a loose object.
// Path is .git/objects/first_2_chars_of_sha/remaining_chars_of_sha
//
// Ex. path of fcfe68a0e44e04bd7fd564fc0b75f1ae457e18b3 is:
// .git/objects/fc/fe68a0e44e04bd7fd564fc0b75f1ae457e18b3
func LooseObjectPath(dotGitPath, sha string) string {
	return filepath.Join(ObjectsPath(dotGitPath), sha[:2], sha[2:])
}

// ConfigPath returns the path to the local config file
func ConfigPath(dotGitPath string) string {
	return filepath.Join(dotGitPath, ConfigName)
}

// IndexPath returns the path to the staging index file
func IndexPath(dotGitPath string) string {
	return filepath.Join(dotGitPath, IndexName)
}

// DescriptionFilePath returns the path to the description file
func DescriptionFilePath(dotGitPath string) string {
	return filepath.Join(dotGitPath, "description")
}
