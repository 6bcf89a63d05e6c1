// Package config contains methods and structs to read and write the
// config file of a repository (.git/config)
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-vcs/gitcore/internal/errutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

// defaultLoadOption contains the params used to load the config file
//nolint:gochecknoglobals // It's a global because we
// don't want to have to redefine it all the time.
// Treat this as a const, don't ever change it from a method, even for
// testing.
var defaultLoadOption = ini.LoadOptions{
	SkipUnrecognizableLines: true,
}

var (
	// ErrRemoteNotFound is returned when the config has no remote
	// with the requested name
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrBranchNotFound is returned when the config has no branch
	// with the requested name
	ErrBranchNotFound = errors.New("branch not found")
)

// Remote represents a [remote "name"] section of the config file
type Remote struct {
	Name string
	URL  string
	// Fetch contains the refspec used to map the remote refs
	// locally, ex. +refs/heads/*:refs/remotes/origin/*
	Fetch string
}

// Branch represents a [branch "name"] section of the config file.
// It ties a local branch to the remote ref it pulls from
type Branch struct {
	Name   string
	Remote string
	Merge  string
}

// File represents the config file of a repository, with typed
// accessors over the underlying ini content
type File struct {
	fs   afero.Fs
	path string
	ini  *ini.File
}

// Load reads the config file at the given path.
// A missing file is not an error and yields an empty config
func Load(fs afero.Fs, path string) (cfg *File, err error) {
	cfg = &File{
		fs:   fs,
		path: path,
	}

	_, err = fs.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, xerrors.Errorf("could not check config file %s: %w", path, err)
		}
		cfg.ini = ini.Empty(defaultLoadOption)
		return cfg, nil
	}

	// Because we want to use afero instead of the file system, we
	// cannot just provide the file path to ini.Load. We need to open
	// the file ourselves and hand it over
	f, err := fs.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("could not open config file %s: %w", path, err)
	}
	defer errutil.Close(f, &err)

	cfg.ini, err = ini.LoadSources(defaultLoadOption, f)
	if err != nil {
		return nil, xerrors.Errorf("could not load config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config back to disk
func (cfg *File) Save() (err error) {
	f, err := cfg.fs.OpenFile(cfg.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return xerrors.Errorf("could not open config file %s: %w", cfg.path, err)
	}
	defer errutil.Close(f, &err)

	if _, err = cfg.ini.WriteTo(f); err != nil {
		return xerrors.Errorf("could not write config file: %w", err)
	}
	return nil
}

// SetCoreDefaults fills the [core] section the way git init does
func (cfg *File) SetCoreDefaults(bare bool) {
	core := cfg.ini.Section("core")
	core.Key("repositoryformatversion").SetValue("0")
	core.Key("filemode").SetValue("true")
	core.Key("bare").SetValue(fmt.Sprintf("%t", bare))
	core.Key("logallrefupdates").SetValue("true")
}

// RepoFormatVersion returns the version of the format of the repo
func (cfg *File) RepoFormatVersion() (version int, ok bool) {
	v, err := cfg.ini.Section("core").Key("repositoryformatversion").Int()
	if err != nil {
		return 0, false
	}
	return v, true
}

// UserName returns the configured user.name
func (cfg *File) UserName() (name string, ok bool) {
	v := cfg.ini.Section("user").Key("name").String()
	return v, v != ""
}

// UserEmail returns the configured user.email
func (cfg *File) UserEmail() (email string, ok bool) {
	v := cfg.ini.Section("user").Key("email").String()
	return v, v != ""
}

// SetUser persists user.name and user.email
func (cfg *File) SetUser(name, email string) {
	user := cfg.ini.Section("user")
	user.Key("name").SetValue(name)
	user.Key("email").SetValue(email)
}

// Remote returns the remote with the given name
func (cfg *File) Remote(name string) (Remote, error) {
	section := fmt.Sprintf("remote \"%s\"", name)
	if !cfg.ini.HasSection(section) {
		return Remote{}, xerrors.Errorf("remote %s: %w", name, ErrRemoteNotFound)
	}
	s := cfg.ini.Section(section)
	return Remote{
		Name:  name,
		URL:   s.Key("url").String(),
		Fetch: s.Key("fetch").String(),
	}, nil
}

// SetRemote persists a remote with the default fetch refspec
func (cfg *File) SetRemote(name, url string) {
	s := cfg.ini.Section(fmt.Sprintf("remote \"%s\"", name))
	s.Key("url").SetValue(url)
	s.Key("fetch").SetValue(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name))
}

// Branch returns the branch with the given name
func (cfg *File) Branch(name string) (Branch, error) {
	section := fmt.Sprintf("branch \"%s\"", name)
	if !cfg.ini.HasSection(section) {
		return Branch{}, xerrors.Errorf("branch %s: %w", name, ErrBranchNotFound)
	}
	s := cfg.ini.Section(section)
	return Branch{
		Name:   name,
		Remote: s.Key("remote").String(),
		Merge:  s.Key("merge").String(),
	}, nil
}

// SetBranch persists the upstream information of a branch
func (cfg *File) SetBranch(name, remote, merge string) {
	s := cfg.ini.Section(fmt.Sprintf("branch \"%s\"", name))
	s.Key("remote").SetValue(remote)
	s.Key("merge").SetValue(merge)
}
