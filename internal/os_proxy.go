package internal

import (
	"os"
)

// OsProxy is the part of the os package the file-touching code goes through,
// so tests can swap in failures the real filesystem cannot produce on demand.
type OsProxy interface {
	Stat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]os.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	MkdirAll(path string, perm os.FileMode) error
	CreateTemp(dir, pattern string) (*os.File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	Executable() (string, error)
	UserHomeDir() (string, error)
}

// RealOS is the default implementation that delegates to the real os package.
type RealOS struct{}

func (RealOS) Stat(name string) (os.FileInfo, error)            { return os.Stat(name) }               //nolint:revive
func (RealOS) ReadDir(name string) ([]os.DirEntry, error)       { return os.ReadDir(name) }            //nolint:revive
func (RealOS) ReadFile(name string) ([]byte, error)             { return os.ReadFile(name) }           //nolint:revive
func (RealOS) MkdirAll(path string, perm os.FileMode) error     { return os.MkdirAll(path, perm) }     //nolint:revive
func (RealOS) CreateTemp(dir, pattern string) (*os.File, error) { return os.CreateTemp(dir, pattern) } //nolint:revive
func (RealOS) Rename(oldpath, newpath string) error             { return os.Rename(oldpath, newpath) } //nolint:revive
func (RealOS) Remove(name string) error                         { return os.Remove(name) }             //nolint:revive
func (RealOS) Executable() (string, error)                      { return os.Executable() }             //nolint:revive
func (RealOS) UserHomeDir() (string, error)                     { return os.UserHomeDir() }            //nolint:revive

// DirEntry ...
type DirEntry = os.DirEntry
