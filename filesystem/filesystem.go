// Package filesystem lists local directories for picking files to upload.
package filesystem

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"

	"github.com/bitrise-io/go-netdisk/internal"
)

// FileInfo describes a directory entry.
type FileInfo struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	// Size is nil for directories.
	Size     *int64    `json:"size"`
	ReadOnly bool      `json:"readonly"`
	ModTime  time.Time `json:"mod_time"`
	MimeType string    `json:"mime_type,omitempty"`
}

// ListOptions ...
type ListOptions struct {
	// Pattern filters entries by name, using doublestar syntax. Empty matches everything.
	Pattern string
	// DetectMimeType sniffs the content type of regular files.
	DetectMimeType bool
}

// Lister ...
type Lister struct {
	os     internal.OsProxy
	logger log.Logger
}

// NewLister ...
func NewLister(logger log.Logger) Lister {
	return Lister{os: internal.RealOS{}, logger: logger}
}

// ListDirectory returns the entries of path in name order. Entries whose metadata cannot
// be read are left out with a warning rather than failing the listing.
func (l Lister) ListDirectory(path string, opts ListOptions) ([]FileInfo, error) {
	entries, err := l.os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory '%s': %w", path, err)
	}

	if opts.Pattern != "" {
		var matchErr error
		entries = lo.Filter(entries, func(entry internal.DirEntry, _ int) bool {
			match, err := doublestar.Match(opts.Pattern, entry.Name())
			if err != nil {
				matchErr = err
			}
			return match
		})
		if matchErr != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", opts.Pattern, matchErr)
		}
	}

	return lo.FilterMap(entries, func(entry internal.DirEntry, _ int) (FileInfo, bool) {
		entryPath := filepath.Join(path, entry.Name())

		info, err := entry.Info()
		if err != nil {
			l.logger.Warnf("Cannot read metadata of %s: %s", entryPath, err)
			return FileInfo{}, false
		}

		fileInfo := FileInfo{
			Name:     entry.Name(),
			Path:     entryPath,
			IsDir:    info.IsDir(),
			ReadOnly: info.Mode().Perm()&0222 == 0,
			ModTime:  info.ModTime(),
		}
		if !info.IsDir() {
			size := info.Size()
			fileInfo.Size = &size
		}
		if opts.DetectMimeType && info.Mode().IsRegular() {
			mime, err := mimetype.DetectFile(entryPath)
			if err != nil {
				l.logger.Debugf("Cannot detect content type of %s: %s", entryPath, err)
			} else {
				fileInfo.MimeType = mime.String()
			}
		}

		return fileInfo, true
	}), nil
}

// InitialPath is the directory a file picker starts in: the directory of the running
// executable, or the user's home directory when that is unknown.
func (l Lister) InitialPath() (string, error) {
	exe, exeErr := l.os.Executable()
	if exeErr == nil {
		return filepath.Dir(exe), nil
	}
	l.logger.Debugf("Cannot determine executable path: %s, trying home dir", exeErr)

	home, err := l.os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine initial path: %s, %w", exeErr, err)
	}
	return home, nil
}
