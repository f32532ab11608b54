package network

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Target is where a local file lands on the netdisk.
type Target struct {
	LocalPath  string
	RemoteDir  string
	RemotePath string
}

// NewTarget resolves the remote path of localPath inside remoteDir.
// The remote dir loses its trailing separators before the base name is appended,
// so "/apps/x/" and "/apps/x" both give "/apps/x/<name>" and "/" gives "/<name>".
func NewTarget(localPath, remoteDir string) (Target, error) {
	name := filepath.Base(localPath)
	if localPath == "" || name == "." || name == string(filepath.Separator) {
		return Target{}, Errorf(KindInvalidArgument, "resolve target", "invalid local file path: %q", localPath)
	}

	dir := strings.TrimRight(remoteDir, "/")

	return Target{
		LocalPath:  localPath,
		RemoteDir:  dir,
		RemotePath: fmt.Sprintf("%s/%s", dir, name),
	}, nil
}

// FileName is the base name sent as the multipart file name.
func (t Target) FileName() string {
	return filepath.Base(t.LocalPath)
}
