package netdisk

import (
	"fmt"
	"strings"

	"github.com/bitrise-io/go-netdisk/netdisk/network/chunkuploader"
)

// DefaultRemoteDir receives uploads when the caller names no remote directory.
const DefaultRemoteDir = "/apps/netdisk-uploads"

// Config holds configuration for the upload orchestrator.
type Config struct {
	// ChunkSize is the size of every chunk but the last one.
	ChunkSize int64
	// DefaultRemoteDir is used when UploadParams.RemoteDir is empty.
	DefaultRemoteDir string
	// Progress is called after every acknowledged chunk. Optional.
	Progress chunkuploader.ProgressFunc
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:        chunkuploader.DefaultChunkSize,
		DefaultRemoteDir: DefaultRemoteDir,
	}
}

// Validate ...
func (c Config) Validate() error {
	if err := c.chunkConfig().Validate(); err != nil {
		return err
	}
	if c.DefaultRemoteDir != "" && !strings.HasPrefix(c.DefaultRemoteDir, "/") {
		return fmt.Errorf("default remote dir must be absolute, got %q", c.DefaultRemoteDir)
	}
	return nil
}

func (c Config) chunkConfig() chunkuploader.Config {
	return chunkuploader.Config{
		ChunkSize: c.ChunkSize,
		Progress:  c.Progress,
	}
}
