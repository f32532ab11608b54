package chunkuploader

import (
	"fmt"

	"github.com/docker/go-units"
)

// DefaultChunkSize is the block size the provider expects for regular accounts.
const DefaultChunkSize int64 = 4 * units.MiB

// Config holds configuration for the chunk uploader.
type Config struct {
	// ChunkSize is the size of every chunk but the last one.
	// Default: 4 MiB
	ChunkSize int64

	// Progress is called after every acknowledged chunk. Optional.
	Progress ProgressFunc
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
	}
}

// Validate ...
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	return nil
}
