// Package chunkuploader splits a local file into fixed-size chunks and sends them,
// strictly one at a time and in ascending order, into an open netdisk upload session.
package chunkuploader

import (
	"context"

	"github.com/bitrise-io/go-netdisk/netdisk/network"
)

// ChunkProvider provides chunk data for upload.
// Implementations may require chunks to be requested in ascending index order.
type ChunkProvider interface {
	// NumChunks returns the total number of chunks.
	NumChunks() int

	// ChunkSize returns the size of the chunk at the given index.
	ChunkSize(index int) int64

	// GetChunk returns the bytes of the chunk at the given index.
	// The returned slice is only valid until the next call.
	GetChunk(index int) ([]byte, error)
}

// ChunkSender sends a single chunk over the wire. *network.Client implements it.
type ChunkSender interface {
	UploadChunk(ctx context.Context, req network.ChunkRequest) (network.ChunkResponse, error)
}

// Session is an upload session opened by precreate. It lives for a single upload.
type Session struct {
	UploadID    string
	AccessToken string
	Target      network.Target
	Plan        Plan
	// Digests holds one digest per chunk of Plan, in the same order.
	Digests []string
}

// SingleShot reports whether the whole file fits into one chunk. The provider's
// acknowledgement is held to a stricter standard on this path.
func (s Session) SingleShot() bool {
	return s.Plan.NumChunks() == 1 && s.Plan.FileSize <= s.Plan.ChunkSize
}

// Progress is reported after every acknowledged chunk.
type Progress struct {
	UploadID   string
	ChunkIndex int
	ChunkCount int
	BytesSent  int64
	TotalBytes int64
}

// ProgressFunc ...
type ProgressFunc func(Progress)
