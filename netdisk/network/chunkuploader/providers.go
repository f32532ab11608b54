package chunkuploader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bitrise-io/go-netdisk/netdisk/checksum"
	"github.com/bitrise-io/go-netdisk/netdisk/network"
)

// FileChunkProvider reads the chunks of a plan from a file on disk.
// It keeps a single sequential read cursor, so chunks must be requested in ascending order.
// Not safe for concurrent use.
type FileChunkProvider struct {
	file *os.File
	plan Plan
	next int
	buf  []byte
}

// NewFileChunkProvider opens path for reading the chunks of plan.
func NewFileChunkProvider(path string, plan Plan) (*FileChunkProvider, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, network.NewError(network.KindLocalFile, "open file", err)
	}

	return &FileChunkProvider{
		file: file,
		plan: plan,
	}, nil
}

// NumChunks returns the total number of chunks.
func (p *FileChunkProvider) NumChunks() int {
	return p.plan.NumChunks()
}

// ChunkSize returns the size of the chunk at the given index.
func (p *FileChunkProvider) ChunkSize(index int) int64 {
	if index < 0 || index >= len(p.plan.Chunks) {
		return 0
	}
	return p.plan.Chunks[index].Length
}

// GetChunk reads exactly the planned number of bytes of the chunk at index.
// Fewer bytes than planned is a local file error.
func (p *FileChunkProvider) GetChunk(index int) ([]byte, error) {
	if index != p.next {
		return nil, network.Errorf(network.KindInvalidArgument, "read chunk", "chunk %d requested, next readable chunk is %d", index, p.next)
	}
	if index >= len(p.plan.Chunks) {
		return nil, network.Errorf(network.KindInvalidArgument, "read chunk", "chunk index %d out of range [0, %d)", index, len(p.plan.Chunks))
	}

	chunk := p.plan.Chunks[index]
	if int64(cap(p.buf)) < chunk.Length {
		p.buf = make([]byte, chunk.Length)
	}
	data := p.buf[:chunk.Length]

	n, err := io.ReadFull(p.file, data)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, network.Errorf(network.KindLocalFile, "read chunk",
				"short read for chunk %d: got %d of %d bytes at offset %d", index, n, chunk.Length, chunk.Offset)
		}
		return nil, &network.Error{Kind: network.KindLocalFile, Op: "read chunk", Detail: fmt.Sprintf("chunk %d", index), Err: err}
	}
	p.next++

	return data, nil
}

// Close closes the underlying file.
func (p *FileChunkProvider) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ByteSliceChunkProvider provides chunks from pre-loaded byte slices.
type ByteSliceChunkProvider struct {
	chunks [][]byte
}

// NewByteSliceChunkProvider creates a ChunkProvider from byte slices.
func NewByteSliceChunkProvider(chunks [][]byte) *ByteSliceChunkProvider {
	return &ByteSliceChunkProvider{chunks: chunks}
}

// NumChunks returns the total number of chunks.
func (p *ByteSliceChunkProvider) NumChunks() int {
	return len(p.chunks)
}

// ChunkSize returns the size of the chunk at the given index.
func (p *ByteSliceChunkProvider) ChunkSize(index int) int64 {
	if index < 0 || index >= len(p.chunks) {
		return 0
	}
	return int64(len(p.chunks[index]))
}

// GetChunk returns the chunk at the given index.
func (p *ByteSliceChunkProvider) GetChunk(index int) ([]byte, error) {
	if index < 0 || index >= len(p.chunks) {
		return nil, network.Errorf(network.KindInvalidArgument, "read chunk", "chunk index %d out of range [0, %d)", index, len(p.chunks))
	}
	return p.chunks[index], nil
}

// DigestFile reads every chunk of plan from path and returns their digests in plan order.
// It goes through the same reader the transmission uses, so a file that does not change
// between the two passes always yields matching digests.
func DigestFile(path string, plan Plan) ([]string, error) {
	provider, err := NewFileChunkProvider(path, plan)
	if err != nil {
		return nil, err
	}
	defer provider.Close() //nolint:errcheck

	return DigestChunks(provider)
}

// DigestChunks ...
func DigestChunks(provider ChunkProvider) ([]string, error) {
	digests := make([]string, 0, provider.NumChunks())
	for i := 0; i < provider.NumChunks(); i++ {
		data, err := provider.GetChunk(i)
		if err != nil {
			return nil, err
		}
		digests = append(digests, checksum.Digest(data))
	}
	return digests, nil
}
