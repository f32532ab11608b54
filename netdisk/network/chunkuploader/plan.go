package chunkuploader

import "fmt"

// Chunk is a contiguous byte range of the local file.
type Chunk struct {
	Index  int
	Offset int64
	Length int64
}

// Plan is the ordered list of chunks covering a file.
type Plan struct {
	FileSize  int64
	ChunkSize int64
	Chunks    []Chunk
}

// NewPlan splits fileSize bytes into chunkSize pieces.
// Every chunk is chunkSize long except the last, which holds the remainder, or a full
// chunkSize when fileSize is an exact multiple. An empty file yields a single
// zero-length chunk, since the provider needs a non-empty block list.
// It panics if chunkSize is not positive.
func NewPlan(fileSize, chunkSize int64) Plan {
	if chunkSize <= 0 {
		panic(fmt.Sprintf("chunkuploader: invalid chunk size %d", chunkSize))
	}
	if fileSize < 0 {
		panic(fmt.Sprintf("chunkuploader: invalid file size %d", fileSize))
	}

	if fileSize == 0 {
		return Plan{FileSize: 0, ChunkSize: chunkSize, Chunks: []Chunk{{Index: 0, Offset: 0, Length: 0}}}
	}

	numChunks := int((fileSize + chunkSize - 1) / chunkSize)
	chunks := make([]Chunk, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		offset := int64(i) * chunkSize
		length := chunkSize
		if remaining := fileSize - offset; remaining < chunkSize {
			length = remaining
		}
		chunks = append(chunks, Chunk{Index: i, Offset: offset, Length: length})
	}

	return Plan{FileSize: fileSize, ChunkSize: chunkSize, Chunks: chunks}
}

// NumChunks returns the total number of chunks.
func (p Plan) NumChunks() int {
	return len(p.Chunks)
}

// LastChunkSize ...
func (p Plan) LastChunkSize() int64 {
	if len(p.Chunks) == 0 {
		return 0
	}
	return p.Chunks[len(p.Chunks)-1].Length
}
