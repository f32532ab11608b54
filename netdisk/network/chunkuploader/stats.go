package chunkuploader

import (
	"sync"
	"time"
)

// Stats tracks upload performance metrics for progress reporting.
type Stats struct {
	sum            time.Duration
	finishedChunks int64
	bytesSent      int64
	missingAcks    int64
	mu             sync.Mutex
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Update records a successful chunk upload.
func (s *Stats) Update(d time.Duration, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sum += d
	s.finishedChunks++
	s.bytesSent += size
}

// AddMissingAck records a chunk acknowledged without a digest.
func (s *Stats) AddMissingAck() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missingAcks++
}

// Average returns the average upload duration for completed chunks.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedChunks == 0 {
		return 0
	}
	return s.sum / time.Duration(s.finishedChunks)
}

// FinishedCount returns the number of completed chunk uploads.
func (s *Stats) FinishedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedChunks
}

// TotalDuration returns the sum of all upload durations.
func (s *Stats) TotalDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sum
}

// BytesSent ...
func (s *Stats) BytesSent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesSent
}

// MissingAcks returns how many chunks were acknowledged without a digest.
func (s *Stats) MissingAcks() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missingAcks
}

// Throughput returns the bytes sent per second of upload time.
func (s *Stats) Throughput() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sum <= 0 {
		return 0
	}
	return float64(s.bytesSent) / s.sum.Seconds()
}
