// Package timestamps remembers when local files were last uploaded.
package timestamps

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/bitrise-io/go-netdisk/internal"
)

// Store keeps a map of local file path to the Unix millisecond time of its last upload
// in a JSON object file. Every change reloads the file, merges and saves it back.
type Store struct {
	path string
	os   internal.OsProxy
	mu   sync.Mutex
}

// NewStore ...
func NewStore(path string) *Store {
	return &Store{path: path, os: internal.RealOS{}}
}

// Path ...
func (s *Store) Path() string {
	return s.path
}

// All returns every recorded timestamp. A missing store file is an empty store.
func (s *Store) All() (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the timestamp recorded for path.
func (s *Store) Get(path string) (int64, bool, error) {
	all, err := s.All()
	if err != nil {
		return 0, false, err
	}
	millis, ok := all[path]
	return millis, ok, nil
}

// Set records millis for path.
func (s *Store) Set(path string, millis int64) error {
	if path == "" {
		return errors.New("file path is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[path] = millis
	return s.save(all)
}

// Record records t for path.
func (s *Store) Record(path string, t time.Time) error {
	return s.Set(path, t.UnixMilli())
}

func (s *Store) load() (map[string]int64, error) {
	b, err := s.os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamps: %w", err)
	}

	timestamps := map[string]int64{}
	if len(b) == 0 {
		return timestamps, nil
	}
	if err := json.Unmarshal(b, &timestamps); err != nil {
		return nil, fmt.Errorf("failed to parse timestamps file %s: %w", s.path, err)
	}
	return timestamps, nil
}

// save writes to a temp file in the same directory first, so a crash never leaves a truncated store behind.
func (s *Store) save(timestamps map[string]int64) error {
	b, err := json.MarshalIndent(timestamps, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode timestamps: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create timestamps dir: %w", err)
	}

	tmp, err := s.os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = s.os.Remove(tmpPath)
		return fmt.Errorf("failed to write timestamps: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.os.Remove(tmpPath)
		return fmt.Errorf("failed to write timestamps: %w", err)
	}

	if err := s.os.Rename(tmpPath, s.path); err != nil {
		_ = s.os.Remove(tmpPath)
		return fmt.Errorf("failed to replace timestamps file: %w", err)
	}
	return nil
}
