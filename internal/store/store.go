// ABOUTME: Persistent key-value store for calibration and timezone state
// ABOUTME: Small integer keys, idempotent overwrites, atomic file-backed implementation
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Well-known keys, matching the NVS layout of the original hardware.
const (
	KeyAging = 1 // persisted aging factor
	KeyTzDst = 2 // UTC offset (hours, incl. DST) applied at the last clock write
)

// Store is a minimal blob store keyed by small integers.
type Store interface {
	Get(key int) ([]byte, bool)
	Set(key int, value []byte) error
}

// FileStore persists each key as its own file with an atomic rename.
// The two keys are logically independent, so no multi-key atomicity is needed.
type FileStore struct {
	dir string
}

// NewFileStore creates the backing directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key int) string {
	return filepath.Join(s.dir, strconv.Itoa(key))
}

// Get returns the stored blob, or false if the key was never written.
func (s *FileStore) Get(key int) ([]byte, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set overwrites the key. The write is atomic: a torn write can never leave a
// half-updated value behind a power loss.
func (s *FileStore) Set(key int, value []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0644); err != nil {
		return fmt.Errorf("writing key %d: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("committing key %d: %w", key, err)
	}
	return nil
}

// MemStore is an in-memory Store for tests and host simulation.
type MemStore struct {
	mu   sync.Mutex
	data map[int][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[int][]byte)}
}

func (s *MemStore) Get(key int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

func (s *MemStore) Set(key int, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

// GetInt reads a key holding a decimal integer.
func GetInt(s Store, key int) (int, bool) {
	data, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, false
	}
	return v, true
}

// SetInt writes a key as a decimal integer.
func SetInt(s Store, key, value int) error {
	return s.Set(key, []byte(strconv.Itoa(value)))
}
