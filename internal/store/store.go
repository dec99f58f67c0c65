// Package store implements the persisted status store backing all job
// categories. Each category (conversions, playlists, splits) gets its own
// store instance with its own lock, so cross-category operations never hold
// more than one lock at a time.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Store is the read/upsert contract shared by all backends. Upsert performs a
// read-modify-write of the record under the store's lock: the mutate callback
// receives the current record (zero value when absent) and edits it in place.
type Store[T any] interface {
	// Read returns a snapshot of every record in the category.
	Read() map[string]T
	// Get returns a single record by fingerprint.
	Get(id string) (T, bool)
	// Upsert merges changes into the record under the store lock and
	// persists the whole category document.
	Upsert(id string, mutate func(*T)) error
	// Delete removes records and persists the category document.
	Delete(ids ...string) error
}

// File is a flat JSON document store. Every write marshals the entire
// category document and publishes it with a temp-file write followed by an
// atomic rename, so a concurrent reader never observes a partial document.
// A malformed or missing document reads as empty: records are regenerable,
// so availability wins over strict durability.
type File[T any] struct {
	path   string
	mu     sync.Mutex
	logger hclog.Logger
}

// NewFile creates a file-backed store persisting to path.
func NewFile[T any](path string, logger hclog.Logger) *File[T] {
	return &File[T]{
		path:   path,
		logger: logger.Named("store").With("path", path),
	}
}

func (s *File[T]) Read() map[string]T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *File[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.load()[id]
	return rec, ok
}

func (s *File[T]) Upsert(id string, mutate func(*T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.load()
	rec := docs[id]
	mutate(&rec)
	docs[id] = rec
	return s.persist(docs)
}

func (s *File[T]) Delete(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.load()
	for _, id := range ids {
		delete(docs, id)
	}
	return s.persist(docs)
}

// load must be called with the lock held.
func (s *File[T]) load() map[string]T {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unreadable status document, treating as empty", "error", err)
		}
		return map[string]T{}
	}

	docs := map[string]T{}
	if err := json.Unmarshal(data, &docs); err != nil {
		s.logger.Warn("malformed status document, treating as empty", "error", err)
		return map[string]T{}
	}
	return docs
}

// persist must be called with the lock held.
func (s *File[T]) persist(docs map[string]T) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal status document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp status file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish status document: %w", err)
	}
	return nil
}
