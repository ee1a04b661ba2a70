package filestore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// ErrEmptyPath is returned when a write targets an empty path
var ErrEmptyPath = errors.New("file path must not be empty")

// Store is the in-memory project for one session. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	files map[string]models.FileRecord
	now   func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the timestamp source used for LastModifiedAt
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		files: make(map[string]models.FileRecord),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the record stored at path
func (s *Store) Get(path string) (models.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[path]
	return rec, ok
}

// Has reports whether path exists
func (s *Store) Has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.files[path]
	return ok
}

// Set creates or overwrites the file at path
func (s *Store) Set(path, content string) error {
	if path == "" {
		return ErrEmptyPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[path] = s.record(path, content)
	return nil
}

// Keys returns every path in lexicographic order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PathSet returns the current paths as a set
func (s *Store) PathSet() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{}, len(s.files))
	for k := range s.files {
		set[k] = struct{}{}
	}
	return set
}

// Len returns the number of files
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Load replaces the whole project. Nothing is written if any path is invalid.
func (s *Store) Load(files map[string]string) error {
	for path := range files {
		if path == "" {
			return fmt.Errorf("failed to load project: %w", ErrEmptyPath)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make(map[string]models.FileRecord, len(files))
	for path, content := range files {
		s.files[path] = s.record(path, content)
	}
	return nil
}

// Clear removes every file
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = make(map[string]models.FileRecord)
}

// Fingerprint hashes all paths and contents. Equal projects yield equal fingerprints.
func (s *Store) Fingerprint() uint64 {
	keys := s.Keys()

	s.mu.RLock()
	defer s.mu.RUnlock()

	h := xxh3.New()
	for _, k := range keys {
		rec, ok := s.files[k]
		if !ok {
			continue
		}
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(rec.Content))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

func (s *Store) record(path, content string) models.FileRecord {
	return models.FileRecord{
		Path:           path,
		Content:        content,
		LastModifiedAt: s.now(),
		Hash:           ContentHash(content),
	}
}

// ContentHash returns the hex xxh3 digest used as a file ETag
func ContentHash(content string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(content))
}
