package embedcache

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio"

	"github.com/fuskar/attendance/internal/classifier"
)

// Entry is one cached embedding in its gob-encoded form.
type Entry struct {
	Identity  string
	Embedding []float32
}

// FileStore is the default gob-file-backed embedding cache. All writes go
// through a write-new-then-rename swap.
type FileStore struct {
	path      string
	extractor Extractor

	mu      sync.RWMutex
	entries map[string]Entry
}

// OpenFileStore loads the cache file if present, or starts empty.
func OpenFileStore(path string, extractor Extractor) (*FileStore, error) {
	s := &FileStore{
		path:      path,
		extractor: extractor,
		entries:   make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding cache: %w", err)
	}

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s.entries); err != nil {
		return nil, fmt.Errorf("failed to decode embedding cache: %w", err)
	}

	return s, nil
}

// GetOrCompute returns the cached vector unchanged on hit; the extractor is
// only consulted for paths not in the cache.
func (s *FileStore) GetOrCompute(ctx context.Context, imagePath, identity string) ([]float32, error) {
	s.mu.RLock()
	cached, ok := s.entries[imagePath]
	s.mu.RUnlock()
	if ok {
		return cached.Embedding, nil
	}

	embedding, err := s.extractor.ExtractFace(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries[imagePath] = Entry{Identity: identity, Embedding: embedding}
	s.mu.Unlock()

	return embedding, nil
}

// Invalidate deletes the entry and persists the removal synchronously.
func (s *FileStore) Invalidate(ctx context.Context, imagePath string) error {
	s.mu.Lock()
	delete(s.entries, imagePath)
	s.mu.Unlock()

	return s.Flush(ctx)
}

// Samples lists all cached entries.
func (s *FileStore) Samples(ctx context.Context) ([]classifier.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := make([]classifier.Sample, 0, len(s.entries))
	for path, e := range s.entries {
		samples = append(samples, classifier.Sample{
			ImagePath: path,
			Identity:  e.Identity,
			Embedding: e.Embedding,
		})
	}
	return samples, nil
}

// Len returns the number of cached entries.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Flush writes the cache to disk atomically.
func (s *FileStore) Flush(ctx context.Context) error {
	s.mu.RLock()
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(s.entries)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode embedding cache: %w", err)
	}

	if err := renameio.WriteFile(s.path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write embedding cache: %w", err)
	}

	return nil
}
