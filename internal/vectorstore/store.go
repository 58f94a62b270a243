// Package vectorstore provides an exact, append-only flat vector index
// persisted to disk, with a sibling JSON file mapping each vector id to the
// (document, chunk) it embeds.
package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// MappingSuffix is appended to the index path to form the mapping file path.
const MappingSuffix = ".mapping.json"

var (
	// ErrShapeMismatch indicates vectors and metadata items differ in count.
	ErrShapeMismatch = errors.New("vectors and metadata items must have the same length")

	// ErrInvalidShape indicates the vector batch is not uniform-dimension.
	ErrInvalidShape = errors.New("vectors must all have the same dimension")
)

// Meta ties a vector id back to the chunk it embeds.
type Meta struct {
	DocumentID string `json:"document_id"`
	ChunkID    int    `json:"chunk_id"`
}

// Result is one similarity search hit.
type Result struct {
	ID       int64
	Meta     Meta
	Distance float64 // squared Euclidean distance, smaller is closer
}

// Store is a flat L2 index over fixed-dimension vectors. Vector ids form a
// dense, gapless sequence from 0 and are never reused. Every mutation is
// persisted synchronously: vectors first, then the mapping, so a crash
// between the two leaves at worst extra unmapped vectors.
type Store struct {
	path        string
	mappingPath string

	mu      sync.RWMutex
	dim     int // 0 until the first add binds it
	vectors [][]float32
	mapping map[int64]Meta
}

// Open loads the persisted index and mapping at path, or starts empty when
// neither exists yet.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	s := &Store{
		path:        path,
		mappingPath: path + MappingSuffix,
		mapping:     make(map[int64]Meta),
	}
	if err := s.loadExisting(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadExisting() error {
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		dim, vectors, err := DecodeIndex(data)
		if err != nil {
			return fmt.Errorf("failed to load index %s: %w", s.path, err)
		}
		s.dim = dim
		s.vectors = vectors
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read index %s: %w", s.path, err)
	}

	raw, err := os.ReadFile(s.mappingPath)
	switch {
	case err == nil:
		byKey := make(map[string]Meta)
		if err := json.Unmarshal(raw, &byKey); err != nil {
			return fmt.Errorf("failed to load mapping %s: %w", s.mappingPath, err)
		}
		for key, m := range byKey {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid mapping key %q in %s", key, s.mappingPath)
			}
			s.mapping[id] = m
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read mapping %s: %w", s.mappingPath, err)
	}

	return nil
}

// AddEmbeddings appends a batch of vectors with their metadata and returns
// the assigned ids in input order. The first successful call binds the
// index dimension; a later batch with a different dimension discards the
// existing index and mapping and rebuilds empty at the new dimension.
func (s *Store) AddEmbeddings(vectors [][]float32, items []Meta) ([]int64, error) {
	if len(vectors) == 0 {
		return []int64{}, nil
	}
	if len(vectors) != len(items) {
		return nil, fmt.Errorf("%w: %d vectors, %d items", ErrShapeMismatch, len(vectors), len(items))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrInvalidShape)
	}
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrInvalidShape, i, len(vec), dim)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = dim
	} else if s.dim != dim {
		// Destructive recovery: a dimension change means the persisted
		// index is unusable with the new embedding model.
		log.Printf("vectorstore: dimension changed from %d to %d, discarding %d stored vectors and their mapping",
			s.dim, dim, len(s.vectors))
		s.dim = dim
		s.vectors = nil
		s.mapping = make(map[int64]Meta)
	}

	startID := int64(len(s.vectors))
	// Copy the batch so callers mutating their slices afterwards cannot
	// alter the stored vectors.
	for _, vec := range vectors {
		s.vectors = append(s.vectors, append([]float32(nil), vec...))
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		id := startID + int64(i)
		s.mapping[id] = item
		ids[i] = id
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return ids, nil
}

// persistLocked writes the index file, then the mapping file. Must be
// called with mu held.
func (s *Store) persistLocked() error {
	if s.dim > 0 {
		if err := os.WriteFile(s.path, EncodeIndex(s.dim, s.vectors), 0o644); err != nil {
			return fmt.Errorf("failed to persist index: %w", err)
		}
	}

	byKey := make(map[string]Meta, len(s.mapping))
	for id, m := range s.mapping {
		byKey[strconv.FormatInt(id, 10)] = m
	}
	raw, err := json.Marshal(byKey)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	if err := os.WriteFile(s.mappingPath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to persist mapping: %w", err)
	}
	return nil
}

// Total returns the number of stored vectors.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Dimension returns the bound vector dimension, or 0 when the store is
// still empty.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Mapping returns the metadata recorded for a vector id.
func (s *Store) Mapping(id int64) (Meta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mapping[id]
	return m, ok
}

// Search returns the k nearest stored vectors to query by Euclidean
// distance, closest first. The scan is exhaustive and exact.
func (s *Store) Search(query []float32, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrInvalidShape, len(query), s.dim)
	}

	results := make([]Result, len(s.vectors))
	for i, vec := range s.vectors {
		var dist float64
		for j := range vec {
			d := float64(query[j]) - float64(vec[j])
			dist += d * d
		}
		id := int64(i)
		results[i] = Result{ID: id, Meta: s.mapping[id], Distance: dist}
	}

	sort.Slice(results, func(a, b int) bool { return results[a].Distance < results[b].Distance })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Close performs a final persist.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}
