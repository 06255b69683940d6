package vectorindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/metadata"
)

// memoryEntry pairs a stored chunk with its unit-length embedding.
type memoryEntry struct {
	chunk  docs.DocumentChunk
	vector []float32
}

// MemoryIndex is a brute-force in-process index. Suitable for tests and
// small corpora; everything is lost on restart.
type MemoryIndex struct {
	dimension int

	mu      sync.RWMutex
	sources map[string][]memoryEntry
}

// NewMemoryIndex creates an empty in-memory index with a fixed dimension.
func NewMemoryIndex(dimension int) (*MemoryIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidArgument, dimension)
	}
	return &MemoryIndex{
		dimension: dimension,
		sources:   make(map[string][]memoryEntry),
	}, nil
}

// Upsert replaces all chunks of each source URL present in chunks.
func (m *MemoryIndex) Upsert(_ context.Context, chunks []docs.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Validate every embedding before touching state.
	for _, c := range chunks {
		if len(c.Embedding) != m.dimension {
			return fmt.Errorf("%w: chunk %s has dimension %d, index expects %d",
				ErrDimensionMismatch, c.ID(), len(c.Embedding), m.dimension)
		}
	}

	grouped := make(map[string][]memoryEntry)
	for _, c := range chunks {
		grouped[c.SourceURL] = append(grouped[c.SourceURL], memoryEntry{
			chunk:  c,
			vector: normalize(c.Embedding),
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for url, entries := range grouped {
		m.sources[url] = entries
	}
	return nil
}

// Search returns the top-k chunks by cosine similarity.
func (m *MemoryIndex) Search(_ context.Context, queryVector []float32, k int, filter metadata.Map) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	if len(queryVector) != m.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			ErrDimensionMismatch, len(queryVector), m.dimension)
	}

	query := normalize(queryVector)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []ScoredChunk
	for _, entries := range m.sources {
		for _, e := range entries {
			if !e.chunk.Metadata.Contains(filter) {
				continue
			}
			hits = append(hits, ScoredChunk{Chunk: e.chunk, Score: dot(query, e.vector)})
		}
	}

	sortScored(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Dimension returns the index vector dimension.
func (m *MemoryIndex) Dimension() int {
	return m.dimension
}

// Close is a no-op for the in-memory backend.
func (m *MemoryIndex) Close() error {
	return nil
}
