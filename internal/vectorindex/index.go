// Package vectorindex stores document chunk embeddings and serves
// similarity search over them.
//
// Two backends implement the same contract: an in-process brute-force index
// and a persistent chromem-go index. Upsert replaces all chunks of a source
// atomically; Search returns the top-k chunks by cosine similarity with a
// deterministic ordering (score descending, then chunk index ascending, then
// source URL ascending).
package vectorindex

import (
	"context"
	"errors"
	"sort"

	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/metadata"
)

var (
	// ErrDimensionMismatch indicates a vector whose dimension differs from
	// the index dimension. The index is never modified by such a call.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidArgument indicates an invalid search argument such as k <= 0.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ScoredChunk is a search hit with its cosine similarity in [-1, 1].
type ScoredChunk struct {
	Chunk docs.DocumentChunk
	Score float64
}

// Index is the vector index contract shared by all backends.
type Index interface {
	// Upsert replaces all chunks previously stored for each source URL in
	// chunks with the given ones. Chunk embeddings must match the index
	// dimension or the call fails with ErrDimensionMismatch without
	// modifying the index.
	Upsert(ctx context.Context, chunks []docs.DocumentChunk) error

	// Search returns up to k chunks most similar to queryVector, filtered
	// by metadata containment. An empty filter matches everything. Fewer
	// than k matches returns all of them; k <= 0 is ErrInvalidArgument.
	Search(ctx context.Context, queryVector []float32, k int, filter metadata.Map) ([]ScoredChunk, error)

	// Dimension returns the index vector dimension.
	Dimension() int

	// Close releases backend resources.
	Close() error
}

// sortScored orders hits by score descending, breaking ties by smaller chunk
// index and then lexicographically smaller source URL.
func sortScored(hits []ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Chunk.ChunkIndex != hits[j].Chunk.ChunkIndex {
			return hits[i].Chunk.ChunkIndex < hits[j].Chunk.ChunkIndex
		}
		return hits[i].Chunk.SourceURL < hits[j].Chunk.SourceURL
	})
}
