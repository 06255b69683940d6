// Package retriever turns a natural-language query into ranked document
// chunks by embedding the query and searching the vector index.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mapwright/docexpert/internal/embeddings"
	"github.com/mapwright/docexpert/internal/logging"
	"github.com/mapwright/docexpert/internal/metadata"
	"github.com/mapwright/docexpert/internal/vectorindex"
)

// ErrEmbeddingService indicates the query could not be embedded.
var ErrEmbeddingService = errors.New("embedding service failure")

// Retriever is stateless: every call embeds the query and searches the
// index. No query embedding cache is kept.
type Retriever struct {
	provider embeddings.Provider
	index    vectorindex.Index
	logger   *logging.Logger
}

// New creates a Retriever.
func New(provider embeddings.Provider, index vectorindex.Index, logger *logging.Logger) *Retriever {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Retriever{
		provider: provider,
		index:    index,
		logger:   logger.Named("retriever"),
	}
}

// Retrieve returns up to k chunks relevant to queryText, filtered by
// metadata containment.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, k int, filter metadata.Map) ([]vectorindex.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", vectorindex.ErrInvalidArgument, k)
	}

	vector, err := r.provider.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
	}

	hits, err := r.index.Search(ctx, vector, k, filter)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	r.logger.Debug(ctx, "retrieved chunks",
		zap.Int("k", k),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}
