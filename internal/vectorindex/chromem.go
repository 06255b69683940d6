package vectorindex

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mapwright/docexpert/internal/config"
	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/metadata"
)

var chromemTracer = otel.Tracer("docexpert/vectorindex")

// chromem document metadata keys. The typed chunk metadata travels as JSON
// under metaKeyDocMeta since chromem only stores string maps.
const (
	metaKeySourceURL  = "source_url"
	metaKeyChunkIndex = "chunk_index"
	metaKeyTitle      = "title"
	metaKeySummary    = "summary"
	metaKeyDocMeta    = "doc_meta"
)

// ChromemIndex is a persistent index backed by an embedded chromem-go
// database. Survives restarts; no external service required.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int

	// Serializes delete-then-insert replacements so concurrent upserts of
	// the same source cannot interleave. Searches hold the read side: the
	// collection count read and the query must see the same document set,
	// or chromem rejects nResults > count mid-replacement.
	mu sync.RWMutex
}

// NewChromemIndex opens or creates a persistent index at cfg.Path.
func NewChromemIndex(cfg config.ChromemConfig, dimension int) (*ChromemIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidArgument, dimension)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: chromem path required", ErrInvalidArgument)
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory %s: %w", cfg.Path, err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	name := cfg.Collection
	if name == "" {
		name = "docexpert_docs"
	}

	// Embeddings are always precomputed by the caller; the embedding func
	// must never be reached.
	collection, err := db.GetOrCreateCollection(name, nil, func(context.Context, string) ([]float32, error) {
		return nil, fmt.Errorf("embedding must be precomputed")
	})
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", name, err)
	}

	return &ChromemIndex{
		db:         db,
		collection: collection,
		dimension:  dimension,
	}, nil
}

// Upsert replaces all chunks of each source URL present in chunks.
func (c *ChromemIndex) Upsert(ctx context.Context, chunks []docs.DocumentChunk) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	if len(chunks) == 0 {
		return nil
	}

	// Validate every embedding before touching state.
	for _, chunk := range chunks {
		if len(chunk.Embedding) != c.dimension {
			err := fmt.Errorf("%w: chunk %s has dimension %d, index expects %d",
				ErrDimensionMismatch, chunk.ID(), len(chunk.Embedding), c.dimension)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	grouped := make(map[string][]docs.DocumentChunk)
	for _, chunk := range chunks {
		grouped[chunk.SourceURL] = append(grouped[chunk.SourceURL], chunk)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for url, sourceChunks := range grouped {
		if err := c.collection.Delete(ctx, map[string]string{metaKeySourceURL: url}, nil); err != nil {
			span.RecordError(err)
			return fmt.Errorf("deleting chunks of %s: %w", url, err)
		}

		chromemDocs := make([]chromem.Document, len(sourceChunks))
		for i, chunk := range sourceChunks {
			meta, err := encodeChunkMeta(chunk)
			if err != nil {
				span.RecordError(err)
				return err
			}
			chromemDocs[i] = chromem.Document{
				ID:        chunk.ID(),
				Content:   chunk.Body,
				Metadata:  meta,
				Embedding: normalize(chunk.Embedding),
			}
		}

		// concurrency of 1 since embeddings are already computed
		if err := c.collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("adding chunks of %s: %w", url, err)
		}
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search returns the top-k chunks by cosine similarity. Typed metadata
// filtering happens client-side since chromem only matches string equality.
func (c *ChromemIndex) Search(ctx context.Context, queryVector []float32, k int, filter metadata.Map) ([]ScoredChunk, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	if len(queryVector) != c.dimension {
		err := fmt.Errorf("%w: query has dimension %d, index expects %d",
			ErrDimensionMismatch, len(queryVector), c.dimension)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.mu.RLock()
	count := c.collection.Count()
	if count == 0 {
		c.mu.RUnlock()
		return []ScoredChunk{}, nil
	}

	// chromem caps nResults at the document count; fetch everything and
	// filter/rank locally for exact containment and deterministic ties.
	results, err := c.collection.QueryEmbedding(ctx, normalize(queryVector), count, nil, nil)
	c.mu.RUnlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	var hits []ScoredChunk
	for _, r := range results {
		chunk, err := decodeChunk(r)
		if err != nil {
			return nil, err
		}
		if !chunk.Metadata.Contains(filter) {
			continue
		}
		hits = append(hits, ScoredChunk{Chunk: chunk, Score: float64(r.Similarity)})
	}

	sortScored(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// Dimension returns the index vector dimension.
func (c *ChromemIndex) Dimension() int {
	return c.dimension
}

// Close is a no-op; chromem persists on every write.
func (c *ChromemIndex) Close() error {
	return nil
}

func encodeChunkMeta(chunk docs.DocumentChunk) (map[string]string, error) {
	encoded, err := metadata.EncodeMap(chunk.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata of %s: %w", chunk.ID(), err)
	}
	return map[string]string{
		metaKeySourceURL:  chunk.SourceURL,
		metaKeyChunkIndex: strconv.Itoa(chunk.ChunkIndex),
		metaKeyTitle:      chunk.Title,
		metaKeySummary:    chunk.Summary,
		metaKeyDocMeta:    string(encoded),
	}, nil
}

func decodeChunk(r chromem.Result) (docs.DocumentChunk, error) {
	idx, err := strconv.Atoi(r.Metadata[metaKeyChunkIndex])
	if err != nil {
		return docs.DocumentChunk{}, fmt.Errorf("corrupt chunk index for %s: %w", r.ID, err)
	}
	meta, err := metadata.ParseMap([]byte(r.Metadata[metaKeyDocMeta]))
	if err != nil {
		return docs.DocumentChunk{}, fmt.Errorf("corrupt metadata for %s: %w", r.ID, err)
	}
	return docs.DocumentChunk{
		SourceURL:  r.Metadata[metaKeySourceURL],
		ChunkIndex: idx,
		Title:      r.Metadata[metaKeyTitle],
		Summary:    r.Metadata[metaKeySummary],
		Body:       r.Content,
		Metadata:   meta,
	}, nil
}
