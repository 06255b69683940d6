// Package ingest turns documentation sources into indexed chunks: chunk,
// optionally enrich via the completion client, embed, then replace the
// source in both the vector index and the chunk catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapwright/docexpert/internal/config"
	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/embeddings"
	"github.com/mapwright/docexpert/internal/llm"
	"github.com/mapwright/docexpert/internal/logging"
)

// Index is the slice of the vector index the ingester needs.
type Index interface {
	Upsert(ctx context.Context, chunks []docs.DocumentChunk) error
}

// Catalog is the slice of the chunk catalog the ingester needs.
type Catalog interface {
	ReplaceSource(ctx context.Context, sourceURL string, chunks []docs.DocumentChunk) error
}

// Service ingests documentation sources.
type Service struct {
	chunker    *docs.Chunker
	provider   embeddings.Provider
	index      Index
	catalog    Catalog
	enricher   llm.Client // nil disables enrichment
	logger     *logging.Logger
	cfg        config.IngestConfig
	httpClient *http.Client

	// at most one in-flight ingestion per source URL
	locks *keyedMutex
}

// NewService creates an ingestion service. enricher may be nil to disable
// LLM title/summary enrichment.
func NewService(
	chunker *docs.Chunker,
	provider embeddings.Provider,
	index Index,
	catalog Catalog,
	enricher llm.Client,
	cfg config.IngestConfig,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Service{
		chunker:    chunker,
		provider:   provider,
		index:      index,
		catalog:    catalog,
		enricher:   enricher,
		logger:     logger.Named("ingest"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout.Duration()},
		locks:      newKeyedMutex(),
	}
}

// IngestSource chunks, enriches, embeds and stores rawText under sourceURL,
// replacing whatever that source held before. Concurrent calls for the same
// source serialize; different sources proceed in parallel.
func (s *Service) IngestSource(ctx context.Context, sourceURL, rawText string) error {
	s.locks.Lock(sourceURL)
	defer s.locks.Unlock(sourceURL)

	chunks, err := s.chunker.Chunk(rawText, sourceURL)
	if err != nil {
		return fmt.Errorf("chunking %s: %w", sourceURL, err)
	}

	if s.cfg.Enrich {
		for i := range chunks {
			s.enrichChunk(ctx, &chunks[i])
		}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Body
	}
	vectors, err := s.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", sourceURL, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding %s: expected %d vectors, got %d", sourceURL, len(chunks), len(vectors))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := s.index.Upsert(ctx, chunks); err != nil {
		return fmt.Errorf("indexing %s: %w", sourceURL, err)
	}
	if err := s.catalog.ReplaceSource(ctx, sourceURL, chunks); err != nil {
		return fmt.Errorf("cataloging %s: %w", sourceURL, err)
	}

	s.logger.Info(ctx, "source ingested",
		zap.String("source_url", sourceURL),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// IngestTarget ingests one URL or local file.
func (s *Service) IngestTarget(ctx context.Context, target string) error {
	var content string
	var err error
	if isHTTPTarget(target) {
		content, err = s.fetchURL(ctx, target)
	} else {
		content, err = readFile(target)
	}
	if err != nil {
		return err
	}
	return s.IngestSource(ctx, sourceURLFor(target), content)
}

// IngestAll ingests every target (URLs, files, directories of .md files)
// with bounded parallelism. A failing source does not stop the others; the
// returned error joins all per-source failures.
func (s *Service) IngestAll(ctx context.Context, targets []string) error {
	expanded, err := expandTargets(targets)
	if err != nil {
		return err
	}

	var (
		g, gctx = errgroup.WithContext(ctx)
		errsCh  = make(chan error, len(expanded))
	)
	g.SetLimit(s.cfg.Concurrency)

	for _, target := range expanded {
		target := target
		g.Go(func() error {
			if err := s.IngestTarget(gctx, target); err != nil {
				s.logger.Error(gctx, "target ingestion failed",
					zap.String("target", target), zap.Error(err))
				errsCh <- err
			}
			// per-source failures must not cancel sibling targets
			return nil
		})
	}
	_ = g.Wait()
	close(errsCh)

	var errs []error
	for err := range errsCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
