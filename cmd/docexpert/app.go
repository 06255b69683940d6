package main

import (
	"fmt"

	"github.com/mapwright/docexpert/internal/catalog"
	"github.com/mapwright/docexpert/internal/config"
	"github.com/mapwright/docexpert/internal/conversation"
	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/embeddings"
	"github.com/mapwright/docexpert/internal/ingest"
	"github.com/mapwright/docexpert/internal/llm"
	"github.com/mapwright/docexpert/internal/logging"
	"github.com/mapwright/docexpert/internal/retriever"
	"github.com/mapwright/docexpert/internal/synthesizer"
	"github.com/mapwright/docexpert/internal/vectorindex"
)

// app holds the wired component graph shared by the serve, ingest and ask
// commands.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	provider embeddings.Provider
	index    vectorindex.Index
	catalog  *catalog.Catalog
	store    *conversation.Store
	client   llm.Client
	synth    *synthesizer.Service
	ingester *ingest.Service
}

// buildApp loads configuration and wires every component. Callers must
// Close the returned app.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.provider, err = embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating embeddings provider: %w", err)
	}

	a.index, err = vectorindex.New(cfg.Index, a.provider.Dimension())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating vector index: %w", err)
	}

	a.catalog, err = catalog.Open(cfg.Catalog.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening chunk catalog: %w", err)
	}

	a.store, err = conversation.Open(cfg.Conversations.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening conversation store: %w", err)
	}

	a.client, err = llm.NewClient(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	ret := retriever.New(a.provider, a.index, logger)
	a.synth = synthesizer.NewService(ret, a.store, a.client, cfg.Synthesizer, logger)

	chunker, err := docs.NewChunker(docs.ChunkerConfig{MaxChunkSize: cfg.Ingest.MaxChunkSize})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating chunker: %w", err)
	}
	var enricher llm.Client
	if cfg.Ingest.Enrich {
		enricher = a.client
	}
	a.ingester = ingest.NewService(chunker, a.provider, a.index, a.catalog, enricher, cfg.Ingest, logger)

	return a, nil
}

// Close releases every component that was successfully created.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.catalog != nil {
		a.catalog.Close()
	}
	if a.index != nil {
		a.index.Close()
	}
	if a.provider != nil {
		a.provider.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}
