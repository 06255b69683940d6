package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/metadata"
)

// enrichmentPrompt asks the completion client for a title, summary and
// structured metadata for one chunk. The response must be a bare JSON
// object.
const enrichmentPrompt = `Extract a title, a one-sentence summary, and metadata from this documentation chunk.

Respond with ONLY a JSON object of this shape:
{"title": "...", "summary": "...", "metadata": {"category": "...", "features": ["..."], "file_formats": ["..."], "version_info": "..."}}

Source URL: %s

Chunk:
%s`

// enrichment is the JSON contract of the enrichment completion.
type enrichment struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Metadata struct {
		Category    string   `json:"category"`
		Features    []string `json:"features"`
		FileFormats []string `json:"file_formats"`
		VersionInfo string   `json:"version_info"`
	} `json:"metadata"`
}

// enrichChunk asks the LLM for a better title, summary and metadata.
// Any failure falls back to the chunker-derived values: enrichment must
// never abort ingestion of a source.
func (s *Service) enrichChunk(ctx context.Context, chunk *docs.DocumentChunk) {
	if s.enricher == nil {
		return
	}

	body := chunk.Body
	// cap the excerpt; the first kilobyte carries the heading and lead
	if len(body) > 1000 {
		body = body[:1000]
	}

	raw, err := s.enricher.Complete(ctx, fmt.Sprintf(enrichmentPrompt, chunk.SourceURL, body))
	if err != nil {
		s.logger.Warn(ctx, "chunk enrichment failed, keeping derived title/summary",
			zap.String("chunk", chunk.ID()), zap.Error(err))
		return
	}

	var e enrichment
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &e); err != nil {
		s.logger.Warn(ctx, "chunk enrichment returned invalid JSON",
			zap.String("chunk", chunk.ID()), zap.Error(err))
		return
	}

	if e.Title != "" {
		chunk.Title = e.Title
	}
	if e.Summary != "" {
		chunk.Summary = e.Summary
	}

	meta := metadata.Map{}
	for k, v := range chunk.Metadata {
		meta[k] = v
	}
	if e.Metadata.Category != "" {
		meta["category"] = metadata.String(e.Metadata.Category)
	}
	if len(e.Metadata.Features) > 0 {
		meta["features"] = metadata.Strings(e.Metadata.Features...)
	}
	if len(e.Metadata.FileFormats) > 0 {
		meta["file_formats"] = metadata.Strings(e.Metadata.FileFormats...)
	}
	if e.Metadata.VersionInfo != "" {
		meta["version_info"] = metadata.String(e.Metadata.VersionInfo)
	}
	if len(meta) > 0 {
		chunk.Metadata = meta
	}
}

// extractJSONObject trims any prose or code fences the model wrapped
// around the JSON object.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
