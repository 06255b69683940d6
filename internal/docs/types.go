// Package docs splits raw documentation text into indexable chunks.
package docs

import (
	"fmt"

	"github.com/mapwright/docexpert/internal/metadata"
)

// DocumentChunk is one indexable slice of a documentation source.
type DocumentChunk struct {
	SourceURL  string       `json:"source_url"`
	ChunkIndex int          `json:"chunk_index"`
	Title      string       `json:"title"`
	Summary    string       `json:"summary"`
	Body       string       `json:"body"`
	Metadata   metadata.Map `json:"metadata,omitempty"`
	Embedding  []float32    `json:"-"`
}

// ID returns the stable identity of the chunk within the index.
func (c DocumentChunk) ID() string {
	return fmt.Sprintf("%s#%d", c.SourceURL, c.ChunkIndex)
}
