package vectorindex

import (
	"fmt"

	"github.com/mapwright/docexpert/internal/config"
)

// New creates an index backend from configuration. dimension must match the
// embeddings provider in use.
func New(cfg config.IndexConfig, dimension int) (Index, error) {
	switch cfg.Provider {
	case "memory":
		return NewMemoryIndex(dimension)
	case "chromem", "":
		return NewChromemIndex(cfg.Chromem, dimension)
	default:
		return nil, fmt.Errorf("%w: unknown index provider %q", ErrInvalidArgument, cfg.Provider)
	}
}
