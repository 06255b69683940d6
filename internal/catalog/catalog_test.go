package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/metadata"
)

func openTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testChunk(url string, idx int, body string) docs.DocumentChunk {
	return docs.DocumentChunk{
		SourceURL:  url,
		ChunkIndex: idx,
		Title:      "Page Title",
		Summary:    "Lead sentence.",
		Body:       body,
		Metadata:   metadata.Map{"category": metadata.String("manual")},
	}
}

func TestCatalog_ReplaceAndList(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	require.NoError(t, c.ReplaceSource(ctx, "https://d/b", []docs.DocumentChunk{
		testChunk("https://d/b", 0, "b body"),
	}))
	require.NoError(t, c.ReplaceSource(ctx, "https://d/a", []docs.DocumentChunk{
		testChunk("https://d/a", 0, "a0"),
		testChunk("https://d/a", 1, "a1"),
	}))

	sources, err := c.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://d/a", "https://d/b"}, sources)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{ChunkCount: 3, SourceCount: 2}, stats)
}

func TestCatalog_ReplaceIsFullReplace(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	require.NoError(t, c.ReplaceSource(ctx, "https://d/a", []docs.DocumentChunk{
		testChunk("https://d/a", 0, "old 0"),
		testChunk("https://d/a", 1, "old 1"),
	}))
	require.NoError(t, c.ReplaceSource(ctx, "https://d/a", []docs.DocumentChunk{
		testChunk("https://d/a", 0, "new 0"),
	}))

	chunks, err := c.SourceContent(ctx, "https://d/a")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "new 0", chunks[0].Body)

	cat, ok := chunks[0].Metadata["category"].AsString()
	require.True(t, ok)
	assert.Equal(t, "manual", cat)
}

func TestCatalog_ReplaceRejectsForeignChunks(t *testing.T) {
	c := openTest(t)
	err := c.ReplaceSource(context.Background(), "https://d/a", []docs.DocumentChunk{
		testChunk("https://d/other", 0, "misfiled"),
	})
	require.Error(t, err)

	// failed replacement must not leave partial state
	_, err = c.SourceContent(context.Background(), "https://d/a")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestCatalog_PageContent(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	require.NoError(t, c.ReplaceSource(ctx, "https://d/a", []docs.DocumentChunk{
		testChunk("https://d/a", 0, "First part."),
		testChunk("https://d/a", 1, "Second part."),
	}))

	page, err := c.PageContent(ctx, "https://d/a")
	require.NoError(t, err)
	assert.Equal(t, "# Page Title\n\nFirst part.\n\nSecond part.", page)

	_, err = c.PageContent(ctx, "https://d/unknown")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestCatalog_EmptyStats(t *testing.T) {
	c := openTest(t)
	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	sources, err := c.Sources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sources)
}
