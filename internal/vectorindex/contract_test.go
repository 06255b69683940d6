package vectorindex

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapwright/docexpert/internal/config"
	"github.com/mapwright/docexpert/internal/docs"
	"github.com/mapwright/docexpert/internal/metadata"
)

// Both backends must satisfy the same behavior; each test in the suite runs
// against a fresh index of every backend.
func runBackends(t *testing.T, test func(t *testing.T, idx Index)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		idx, err := NewMemoryIndex(3)
		require.NoError(t, err)
		test(t, idx)
	})

	t.Run("chromem", func(t *testing.T) {
		idx, err := NewChromemIndex(config.ChromemConfig{
			Path:       t.TempDir(),
			Collection: "test_docs",
		}, 3)
		require.NoError(t, err)
		test(t, idx)
	})
}

func chunk(url string, idx int, body string, vec []float32, meta metadata.Map) docs.DocumentChunk {
	return docs.DocumentChunk{
		SourceURL:  url,
		ChunkIndex: idx,
		Title:      "Title " + url,
		Summary:    "Summary.",
		Body:       body,
		Metadata:   meta,
		Embedding:  vec,
	}
}

func TestIndex_SearchRanking(t *testing.T) {
	runBackends(t, func(t *testing.T, idx Index) {
		ctx := context.Background()
		require.NoError(t, idx.Upsert(ctx, []docs.DocumentChunk{
			chunk("https://d/a", 0, "exact", []float32{1, 0, 0}, nil),
			chunk("https://d/a", 1, "close", []float32{1, 0.2, 0}, nil),
			chunk("https://d/b", 0, "far", []float32{0, 0, 1}, nil),
		}))

		hits, err := idx.Search(ctx, []float32{1, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "exact", hits[0].Chunk.Body)
		assert.Equal(t, "close", hits[1].Chunk.Body)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
		assert.Greater(t, hits[0].Score, hits[1].Score)

		// fewer matches than k returns all of them
		hits, err = idx.Search(ctx, []float32{1, 0, 0}, 50, nil)
		require.NoError(t, err)
		assert.Len(t, hits, 3)
	})
}

func TestIndex_DeterministicTieBreak(t *testing.T) {
	runBackends(t, func(t *testing.T, idx Index) {
		ctx := context.Background()
		same := []float32{0, 1, 0}
		require.NoError(t, idx.Upsert(ctx, []docs.DocumentChunk{
			chunk("https://d/b", 1, "b1", same, nil),
			chunk("https://d/b", 0, "b0", same, nil),
			chunk("https://d/a", 1, "a1", same, nil),
		}))

		hits, err := idx.Search(ctx, same, 3, nil)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		// equal scores: chunk_index ascending, then source_url ascending
		assert.Equal(t, "b0", hits[0].Chunk.Body)
		assert.Equal(t, "a1", hits[1].Chunk.Body)
		assert.Equal(t, "b1", hits[2].Chunk.Body)
	})
}

func TestIndex_FullReplacePerSource(t *testing.T) {
	runBackends(t, func(t *testing.T, idx Index) {
		ctx := context.Background()
		require.NoError(t, idx.Upsert(ctx, []docs.DocumentChunk{
			chunk("https://d/a", 0, "old a0", []float32{1, 0, 0}, nil),
			chunk("https://d/a", 1, "old a1", []float32{1, 0, 0}, nil),
			chunk("https://d/b", 0, "keep b0", []float32{1, 0, 0}, nil),
		}))

		// re-ingest source a with a single chunk
		require.NoError(t, idx.Upsert(ctx, []docs.DocumentChunk{
			chunk("https://d/a", 0, "new a0", []float32{1, 0, 0}, nil),
		}))

		hits, err := idx.Search(ctx, []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)

		bodies := make([]string, 0, len(hits))
		for _, h := range hits {
			bodies = append(bodies, h.Chunk.Body)
		}
		assert.ElementsMatch(t, []string{"new a0", "keep b0"}, bodies)
	})
}

func TestIndex_MetadataFilter(t *testing.T) {
	runBackends(t, func(t *testing.T, idx Index) {
		ctx := context.Background()
		require.NoError(t, idx.Upsert(ctx, []docs.DocumentChunk{
			chunk("https://d/a", 0, "tutorial chunk", []float32{1, 0, 0},
				metadata.Map{"category": metadata.String("tutorial"), "version": metadata.Number(2)}),
			chunk("https://d/b", 0, "reference chunk", []float32{1, 0, 0},
				metadata.Map{"category": metadata.String("reference")}),
		}))

		hits, err := idx.Search(ctx, []float32{1, 0, 0}, 10,
			metadata.Map{"category": metadata.String("tutorial")})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "tutorial chunk", hits[0].Chunk.Body)

		// typed mismatch does not match a string projection
		hits, err = idx.Search(ctx, []float32{1, 0, 0}, 10,
			metadata.Map{"version": metadata.String("2")})
		require.NoError(t, err)
		assert.Empty(t, hits)

		// empty filter matches everything
		hits, err = idx.Search(ctx, []float32{1, 0, 0}, 10, metadata.Map{})
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})
}

func TestIndex_DimensionMismatch(t *testing.T) {
	runBackends(t, func(t *testing.T, idx Index) {
		ctx := context.Background()
		require.NoError(t, idx.Upsert(ctx, []docs.DocumentChunk{
			chunk("https://d/a", 0, "kept", []float32{1, 0, 0}, nil),
		}))

		_, err := idx.Search(ctx, []float32{1, 0}, 3, nil)
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		err = idx.Upsert(ctx, []docs.DocumentChunk{
			chunk("https://d/a", 0, "bad", []float32{1, 0}, nil),
		})
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		// index unchanged by either failure
		hits, err := idx.Search(ctx, []float32{1, 0, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "kept", hits[0].Chunk.Body)
	})
}

func TestIndex_InvalidK(t *testing.T) {
	runBackends(t, func(t *testing.T, idx Index) {
		_, err := idx.Search(context.Background(), []float32{1, 0, 0}, 0, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = idx.Search(context.Background(), []float32{1, 0, 0}, -2, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestIndex_EmptyIndex(t *testing.T) {
	runBackends(t, func(t *testing.T, idx Index) {
		hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestIndex_SearchDuringReplace(t *testing.T) {
	runBackends(t, func(t *testing.T, idx Index) {
		ctx := context.Background()
		source := func() []docs.DocumentChunk {
			return []docs.DocumentChunk{
				chunk("https://d/a", 0, "a0", []float32{1, 0, 0}, nil),
				chunk("https://d/a", 1, "a1", []float32{0, 1, 0}, nil),
				chunk("https://d/a", 2, "a2", []float32{0, 0, 1}, nil),
			}
		}
		require.NoError(t, idx.Upsert(ctx, source()))

		var wg sync.WaitGroup
		errCh := make(chan error, 12)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					if err := idx.Upsert(ctx, source()); err != nil {
						errCh <- err
						return
					}
				}
			}()
		}
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					if _, err := idx.Search(ctx, []float32{1, 0, 0}, 3, nil); err != nil {
						errCh <- err
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errCh)
		for err := range errCh {
			t.Errorf("concurrent search/replace failed: %v", err)
		}

		// the document set is logically unchanged throughout
		hits, err := idx.Search(ctx, []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		assert.Len(t, hits, 3)
	})
}

func TestChromemIndex_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := config.ChromemConfig{Path: dir, Collection: "test_docs"}
	ctx := context.Background()

	idx, err := NewChromemIndex(cfg, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []docs.DocumentChunk{
		chunk("https://d/a", 0, "persisted", []float32{1, 0, 0},
			metadata.Map{"category": metadata.String("manual")}),
	}))
	require.NoError(t, idx.Close())

	reopened, err := NewChromemIndex(cfg, 3)
	require.NoError(t, err)
	hits, err := reopened.Search(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "persisted", hits[0].Chunk.Body)

	cat, ok := hits[0].Chunk.Metadata["category"].AsString()
	require.True(t, ok)
	assert.Equal(t, "manual", cat)
}

func TestNew_Factory(t *testing.T) {
	idx, err := New(config.IndexConfig{Provider: "memory"}, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, idx.Dimension())

	_, err = New(config.IndexConfig{Provider: "qdrant"}, 8)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
