package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapwright/docexpert/internal/config"
)

func teiConfig(url string) config.EmbeddingsConfig {
	return config.EmbeddingsConfig{
		Provider:  "tei",
		BaseURL:   url,
		Model:     "BAAI/bge-small-en-v1.5",
		Dimension: 3,
		Timeout:   config.Duration(5 * time.Second),
	}
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs, ok := req.Inputs.([]interface{})
		require.True(t, ok)

		vectors := make([][]float32, len(inputs))
		for i := range vectors {
			vectors[i] = []float32{float32(i), 1, 0}
		}
		require.NoError(t, json.NewEncoder(w).Encode(vectors))
	}))
	defer srv.Close()

	p, err := NewTEIProvider(teiConfig(srv.URL))
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 1, 0}, vectors[1])
	assert.Equal(t, 3, p.Dimension())
}

func TestTEIProvider_EmbedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode([][]float32{{0.1, 0.2, 0.3}}))
	}))
	defer srv.Close()

	p, err := NewTEIProvider(teiConfig(srv.URL))
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "how do tilesets work")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestTEIProvider_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewTEIProvider(teiConfig(srv.URL))
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOpenAIProvider_OrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		// deliberately out of order
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0, 1}, "index": 1},
				{"embedding": []float32{1, 0}, "index": 0},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(config.EmbeddingsConfig{
		Provider:  "openai",
		BaseURL:   srv.URL,
		Model:     "text-embedding-3-small",
		APIKey:    config.Secret("sk-test"),
		Dimension: 2,
	})
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(config.EmbeddingsConfig{Model: "m", Dimension: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider_Factory(t *testing.T) {
	p, err := NewProvider(teiConfig("http://localhost:9999"))
	require.NoError(t, err)
	assert.IsType(t, &TEIProvider{}, p)

	_, err = NewProvider(config.EmbeddingsConfig{Provider: "cohere"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
