package llm

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

func llmConfig(provider, url string) config.LLMConfig {
	return config.LLMConfig{
		Provider:          provider,
		BaseURL:           url,
		APIKey:            config.Secret("test-key"),
		MaxTokens:         256,
		Timeout:           config.Duration(5 * time.Second),
		RequestsPerMinute: 6000,
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("Anthropic-Version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		resp := map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "[DOCUMENTED]: answer"}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c, err := NewClient(llmConfig("anthropic", srv.URL))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "what is a tileset?")
	require.NoError(t, err)
	assert.Equal(t, "[DOCUMENTED]: answer", out)
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "hello"}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c, err := NewClient(llmConfig("openai", srv.URL))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestComplete_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	for _, provider := range []string{"anthropic", "openai"} {
		c, err := NewClient(llmConfig(provider, srv.URL))
		require.NoError(t, err)

		_, err = c.Complete(context.Background(), "q")
		assert.ErrorIs(t, err, ErrRateLimited, provider)
		assert.True(t, IsRetryable(err), provider)
	}
}

func TestComplete_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(llmConfig("anthropic", srv.URL))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestComplete_ClientErrorIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"type": "invalid_request_error", "message": "bad prompt"},
		})
	}))
	defer srv.Close()

	c, err := NewClient(llmConfig("anthropic", srv.URL))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "bad prompt")
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)

	_, err = NewClient(config.LLMConfig{Provider: "llama-local"})
	assert.Error(t, err)
}
