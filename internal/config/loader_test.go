package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes_Defaults(t *testing.T) {
	cfg, err := LoadBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.Index.Provider)
	assert.Equal(t, "docexpert_docs", cfg.Index.Chromem.Collection)
	assert.Equal(t, "tei", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Synthesizer.TopK)
	assert.Equal(t, 10, cfg.Synthesizer.RecentTurnLimit)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
}

func TestLoadBytes_YAMLOverrides(t *testing.T) {
	content := []byte(`
server:
  port: 9000
  shutdown_timeout: 5s
index:
  provider: memory
embeddings:
  provider: openai
  model: text-embedding-3-small
  dimension: 1536
llm:
  provider: openai
  model: gpt-4o-mini
synthesizer:
  top_k: 8
`)
	cfg, err := LoadBytes(content)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "memory", cfg.Index.Provider)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, 1536, cfg.Embeddings.Dimension)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 8, cfg.Synthesizer.TopK)
}

func TestLoadBytes_InvalidProvider(t *testing.T) {
	_, err := LoadBytes([]byte("index:\n  provider: pinecone\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index provider")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DOCEXPERT_SERVER_PORT", "7171")
	t.Setenv("DOCEXPERT_LLM_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey.Value())
}

func TestLoad_EnvOverrideNestedSections(t *testing.T) {
	t.Setenv("DOCEXPERT_INDEX_CHROMEM_PATH", "/var/lib/docexpert/index")
	t.Setenv("DOCEXPERT_LOGGING_FORMAT", "console")
	t.Setenv("DOCEXPERT_LOGGING_CALLER_SKIP", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/docexpert/index", cfg.Index.Chromem.Path)
	assert.Equal(t, 3, cfg.Logging.Caller.Skip)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.shutdown_timeout", envKey("DOCEXPERT_SERVER_SHUTDOWN_TIMEOUT"))
	assert.Equal(t, "llm.api_key", envKey("DOCEXPERT_LLM_API_KEY"))
	assert.Equal(t, "index.chromem.path", envKey("DOCEXPERT_INDEX_CHROMEM_PATH"))
	assert.Equal(t, "logging.stacktrace.level", envKey("DOCEXPERT_LOGGING_STACKTRACE_LEVEL"))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
