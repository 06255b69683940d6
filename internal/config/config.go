// Package config provides configuration loading for docexpert.
package config

import (
	"fmt"
	"time"

	"github.com/mapwright/docexpert/internal/logging"
)

// Config is the root configuration for all docexpert components.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Logging       logging.Config      `koanf:"logging"`
	Index         IndexConfig         `koanf:"index"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	LLM           LLMConfig           `koanf:"llm"`
	Catalog       CatalogConfig       `koanf:"catalog"`
	Conversations ConversationsConfig `koanf:"conversations"`
	Ingest        IngestConfig        `koanf:"ingest"`
	Synthesizer   SynthesizerConfig   `koanf:"synthesizer"`
}

// ServerConfig configures the inbound HTTP API.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	AuthToken       Secret   `koanf:"auth_token"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	ReadTimeout     Duration `koanf:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout"`
}

// IndexConfig configures the vector index backend.
type IndexConfig struct {
	Provider string        `koanf:"provider"` // "memory" or "chromem"
	Chromem  ChromemConfig `koanf:"chromem"`
}

// ChromemConfig configures the persistent chromem-go backend.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
}

// EmbeddingsConfig configures the embeddings provider.
type EmbeddingsConfig struct {
	Provider  string   `koanf:"provider"` // "tei" or "openai"
	BaseURL   string   `koanf:"base_url"`
	Model     string   `koanf:"model"`
	APIKey    Secret   `koanf:"api_key"`
	Dimension int      `koanf:"dimension"`
	Timeout   Duration `koanf:"timeout"`
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	Provider          string   `koanf:"provider"` // "anthropic" or "openai"
	Model             string   `koanf:"model"`
	APIKey            Secret   `koanf:"api_key"`
	BaseURL           string   `koanf:"base_url"`
	MaxTokens         int      `koanf:"max_tokens"`
	Timeout           Duration `koanf:"timeout"`
	RequestsPerMinute int      `koanf:"requests_per_minute"`
}

// CatalogConfig configures the relational chunk catalog.
type CatalogConfig struct {
	Path string `koanf:"path"` // SQLite database path, ":memory:" for ephemeral
}

// ConversationsConfig configures conversation persistence.
type ConversationsConfig struct {
	Path string `koanf:"path"` // SQLite database path, ":memory:" for ephemeral
}

// IngestConfig configures documentation ingestion.
type IngestConfig struct {
	DocsDir       string   `koanf:"docs_dir"`
	Watch         bool     `koanf:"watch"`
	Concurrency   int      `koanf:"concurrency"`
	MaxChunkSize  int      `koanf:"max_chunk_size"`
	Enrich        bool     `koanf:"enrich"`
	FetchTimeout  Duration `koanf:"fetch_timeout"`
	WatchDebounce Duration `koanf:"watch_debounce"`
}

// SynthesizerConfig configures answer synthesis.
type SynthesizerConfig struct {
	TopK            int      `koanf:"top_k"`
	RecentTurnLimit int      `koanf:"recent_turn_limit"`
	RetryBackoff    Duration `koanf:"retry_backoff"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(120 * time.Second)
	}

	if cfg.Logging.Format == "" {
		cfg.Logging = *logging.NewDefaultConfig()
	}

	if cfg.Index.Provider == "" {
		cfg.Index.Provider = "chromem"
	}
	if cfg.Index.Chromem.Path == "" {
		cfg.Index.Chromem.Path = "~/.local/share/docexpert/index"
	}
	if cfg.Index.Chromem.Collection == "" {
		cfg.Index.Chromem.Collection = "docexpert_docs"
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "tei"
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8081"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.Dimension == 0 {
		cfg.Embeddings.Dimension = 384
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = Duration(30 * time.Second)
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(120 * time.Second)
	}
	if cfg.LLM.RequestsPerMinute == 0 {
		cfg.LLM.RequestsPerMinute = 50
	}

	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "~/.local/share/docexpert/catalog.db"
	}
	if cfg.Conversations.Path == "" {
		cfg.Conversations.Path = "~/.local/share/docexpert/conversations.db"
	}

	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.FetchTimeout == 0 {
		cfg.Ingest.FetchTimeout = Duration(30 * time.Second)
	}
	if cfg.Ingest.WatchDebounce == 0 {
		cfg.Ingest.WatchDebounce = Duration(2 * time.Second)
	}

	if cfg.Synthesizer.TopK == 0 {
		cfg.Synthesizer.TopK = 5
	}
	if cfg.Synthesizer.RecentTurnLimit == 0 {
		cfg.Synthesizer.RecentTurnLimit = 10
	}
	if cfg.Synthesizer.RetryBackoff == 0 {
		cfg.Synthesizer.RetryBackoff = Duration(time.Second)
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1-65535, got %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	switch c.Index.Provider {
	case "memory", "chromem":
	default:
		return fmt.Errorf("index provider must be 'memory' or 'chromem', got %q", c.Index.Provider)
	}
	switch c.Embeddings.Provider {
	case "tei", "openai":
	default:
		return fmt.Errorf("embeddings provider must be 'tei' or 'openai', got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embeddings dimension must be positive, got %d", c.Embeddings.Dimension)
	}
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm provider must be 'anthropic' or 'openai', got %q", c.LLM.Provider)
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest concurrency must be >= 1, got %d", c.Ingest.Concurrency)
	}
	if c.Synthesizer.TopK < 1 {
		return fmt.Errorf("synthesizer top_k must be >= 1, got %d", c.Synthesizer.TopK)
	}
	return nil
}
