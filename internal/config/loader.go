package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces docexpert environment variables:
	// DOCEXPERT_SERVER_PORT -> server.port
	envPrefix = "DOCEXPERT_"
)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DOCEXPERT_SERVER_PORT, DOCEXPERT_LLM_API_KEY, ...)
//  2. YAML config file
//  3. Defaults
//
// If configPath is empty the default path ~/.config/docexpert/config.yaml is
// used; a missing file is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "docexpert", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variables override the file.
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	expandHome(&cfg)
	return &cfg, nil
}

// LoadBytes loads configuration directly from YAML content. Used in tests.
func LoadBytes(content []byte) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	expandHome(&cfg)
	return &cfg, nil
}

// nestedSections maps env-variable prefixes of doubly nested config
// sections to their dotted key paths. The generic transformer splits on
// the first underscore only, which cannot reach a third level.
var nestedSections = map[string]string{
	"index_chromem_":      "index.chromem.",
	"logging_caller_":     "logging.caller.",
	"logging_stacktrace_": "logging.stacktrace.",
}

// envKey translates an environment variable name into a koanf key:
//
//	DOCEXPERT_SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout
//	DOCEXPERT_LLM_API_KEY             -> llm.api_key
//	DOCEXPERT_INDEX_CHROMEM_PATH      -> index.chromem.path
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for prefix, path := range nestedSections {
		if strings.HasPrefix(lower, prefix) {
			return path + strings.TrimPrefix(lower, prefix)
		}
	}
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// expandHome resolves leading ~/ in filesystem paths.
func expandHome(cfg *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	expand := func(p string) string {
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}
	cfg.Index.Chromem.Path = expand(cfg.Index.Chromem.Path)
	cfg.Catalog.Path = expand(cfg.Catalog.Path)
	cfg.Conversations.Path = expand(cfg.Conversations.Path)
	cfg.Ingest.DocsDir = expand(cfg.Ingest.DocsDir)
}
