// Package config holds process-wide settings for the query server and the
// indexing tools. A Config is built once at startup and passed by reference
// into every component that needs it.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Values come from a config file
// (wikiquery.yaml) when present, environment variables, and defaults, in that
// order of increasing precedence for the environment.
type Config struct {
	// OpenAIAPIKey authenticates both the embedding and completion calls.
	OpenAIAPIKey string `mapstructure:"openai_api_key"`

	// DumpPath is the multistream bz2 Wikipedia dump.
	DumpPath string `mapstructure:"dump_path"`
	// ManifestPath is the offset:id:title index shipped with the dump.
	ManifestPath string `mapstructure:"manifest_path"`
	// ArchiveIndexCachePath caches the built title->byte-range index so the
	// manifest is only parsed once. Delete the file to force a rebuild.
	ArchiveIndexCachePath string `mapstructure:"archive_index_cache_path"`

	// StorePath and IndexPath are the persisted section table and embedding
	// index. Both empty means start from an empty corpus.
	StorePath string `mapstructure:"store_path"`
	IndexPath string `mapstructure:"index_path"`

	EmbeddingModel     string `mapstructure:"embedding_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension"`
	CompletionModel    string `mapstructure:"completion_model"`

	// MaxSectionTokens caps a single stored section; longer sections are
	// split on sentence boundaries.
	MaxSectionTokens int `mapstructure:"max_section_tokens"`
	// ContextTokenBudget caps the grounded prompt's context window.
	ContextTokenBudget int `mapstructure:"context_token_budget"`
	// CompletionMaxTokens caps each completion response.
	CompletionMaxTokens int `mapstructure:"completion_max_tokens"`
	// SearchK is the nearest-neighbor candidate count per query.
	SearchK int `mapstructure:"search_k"`

	ListenAddr        string   `mapstructure:"listen_addr"`
	MediaWikiEndpoint string   `mapstructure:"mediawiki_endpoint"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
}

// Load reads .env if present, then resolves the configuration.
func Load() (*Config, error) {
	// Local development convenience; missing .env is fine in production.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("wikiquery")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("archive_index_cache_path", "wiki_index.gob")
	v.SetDefault("embedding_model", "text-embedding-ada-002")
	v.SetDefault("embedding_dimension", 1536)
	v.SetDefault("completion_model", "gpt-3.5-turbo")
	v.SetDefault("max_section_tokens", 512)
	v.SetDefault("context_token_budget", 2000)
	v.SetDefault("completion_max_tokens", 300)
	v.SetDefault("search_k", 4)
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("mediawiki_endpoint", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("allowed_origins", []string{"http://localhost:3000", "https://localhost:3000"})

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not feed Unmarshal: the decoder walks known
	// keys, and keys with no default and no config-file entry are unknown.
	// Bind every field so env-only settings reach the struct.
	for _, key := range []string{
		"openai_api_key",
		"dump_path",
		"manifest_path",
		"archive_index_cache_path",
		"store_path",
		"index_path",
		"embedding_model",
		"embedding_dimension",
		"completion_model",
		"max_section_tokens",
		"context_token_budget",
		"completion_max_tokens",
		"search_k",
		"listen_addr",
		"mediawiki_endpoint",
		"allowed_origins",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields every binary needs. Path requirements differ per
// command, so callers check those separately.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding_dimension must be positive, got %d", c.EmbeddingDimension)
	}
	if c.MaxSectionTokens <= 0 {
		return fmt.Errorf("max_section_tokens must be positive, got %d", c.MaxSectionTokens)
	}
	return nil
}
