package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs Load from an empty working directory so no stray .env or
// wikiquery.yaml leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_EnvOnly(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DUMP_PATH", "/dumps/enwiki.xml.bz2")
	t.Setenv("MANIFEST_PATH", "/dumps/enwiki-index.txt")
	t.Setenv("STORE_PATH", "/saves/sections.db")
	t.Setenv("INDEX_PATH", "/saves/vectors.gob")
	t.Setenv("SEARCH_K", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, "/dumps/enwiki.xml.bz2", cfg.DumpPath)
	assert.Equal(t, "/dumps/enwiki-index.txt", cfg.ManifestPath)
	assert.Equal(t, "/saves/sections.db", cfg.StorePath)
	assert.Equal(t, "/saves/vectors.gob", cfg.IndexPath)
	assert.Equal(t, 7, cfg.SearchK)

	require.NoError(t, cfg.Validate())
}

func TestLoad_DefaultsApplyWithoutFileOrEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-ada-002", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDimension)
	assert.Equal(t, "gpt-3.5-turbo", cfg.CompletionModel)
	assert.Equal(t, 512, cfg.MaxSectionTokens)
	assert.Equal(t, 2000, cfg.ContextTokenBudget)
	assert.Equal(t, 300, cfg.CompletionMaxTokens)
	assert.Equal(t, 4, cfg.SearchK)
	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "https://en.wikipedia.org/w/api.php", cfg.MediaWikiEndpoint)
	assert.Empty(t, cfg.DumpPath, "paths have no defaults")
}

func TestLoad_ConfigFileWithEnvOverride(t *testing.T) {
	dir := isolate(t)
	yaml := "dump_path: /from/file.bz2\nsearch_k: 9\nlisten_addr: \":9001\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wikiquery.yaml"), []byte(yaml), 0o644))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SEARCH_K", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/from/file.bz2", cfg.DumpPath)
	assert.Equal(t, ":9001", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.SearchK, "environment wins over the config file")
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("OPENAI_API_KEY=sk-from-dotenv\n"), 0o644))
	// godotenv only fills variables that are absent; make sure this one is.
	t.Setenv("OPENAI_API_KEY", "placeholder")
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-from-dotenv", cfg.OpenAIAPIKey)
}

func TestValidate_MissingAPIKey(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}
