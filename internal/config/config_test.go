package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, existed := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if existed {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadAppliesDefaultsWhenEnvEmpty(t *testing.T) {
	clearEnv(t, "ENVIRONMENT", "SERVER_ADDR", "RAG_CHUNK_SIZE", "RAG_HYBRID_SEARCH", "OPENAI_API_KEY", "GROQ_API_KEY")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.False(t, cfg.RAG.HybridSearch)
	assert.Empty(t, cfg.LLM.OpenAIAPIKey)
	assert.Empty(t, cfg.LLM.GroqAPIKey)
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	clearEnv(t, "ENVIRONMENT", "OPENAI_API_KEY", "RAG_HYBRID_SEARCH")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("ENVIRONMENT=production\nOPENAI_API_KEY=sk-test\nRAG_HYBRID_SEARCH=true\n"), 0o644))

	cfg, err := Load(envPath)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAIAPIKey)
	assert.True(t, cfg.RAG.HybridSearch)
}

func TestProcessEnvironmentWinsOverDotEnvFile(t *testing.T) {
	clearEnv(t, "ENVIRONMENT")
	os.Setenv("ENVIRONMENT", "production")
	t.Cleanup(func() { os.Unsetenv("ENVIRONMENT") })

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("ENVIRONMENT=development\n"), 0o644))

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoadDetectsAWSCredentials(t *testing.T) {
	clearEnv(t, "AWS_ACCESS_KEY_ID", "AWS_ROLE_ARN")
	os.Setenv("AWS_ACCESS_KEY_ID", "AKIAFAKE")
	t.Cleanup(func() { os.Unsetenv("AWS_ACCESS_KEY_ID") })

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.NoError(t, err)
	assert.True(t, cfg.LLM.AWSCredentialsSet)
}
