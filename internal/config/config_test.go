package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/models"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7860, cfg.Server.Port)
	assert.Equal(t, models.DefaultChunkSize, cfg.RAG.ChunkSize)
	assert.Equal(t, models.DefaultChunkOverlap, cfg.RAG.ChunkOverlap)
	assert.Equal(t, models.DefaultTopK, cfg.RAG.TopK)
	assert.Equal(t, models.DefaultSeparators, cfg.RAG.Separators)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 8080
rag:
  chunk_size: 500
  chunk_overlap: 50
llm:
  provider: ollama
  model: llama3
log:
  level: info
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./uploads", cfg.Server.UploadDir)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, models.DefaultTopK, cfg.RAG.TopK)
	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "overlap equal to size", mutate: func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize }, wantErr: true},
		{name: "negative overlap", mutate: func(c *Config) { c.RAG.ChunkOverlap = -1 }, wantErr: true},
		{name: "zero chunk size", mutate: func(c *Config) { c.RAG.ChunkSize = 0 }, wantErr: true},
		{name: "temperature above one", mutate: func(c *Config) { c.RAG.Temperature = 1.5 }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "bedrock" }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: true},
		{name: "no separators", mutate: func(c *Config) { c.RAG.Separators = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *models.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestResolveCredentials(t *testing.T) {
	env := map[string]string{"OPENAI_API_KEY": "sk-test"}
	getenv := func(key string) string { return env[key] }

	cfg := Default()
	require.NoError(t, cfg.ResolveCredentials(getenv))
	assert.Equal(t, "sk-test", cfg.LLM.Key)
	assert.Equal(t, "sk-test", cfg.EmbedLLM.Key)
}

func TestResolveCredentialsMissingKey(t *testing.T) {
	cfg := Default()
	err := cfg.ResolveCredentials(func(string) string { return "" })

	var cfgErr *models.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Field)
}

func TestResolveCredentialsOllamaNeedsNoKey(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = ProviderOllama
	cfg.EmbedLLM.Provider = ProviderOllama

	assert.NoError(t, cfg.ResolveCredentials(func(string) string { return "" }))
}

func TestLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.Key)
}

func TestLoadWithoutCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	var cfgErr *models.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestInContainer(t *testing.T) {
	marker := filepath.Join(t.TempDir(), ".dockerenv")
	require.NoError(t, os.WriteFile(marker, nil, 0o644))
	prefixes := []string{"pdf-rag-container", "pdf-rag-app"}
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name     string
		marker   string
		hostname string
		want     bool
	}{
		{name: "marker file", marker: marker, hostname: "laptop", want: true},
		{name: "container hostname", marker: missing, hostname: "pdf-rag-container-7f9c", want: true},
		{name: "app hostname", marker: missing, hostname: "pdf-rag-app", want: true},
		{name: "plain host", marker: missing, hostname: "laptop", want: false},
		{name: "prefix elsewhere in name", marker: missing, hostname: "my-pdf-rag-app", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InContainer(tt.marker, tt.hostname, prefixes))
		})
	}
}

func TestListenAddr(t *testing.T) {
	marker := filepath.Join(t.TempDir(), ".dockerenv")
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	inside := ServerConfig{Port: 7860, ContainerMarker: marker}
	assert.Equal(t, "0.0.0.0:7860", inside.ListenAddr())

	outside := ServerConfig{Port: 7860, ContainerMarker: filepath.Join(t.TempDir(), "missing")}
	assert.Equal(t, "127.0.0.1:7860", outside.ListenAddr())
}
