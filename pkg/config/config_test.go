package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadValidFile(t *testing.T) {
	path := writeConfig(t, `
port: 9090
fusion_window: 30s
analyzers:
  text_url: http://localhost:8001/classify
  text_timeout: 2s
risk:
  window_size: 10
  half_life: 2m
generator:
  provider: ollama
  model: llama3.2
storage:
  backend: file
  dir: /tmp/mindwell-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.FusionWindow)
	assert.Equal(t, "http://localhost:8001/classify", cfg.Analyzers.TextURL)
	assert.Equal(t, 2*time.Second, cfg.Analyzers.TextTimeout)
	assert.Equal(t, 10, cfg.Risk.WindowSize)
	assert.Equal(t, 2*time.Minute, cfg.Risk.HalfLife)
	assert.Equal(t, "llama3.2", cfg.Generator.Model)
	assert.Equal(t, "file", cfg.Storage.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "port: 8081\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.FusionWindow)
	assert.Equal(t, 20, cfg.Risk.WindowSize)
	assert.Equal(t, 5*time.Minute, cfg.Risk.WindowAge)
	assert.Equal(t, 5*time.Minute, cfg.Risk.HalfLife, "decay must be on by default")
	assert.Equal(t, 0.05, cfg.Risk.PersistenceBonus)
	assert.Equal(t, 0.15, cfg.Risk.PersistenceCap)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Generator.OllamaURL)
}

func TestLoadFileSizeLimit(t *testing.T) {
	path := writeConfig(t, strings.Repeat("x: value\n", 200000))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "port: [not a number\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("HUGGINGFACE_API_KEY", "hf-env")
	t.Setenv("OPENAI_API_KEY", "oa-env")

	cfg := Default()
	assert.Equal(t, "hf-env", cfg.Analyzers.HuggingFaceKey)
	assert.Equal(t, "oa-env", cfg.Generator.OpenAIKey)
}

func TestEnvDoesNotOverrideFile(t *testing.T) {
	t.Setenv("HUGGINGFACE_API_KEY", "hf-env")
	path := writeConfig(t, "analyzers:\n  huggingface_key: hf-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hf-file", cfg.Analyzers.HuggingFaceKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Port = -1 }, "invalid port"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "mongo" }, "unknown storage backend"},
		{"redis without addr", func(c *Config) { c.Storage.Backend = "redis" }, "redis_addr is required"},
		{"unknown provider", func(c *Config) { c.Generator.Provider = "bard" }, "unknown generator provider"},
		{"openai without key", func(c *Config) {
			c.Generator.Provider = "openai"
			c.Generator.OpenAIKey = ""
		}, "openai_key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
