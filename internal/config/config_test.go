package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
jwt:
  secret: "s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.False(t, cfg.Categories.Enabled)
	assert.Equal(t, 3, cfg.Categories.MaxTreeDepth)
	assert.Equal(t, "Everything", cfg.Categories.TopLevelName)
	assert.Equal(t, "questions", cfg.Elasticsearch.IndexName)
}

func TestLoad_ReadsCategorySection(t *testing.T) {
	path := writeConfig(t, `
categories:
  enabled: true
  max_tree_depth: 5
  token_secret: "abc"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Categories.Enabled)
	assert.Equal(t, 5, cfg.Categories.MaxTreeDepth)
	assert.Equal(t, "abc", cfg.Categories.TokenSecret)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
categories:
  max_tree_depth: 5
`)
	t.Setenv("QA_CATEGORIES_MAX_TREE_DEPTH", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Categories.MaxTreeDepth)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
