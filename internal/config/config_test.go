package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 20, cfg.Search.MaxResults)
	assert.EqualValues(t, 1048576, cfg.Indexer.MaxFileSize)
	assert.Equal(t, 120, cfg.Output.TruncateSignatures)
}

func TestLoad_MissingConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Search.MaxResults)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := `{
  "output": { "max_tokens": 2000, "truncate_signatures": 80 },
  "search": { "max_results": 10 },
  "indexer": { "ignore": ["generated/", "*.min.js"], "max_file_size": 524288 }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg.Output.MaxTokens)
	assert.Equal(t, 2000, *cfg.Output.MaxTokens)
	assert.Equal(t, 80, cfg.Output.TruncateSignatures)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, []string{"generated/", "*.min.js"}, cfg.Indexer.Ignore)
	assert.EqualValues(t, 524288, cfg.Indexer.MaxFileSize)
}

func TestLoad_PartialConfigUsesDefaultsForRest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{ "search": { "max_results": 5 } }`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 120, cfg.Output.TruncateSignatures)
	assert.EqualValues(t, 1048576, cfg.Indexer.MaxFileSize)
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{bad json"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_UnknownFieldsRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{ "search": { "max_results": 10, "typo_field": true } }`), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "typo_field")
}

func TestValidate_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Validate(dir)
	assert.Error(t, err)
}

func TestValidate_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{ "search": { "max_results": 10 } }`), 0o644))

	cfg, err := Validate(dir)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.MaxResults)
}

func TestCache_GetCachesAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	c := NewCache()
	first := c.Get(dir)
	second := c.Get(dir)
	assert.Equal(t, first.Search.MaxResults, second.Search.MaxResults)
}

func TestCache_GetFallsBackToDefaultsOnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{bad json"), 0o644))

	c := NewCache()
	cfg := c.Get(dir)
	assert.Equal(t, 20, cfg.Search.MaxResults)
}
