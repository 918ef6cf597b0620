// Package config loads the optional per-repository JSON configuration
// file, ported from original_source's config.rs: same field set and
// defaults, same deny-unknown-fields strictness, same fall-back-to-
// defaults-with-a-warning behavior on a missing or invalid file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jward/ctxgraph/internal/ctxerr"
)

// FileName is the project configuration file's name at a repository root.
const FileName = ".ctxgraph.json"

// Config is the full set of recognized project options, spec.md §6.
type Config struct {
	Output  OutputConfig  `json:"output"`
	Search  SearchConfig  `json:"search"`
	Indexer IndexerConfig `json:"indexer"`
}

// OutputConfig controls response shaping in internal/format.
type OutputConfig struct {
	// MaxTokens bounds response size; nil means unlimited.
	MaxTokens *int `json:"max_tokens"`
	// TruncateSignatures is the max signature length before truncation.
	TruncateSignatures int `json:"truncate_signatures"`
	// TruncateDocComments is the max doc comment length in brief views.
	TruncateDocComments int `json:"truncate_doc_comments"`
}

// SearchConfig controls the Query Surface's search operation.
type SearchConfig struct {
	MaxResults int `json:"max_results"`
}

// IndexerConfig controls file discovery during indexing.
type IndexerConfig struct {
	// Ignore holds additional glob patterns, on top of .gitignore.
	Ignore []string `json:"ignore"`
	// MaxFileSize skips files larger than this, in bytes.
	MaxFileSize int64 `json:"max_file_size"`
}

// Default returns the configuration used when no project file is present.
func Default() Config {
	return Config{
		Output: OutputConfig{
			MaxTokens:           nil,
			TruncateSignatures:  120,
			TruncateDocComments: 100,
		},
		Search:  SearchConfig{MaxResults: 20},
		Indexer: IndexerConfig{Ignore: nil, MaxFileSize: 1 << 20},
	}
}

// Load reads FileName from repoPath. A missing file is not an error: it
// yields Default(). An invalid or unknown-field file returns an error;
// callers that want the Rust original's "warn and fall back" behavior
// should use Cache.Get instead, which swallows this error.
func Load(repoPath string) (Config, error) {
	path := filepath.Join(repoPath, FileName)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w: %w", path, err, ctxerr.ErrIO)
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w: %w", path, err, ctxerr.ErrInvalidInput)
	}
	return cfg, nil
}

// Validate reads FileName from repoPath, returning an error if the file
// is missing, unlike Load.
func Validate(repoPath string) (Config, error) {
	path := filepath.Join(repoPath, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("no %s found: %w", FileName, ctxerr.ErrNotFound)
	}
	return Load(repoPath)
}

// Cache memoizes per-repository configs so the Indexer and Query Surface
// don't re-read and re-parse the file on every operation.
type Cache struct {
	mu     sync.Mutex
	byRoot map[string]Config
}

// NewCache returns an empty config cache.
func NewCache() *Cache {
	return &Cache{byRoot: make(map[string]Config)}
}

// Get returns repoPath's config, loading and caching it on first use. A
// load failure is logged at warning level and Default() is cached and
// returned instead, matching original_source's ConfigCache::get.
func (c *Cache) Get(repoPath string) Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg, ok := c.byRoot[repoPath]; ok {
		return cfg
	}
	cfg, err := Load(repoPath)
	if err != nil {
		slog.Warn("failed to load project config, using defaults", "path", repoPath, "error", err)
		cfg = Default()
	}
	c.byRoot[repoPath] = cfg
	return cfg
}

// Invalidate drops a cached config so the next Get re-reads the file.
func (c *Cache) Invalidate(repoPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byRoot, repoPath)
}
