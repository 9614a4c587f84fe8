package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	// Run from a directory without a config file so the default chain
	// falls through to built-in defaults.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)

	t.Setenv("HOME", t.TempDir())
	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SPEC_SNAPSHOT_PATH", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, "nomic-embed-text:latest", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, "pattern", cfg.Extractor.Mode)
	assert.Equal(t, 300, cfg.Chunker.WindowWords)
	assert.Equal(t, 50, cfg.Chunker.OverlapWords)
	assert.Equal(t, "memory", cfg.Index.Strategy)
	assert.Equal(t, "spec_library.db", cfg.Index.SnapshotPath)
	assert.Equal(t, 0.03, cfg.Scoring.EntityBonus)
	assert.Equal(t, 0.12, cfg.Scoring.EntityBonusCap)
	assert.Equal(t, 0.75, cfg.Scoring.DegradedCap)
	assert.Equal(t, 0.85, cfg.Decision.RepealThreshold)
	assert.Equal(t, 0.70, cfg.Decision.ReviewThreshold)
	assert.Equal(t, 5, cfg.Analyzer.TopK)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
embedding:
  base_url: http://embed.internal:11434
  dimension: 384
extractor:
  mode: model
  model: llama3
chunker:
  window_words: 200
  overlap_words: 25
index:
  strategy: memory
  snapshot_path: /var/lib/specmatch/library.db
decision:
  repeal_threshold: 0.9
  review_threshold: 0.6
log:
  level: debug
  format: json
`)

	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SPEC_SNAPSHOT_PATH", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://embed.internal:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "model", cfg.Extractor.Mode)
	assert.Equal(t, "llama3", cfg.Extractor.Model)
	assert.Equal(t, 200, cfg.Chunker.WindowWords)
	assert.Equal(t, 25, cfg.Chunker.OverlapWords)
	assert.Equal(t, "/var/lib/specmatch/library.db", cfg.Index.SnapshotPath)
	assert.Equal(t, 0.9, cfg.Decision.RepealThreshold)
	assert.Equal(t, 0.6, cfg.Decision.ReviewThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// Unset fields still get defaults.
	assert.Equal(t, "nomic-embed-text:latest", cfg.Embedding.Model)
	assert.Equal(t, 0.03, cfg.Scoring.EntityBonus)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "embedding: [not a map")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
embedding:
  base_url: http://from-file:11434
`)

	t.Setenv("OLLAMA_BASE_URL", "http://from-env:11434")
	t.Setenv("DATABASE_URL", "postgres://user:pw@db:5432/specs")
	t.Setenv("SPEC_SNAPSHOT_PATH", "/tmp/env_library.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, "postgres://user:pw@db:5432/specs", cfg.Database.URL)
	assert.Equal(t, "/tmp/env_library.db", cfg.Index.SnapshotPath)
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Empty(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	cfg.Extractor.Mode = "magic"
	cfg.Chunker.OverlapWords = cfg.Chunker.WindowWords
	cfg.Decision.RepealThreshold = 0.5 // below review threshold
	cfg.Scoring.EntityBonusCap = 0.01  // below entity bonus

	errs := cfg.Validate()
	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
		assert.NotEmpty(t, e.Error())
	}

	assert.True(t, fields["extractor.mode"])
	assert.True(t, fields["chunker.overlap_words"])
	assert.True(t, fields["decision.repeal_threshold"])
	assert.True(t, fields["scoring.entity_bonus_cap"])
}

func TestValidate_PgvectorRequiresDatabaseURL(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Index.Strategy = "pgvector"

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Equal(t, "database.url", errs[0].Field)

	cfg.Database.URL = "postgres://user:pw@db:5432/specs"
	assert.Empty(t, cfg.Validate())
}

func TestValidate_UnknownStrategy(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Index.Strategy = "redis"

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "index.strategy", errs[0].Field)
}
