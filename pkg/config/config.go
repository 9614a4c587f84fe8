package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		BaseURL        string  `yaml:"base_url"`
		Model          string  `yaml:"model"`
		Dimension      int     `yaml:"dimension"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		RateLimit      float64 `yaml:"rate_limit"`
	} `yaml:"embedding"`

	Extractor struct {
		Mode           string `yaml:"mode"` // pattern or model
		Model          string `yaml:"model"`
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"extractor"`

	Chunker struct {
		WindowWords  int `yaml:"window_words"`
		OverlapWords int `yaml:"overlap_words"`
	} `yaml:"chunker"`

	Index struct {
		Strategy     string `yaml:"strategy"` // memory or pgvector
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"index"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Scoring struct {
		EntityBonus    float64 `yaml:"entity_bonus"`
		EntityBonusCap float64 `yaml:"entity_bonus_cap"`
		DegradedCap    float64 `yaml:"degraded_cap"`
	} `yaml:"scoring"`

	Decision struct {
		RepealThreshold float64 `yaml:"repeal_threshold"`
		ReviewThreshold float64 `yaml:"review_threshold"`
	} `yaml:"decision"`

	Analyzer struct {
		TopK    int `yaml:"top_k"`
		Workers int `yaml:"workers"`
	} `yaml:"analyzer"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/specmatch/config.yaml"),
			"/etc/specmatch/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.Dimension == 0 {
		config.Embedding.Dimension = 768
	}
	if config.Embedding.TimeoutSeconds == 0 {
		config.Embedding.TimeoutSeconds = 5
	}

	if config.Extractor.Mode == "" {
		config.Extractor.Mode = "pattern"
	}
	if config.Extractor.Model == "" {
		config.Extractor.Model = "mistral"
	}
	if config.Extractor.BaseURL == "" {
		config.Extractor.BaseURL = config.Embedding.BaseURL
	}
	if config.Extractor.TimeoutSeconds == 0 {
		config.Extractor.TimeoutSeconds = 5
	}

	if config.Chunker.WindowWords == 0 {
		config.Chunker.WindowWords = 300
	}
	if config.Chunker.OverlapWords == 0 {
		config.Chunker.OverlapWords = 50
	}

	if config.Index.Strategy == "" {
		config.Index.Strategy = "memory"
	}
	if config.Index.SnapshotPath == "" {
		config.Index.SnapshotPath = "spec_library.db"
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "spec_library"
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Scoring.EntityBonus == 0 {
		config.Scoring.EntityBonus = 0.03
	}
	if config.Scoring.EntityBonusCap == 0 {
		config.Scoring.EntityBonusCap = 0.12
	}
	if config.Scoring.DegradedCap == 0 {
		config.Scoring.DegradedCap = 0.75
	}

	if config.Decision.RepealThreshold == 0 {
		config.Decision.RepealThreshold = 0.85
	}
	if config.Decision.ReviewThreshold == 0 {
		config.Decision.ReviewThreshold = 0.70
	}

	if config.Analyzer.TopK == 0 {
		config.Analyzer.TopK = 5
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if snapshot := os.Getenv("SPEC_SNAPSHOT_PATH"); snapshot != "" {
		config.Index.SnapshotPath = snapshot
	}
}
