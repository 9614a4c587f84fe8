package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Embedding.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "embedding base URL is required",
		})
	}
	if c.Embedding.Dimension < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimension",
			Message: "dimension must be positive",
		})
	}
	if c.Embedding.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	switch c.Extractor.Mode {
	case "pattern", "model":
	default:
		errors = append(errors, ValidationError{
			Field:   "extractor.mode",
			Message: fmt.Sprintf("mode must be 'pattern' or 'model', got %q", c.Extractor.Mode),
		})
	}

	if c.Chunker.WindowWords < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.window_words",
			Message: "window_words must be positive",
		})
	}
	if c.Chunker.OverlapWords < 0 || c.Chunker.OverlapWords >= c.Chunker.WindowWords {
		errors = append(errors, ValidationError{
			Field:   "chunker.overlap_words",
			Message: "overlap_words must be non-negative and less than window_words",
		})
	}

	switch c.Index.Strategy {
	case "memory":
	case "pgvector":
		if c.Database.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "database URL is required for the pgvector strategy",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "index.strategy",
			Message: fmt.Sprintf("strategy must be 'memory' or 'pgvector', got %q", c.Index.Strategy),
		})
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}
	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Scoring.EntityBonus < 0 || c.Scoring.EntityBonus > 1 {
		errors = append(errors, ValidationError{
			Field:   "scoring.entity_bonus",
			Message: "entity_bonus must be between 0 and 1",
		})
	}
	if c.Scoring.EntityBonusCap < c.Scoring.EntityBonus {
		errors = append(errors, ValidationError{
			Field:   "scoring.entity_bonus_cap",
			Message: "entity_bonus_cap must be at least entity_bonus",
		})
	}
	if c.Scoring.DegradedCap <= 0 || c.Scoring.DegradedCap > 1 {
		errors = append(errors, ValidationError{
			Field:   "scoring.degraded_cap",
			Message: "degraded_cap must be in (0, 1]",
		})
	}

	if c.Decision.ReviewThreshold <= 0 || c.Decision.ReviewThreshold >= 1 {
		errors = append(errors, ValidationError{
			Field:   "decision.review_threshold",
			Message: "review_threshold must be in (0, 1)",
		})
	}
	if c.Decision.RepealThreshold <= c.Decision.ReviewThreshold || c.Decision.RepealThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "decision.repeal_threshold",
			Message: "repeal_threshold must be above review_threshold and at most 1",
		})
	}

	if c.Analyzer.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "analyzer.top_k",
			Message: "top_k must be positive",
		})
	}
	if c.Analyzer.Workers < 0 {
		errors = append(errors, ValidationError{
			Field:   "analyzer.workers",
			Message: "workers cannot be negative",
		})
	}

	return errors
}
