// Package llm wraps the embedding backend behind the Embedder capability
// interface. The backend is treated as a black box: a model served by
// Ollama, deterministic for a fixed model version.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// ErrEmbeddingUnavailable wraps backend failures so callers can recognize
// them and engage the lexical fallback instead of aborting the call.
var ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	Dimension int
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
}

// OllamaEmbedder produces fixed-dimension dense vectors via an Ollama
// embedding model. Safe for concurrent use; per-call timeout and optional
// rate limiting are applied here so callers stay oblivious.
type OllamaEmbedder struct {
	config  EmbedderConfig
	llm     *ollama.LLM
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*OllamaEmbedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Dimension == 0 {
		config.Dimension = 768
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	emb, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &OllamaEmbedder{
		config:  config,
		llm:     emb,
		limiter: limiter,
	}, nil
}

// Embed maps texts to vectors, batched in one backend call. Every returned
// vector is validated against the configured dimension; a mismatch means
// the served model changed out from under us and is reported as an error
// rather than letting wrong-dimension vectors reach the index.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	vectors, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.config.Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrEmbeddingUnavailable, i, len(v), e.config.Dimension)
		}
	}
	return vectors, nil
}

func (e *OllamaEmbedder) Dimension() int {
	return e.config.Dimension
}
