// Package chunker splits extracted specification text into overlapping word
// windows, the atomic unit of indexing.
package chunker

import (
	"fmt"
	"strings"

	"github.com/fieldscope/specmatch/internal/models"
)

const (
	// DefaultWindowWords is the window size W in words.
	DefaultWindowWords = 300
	// DefaultOverlapWords is the overlap O between consecutive windows.
	DefaultOverlapWords = 50
)

type ChunkerConfig struct {
	WindowWords  int
	OverlapWords int
}

type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) (*Chunker, error) {
	if config.WindowWords == 0 {
		config.WindowWords = DefaultWindowWords
	}
	if config.OverlapWords == 0 {
		config.OverlapWords = DefaultOverlapWords
	}
	if config.WindowWords < 1 {
		return nil, fmt.Errorf("window_words must be positive, got %d", config.WindowWords)
	}
	if config.OverlapWords < 0 || config.OverlapWords >= config.WindowWords {
		return nil, fmt.Errorf("overlap_words must be non-negative and less than window_words")
	}
	return &Chunker{config: config}, nil
}

func New() *Chunker {
	c, _ := NewWithConfig(ChunkerConfig{})
	return c
}

// Chunk splits text into windows of W words with O words of overlap
// (stride W-O). Offsets are word indexes into the whitespace-split token
// sequence. Embeddings are filled in later by the ingestion pipeline.
// Empty or whitespace-only input yields zero chunks.
func (c *Chunker) Chunk(text string) []models.SpecChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	window := c.config.WindowWords
	stride := window - c.config.OverlapWords

	var chunks []models.SpecChunk
	for start := 0; ; start += stride {
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, models.SpecChunk{
			Text:        strings.Join(words[start:end], " "),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// Stride returns the number of fresh words each window past the first
// contributes. Used to de-overlap chunks when reconstructing a document.
func (c *Chunker) Stride() int {
	return c.config.WindowWords - c.config.OverlapWords
}
