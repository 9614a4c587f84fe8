package types

import (
	"context"

	"github.com/fieldscope/specmatch/internal/models"
)

// Core interfaces
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type EntityExtractor interface {
	Extract(text string) []models.Entity
}

// SpecIndex stores chunks and their vectors. Ingest is serialized with
// respect to other writers; Search and the read-only accessors may run
// concurrently with a writer and always observe a complete snapshot.
type SpecIndex interface {
	Ingest(ctx context.Context, doc models.SpecDocument, chunks []models.SpecChunk, mode models.IngestMode) (models.IngestResult, error)
	Search(vector []float32, k int) ([]models.MatchResult, error)
	SearchLexical(query string, k int) ([]models.MatchResult, error)
	Remove(filename string) error
	Stats() models.IndexStats
	Manifest() models.LibraryManifest
	Close() error
}

type Chunker interface {
	Chunk(text string) []models.SpecChunk
}
