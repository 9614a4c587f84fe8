// Package analyzer is the service facade over the engine: it owns the
// chunk → embed → index ingestion pipeline and the embed + extract →
// search → score → decide analysis pipeline.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/fieldscope/specmatch/internal/models"
	"github.com/fieldscope/specmatch/internal/types"
	"github.com/fieldscope/specmatch/pkg/chunker"
	"github.com/fieldscope/specmatch/pkg/decision"
	"github.com/fieldscope/specmatch/pkg/logging"
	"github.com/fieldscope/specmatch/pkg/score"
)

type AnalyzerConfig struct {
	// TopK is how many matches each analysis retrieves.
	TopK int
	// Workers bounds batch analysis concurrency. Default: CPU count.
	Workers int
	// EmbedBatchSize is how many chunk texts go to the embedder per call
	// during ingestion.
	EmbedBatchSize int
	// OnEmbedProgress, when set, is called after each ingestion embedding
	// batch with (embedded, total) chunk counts.
	OnEmbedProgress func(done, total int)
}

type Analyzer struct {
	config    AnalyzerConfig
	index     types.SpecIndex
	embedder  types.Embedder
	extractor types.EntityExtractor
	chunker   *chunker.Chunker
	scorer    *score.Engine
	decider   *decision.Decider
}

func New(config AnalyzerConfig, index types.SpecIndex, embedder types.Embedder,
	extractor types.EntityExtractor, ch *chunker.Chunker,
	scorer *score.Engine, decider *decision.Decider) *Analyzer {

	if config.TopK == 0 {
		config.TopK = 5
	}
	if config.Workers == 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.EmbedBatchSize == 0 {
		config.EmbedBatchSize = 64
	}
	if ch == nil {
		ch = chunker.New()
	}

	return &Analyzer{
		config:    config,
		index:     index,
		embedder:  embedder,
		extractor: extractor,
		chunker:   ch,
		scorer:    scorer,
		decider:   decider,
	}
}

// Ingest chunks and embeds one document of extracted text, then commits it
// to the index. A document whose content hash is already present is
// skipped before any embedding work. Cancellation mid-pipeline leaves the
// previously committed index untouched.
func (a *Analyzer) Ingest(ctx context.Context, filename, text string, mode models.IngestMode) (models.IngestResult, error) {
	hash := contentHash(text)

	if mode == models.ModeAppend {
		for _, rec := range a.index.Manifest().Documents {
			if rec.ContentHash == hash {
				logging.Infow("document already ingested, skipping",
					"filename", filename, "content_hash", hash)
				return models.IngestResult{
					Filename:    filename,
					TotalChunks: a.index.Stats().TotalChunks,
					Skipped:     true,
				}, nil
			}
		}
	}

	chunks := a.chunker.Chunk(text)
	for i := range chunks {
		chunks[i].ID = fmt.Sprintf("%s#%d", filename, i)
		chunks[i].SourceDoc = filename
	}

	for start := 0; start < len(chunks); start += a.config.EmbedBatchSize {
		if err := ctx.Err(); err != nil {
			return models.IngestResult{}, err
		}
		end := start + a.config.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vectors, err := a.embedder.Embed(ctx, texts)
		if err != nil {
			return models.IngestResult{}, fmt.Errorf("failed to embed chunks of %s: %w", filename, err)
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
		if a.config.OnEmbedProgress != nil {
			a.config.OnEmbedProgress(end, len(chunks))
		}
	}

	doc := models.SpecDocument{
		Filename:    filename,
		ContentHash: hash,
		UploadedAt:  time.Now().UTC(),
	}
	result, err := a.index.Ingest(ctx, doc, chunks, mode)
	if err != nil {
		return models.IngestResult{}, err
	}

	logging.Infow("document ingested",
		"filename", filename,
		"chunks_added", result.ChunksAdded,
		"total_chunks", result.TotalChunks,
		"skipped", result.Skipped,
		"mode", string(mode))
	return result, nil
}

// AnalyzeOptions tune one analysis call.
type AnalyzeOptions struct {
	// ConfidenceFloor optionally raises the bar for an automatic repeal.
	// It can never lower it.
	ConfidenceFloor float64
}

// Analyze runs the full pipeline for one infraction. It always returns a
// structured result: absence of a match, a degraded embedding backend or a
// failing index query are explained outcomes, never errors.
func (a *Analyzer) Analyze(ctx context.Context, text string, opts AnalyzeOptions) models.AnalysisResult {
	if !hasContent(text) {
		return models.AnalysisResult{
			InfractionText: text,
			Status:         models.StatusReviewRequired,
			NumericVerdict: models.VerdictIndeterminate,
			Reasoning:      "empty infraction text",
		}
	}

	result := models.AnalysisResult{
		InfractionText: text,
		NumericVerdict: models.VerdictIndeterminate,
	}

	if a.index.Stats().TotalChunks == 0 {
		status, reasoning := a.decider.Decide(decision.Input{EmptyIndex: true})
		result.Entities = a.extractor.Extract(text)
		result.Status = status
		result.Reasoning = reasoning
		return result
	}

	entities := a.extractEntitiesParallel(ctx, text)
	result.Entities = entities.entities

	var matches []models.MatchResult
	var queryErr error
	degraded := false

	if entities.embedErr != nil {
		logging.Warnf("embedding backend unavailable, using lexical fallback: %v", entities.embedErr)
		degraded = true
		matches, queryErr = a.index.SearchLexical(text, a.config.TopK)
	} else {
		matches, queryErr = a.index.Search(entities.vector, a.config.TopK)
	}

	if queryErr != nil {
		logging.Errorf("index query failed: %v", queryErr)
		result.Status = models.StatusReviewRequired
		result.Degraded = degraded
		result.Reasoning = fmt.Sprintf("index query failed: %v; manual review required", queryErr)
		return result
	}

	fused := a.scorer.Score(entities.entities, matches, degraded)

	input := decision.Input{
		Confidence:      fused.Confidence,
		Verdict:         fused.Verdict,
		ConfidenceFloor: opts.ConfidenceFloor,
		Comparison:      fused.Comparison,
		Degraded:        degraded,
	}
	if len(matches) > 0 {
		input.BestDoc = matches[0].Chunk.SourceDoc
		input.BestSimilarity = matches[0].Similarity
	}
	status, reasoning := a.decider.Decide(input)

	result.TopMatches = matches
	result.Confidence = fused.Confidence
	result.NumericVerdict = fused.Verdict
	result.Status = status
	result.Degraded = degraded
	result.Reasoning = reasoning
	return result
}

// Stats reports the current index contents.
func (a *Analyzer) Stats() models.IndexStats {
	return a.index.Stats()
}

// Manifest lists ingested documents without exposing text or vectors.
func (a *Analyzer) Manifest() models.LibraryManifest {
	return a.index.Manifest()
}

// Remove deletes a document and its chunks from the index.
func (a *Analyzer) Remove(filename string) error {
	return a.index.Remove(filename)
}

type extractionOutcome struct {
	entities []models.Entity
	vector   []float32
	embedErr error
}

// extractEntitiesParallel runs embedding and entity extraction
// concurrently; both are independent reads of the infraction text.
func (a *Analyzer) extractEntitiesParallel(ctx context.Context, text string) extractionOutcome {
	out := extractionOutcome{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		vectors, err := a.embedder.Embed(ctx, []string{text})
		if err != nil {
			out.embedErr = err
			return
		}
		if len(vectors) != 1 {
			out.embedErr = errors.New("embedder returned unexpected vector count")
			return
		}
		out.vector = vectors[0]
	}()

	out.entities = a.extractor.Extract(text)
	<-done
	return out
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func hasContent(text string) bool {
	for _, r := range text {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return true
		}
	}
	return false
}
