package analyzer

import (
	"context"
	"sync"

	"github.com/fieldscope/specmatch/internal/models"
)

// AnalyzeBatch fans texts out over a bounded worker pool and fans results
// back in preserving input order. A failure in one item never aborts the
// batch; Analyze already folds per-item failures into REVIEW_REQUIRED
// results. Cancellation is cooperative: no new items start after the
// context is done, in-flight items finish, and unstarted items come back
// as REVIEW_REQUIRED with a cancellation note.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string, opts AnalyzeOptions) []models.AnalysisResult {
	results := make([]models.AnalysisResult, len(texts))

	sem := make(chan struct{}, a.config.Workers)
	var wg sync.WaitGroup

	for i, text := range texts {
		if ctx.Err() != nil {
			results[i] = canceledResult(text)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = a.Analyze(ctx, text, opts)
		}(i, text)
	}

	wg.Wait()
	return results
}

func canceledResult(text string) models.AnalysisResult {
	return models.AnalysisResult{
		InfractionText: text,
		Status:         models.StatusReviewRequired,
		NumericVerdict: models.VerdictIndeterminate,
		Reasoning:      "batch analysis canceled before this item started; manual review required",
	}
}
