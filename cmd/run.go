package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/fieldscope/specmatch/internal/models"
	"github.com/fieldscope/specmatch/internal/types"
	"github.com/fieldscope/specmatch/pkg/analyzer"
	"github.com/fieldscope/specmatch/pkg/chunker"
	cfgPkg "github.com/fieldscope/specmatch/pkg/config"
	"github.com/fieldscope/specmatch/pkg/decision"
	"github.com/fieldscope/specmatch/pkg/extract"
	"github.com/fieldscope/specmatch/pkg/index"
	"github.com/fieldscope/specmatch/pkg/llm"
	"github.com/fieldscope/specmatch/pkg/loader"
	"github.com/fieldscope/specmatch/pkg/logging"
	"github.com/fieldscope/specmatch/pkg/score"
	"github.com/fieldscope/specmatch/pkg/store"
)

func run(flags Flags) error {
	cfg, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	logging.Init(cfg.Log.Level, cfg.Log.Format)
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	specIndex, err := buildIndex(cfg)
	if err != nil {
		return err
	}
	defer specIndex.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		RateLimit: cfg.Embedding.RateLimit,
	})
	if err != nil {
		return err
	}

	extractor := buildExtractor(cfg)

	ch, err := chunker.NewWithConfig(chunker.ChunkerConfig{
		WindowWords:  cfg.Chunker.WindowWords,
		OverlapWords: cfg.Chunker.OverlapWords,
	})
	if err != nil {
		return err
	}

	scorer := score.NewEngine(score.Weights{
		EntityBonus:    cfg.Scoring.EntityBonus,
		EntityBonusCap: cfg.Scoring.EntityBonusCap,
		DegradedCap:    cfg.Scoring.DegradedCap,
	}, extractor)

	decider := decision.NewDecider(decision.Thresholds{
		Repeal: cfg.Decision.RepealThreshold,
		Review: cfg.Decision.ReviewThreshold,
	})

	var bar *progressbar.ProgressBar
	svc := analyzer.New(analyzer.AnalyzerConfig{
		TopK:    cfg.Analyzer.TopK,
		Workers: cfg.Analyzer.Workers,
		OnEmbedProgress: func(done, total int) {
			if bar == nil {
				bar = getProgressBar(total, " Embedding chunks")
			}
			bar.Set(done)
		},
	}, specIndex, embedder, extractor, ch, scorer, decider)

	switch {
	case flags.IngestPath != "":
		return ingestFile(ctx, svc, flags.IngestPath, models.IngestMode(flags.Mode), &bar)
	case flags.IngestURL != "":
		return ingestURL(ctx, svc, flags.IngestURL, models.IngestMode(flags.Mode), &bar)
	case flags.AnalyzeText != "":
		printResult(svc.Analyze(ctx, flags.AnalyzeText, analyzer.AnalyzeOptions{ConfidenceFloor: flags.Floor}))
		return nil
	case flags.BatchPath != "":
		return analyzeBatch(ctx, svc, flags.BatchPath, flags.Floor)
	case flags.RemoveName != "":
		if err := svc.Remove(flags.RemoveName); err != nil {
			return err
		}
		color.Green("✓ Removed %s", flags.RemoveName)
		return nil
	case flags.ShowLibrary:
		printManifest(svc.Manifest())
		return nil
	default:
		printStats(svc.Stats())
		return nil
	}
}

func buildIndex(cfg *cfgPkg.Config) (types.SpecIndex, error) {
	switch cfg.Index.Strategy {
	case "pgvector":
		return store.NewWithConfig(store.PgIndexConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Embedding.Dimension,
			BatchSize:  cfg.Database.BatchSize,
		})
	default:
		return index.NewWithConfig(index.IndexConfig{
			Dimension:    cfg.Embedding.Dimension,
			SnapshotPath: cfg.Index.SnapshotPath,
		})
	}
}

func buildExtractor(cfg *cfgPkg.Config) types.EntityExtractor {
	if cfg.Extractor.Mode == "model" {
		m, err := extract.NewModelExtractor(extract.ModelExtractorConfig{
			Model:   cfg.Extractor.Model,
			BaseURL: cfg.Extractor.BaseURL,
			Timeout: time.Duration(cfg.Extractor.TimeoutSeconds) * time.Second,
		})
		if err == nil {
			return m
		}
		logging.Warnf("model extractor unavailable, using pattern extractor: %v", err)
	}
	return extract.NewPatternExtractor()
}

func ingestFile(ctx context.Context, svc *analyzer.Analyzer, path string, mode models.IngestMode, bar **progressbar.ProgressBar) error {
	filename, text, err := loader.New().LoadFile(path)
	if err != nil {
		return err
	}
	result, err := svc.Ingest(ctx, filename, text, mode)
	if err != nil {
		return err
	}
	return reportIngest(result, bar)
}

func ingestURL(ctx context.Context, svc *analyzer.Analyzer, url string, mode models.IngestMode, bar **progressbar.ProgressBar) error {
	filename, text, err := loader.New().LoadURL(ctx, url)
	if err != nil {
		return err
	}
	result, err := svc.Ingest(ctx, filename, text, mode)
	if err != nil {
		return err
	}
	return reportIngest(result, bar)
}

func reportIngest(result models.IngestResult, bar **progressbar.ProgressBar) error {
	if *bar != nil {
		(*bar).Finish()
		fmt.Println()
	}
	if result.Skipped {
		color.Yellow("– %s already ingested (same content hash), skipped", result.Filename)
		return nil
	}
	color.Green("✓ Ingested %s: %d chunks added, %d total", result.Filename, result.ChunksAdded, result.TotalChunks)
	return nil
}

func analyzeBatch(ctx context.Context, svc *analyzer.Analyzer, path string, floor float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var texts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	results := svc.AnalyzeBatch(ctx, texts, analyzer.AnalyzeOptions{ConfidenceFloor: floor})
	for i, r := range results {
		fmt.Printf("\n[%d/%d]\n", i+1, len(results))
		printResult(r)
	}
	return nil
}

func printResult(r models.AnalysisResult) {
	statusColor := color.New(color.FgYellow)
	switch r.Status {
	case models.StatusRepealable:
		statusColor = color.New(color.FgGreen)
	case models.StatusValidInfraction:
		statusColor = color.New(color.FgRed)
	}

	fmt.Printf("Infraction: %s\n", r.InfractionText)
	statusColor.Printf("Status:     %s\n", r.Status)
	fmt.Printf("Confidence: %.3f\n", r.Confidence)
	fmt.Printf("Verdict:    %s\n", r.NumericVerdict)
	if len(r.TopMatches) > 0 {
		fmt.Printf("Best match: %s (%.3f)\n", r.TopMatches[0].Chunk.SourceDoc, r.TopMatches[0].Similarity)
	}
	fmt.Printf("Reasoning:  %s\n", r.Reasoning)
}

func printStats(stats models.IndexStats) {
	color.Cyan("Spec library: %d documents, %d chunks", stats.TotalDocs, stats.TotalChunks)
	for filename, count := range stats.PerDocChunkCounts {
		fmt.Printf("  %s: %d chunks\n", filename, count)
	}
}

func printManifest(m models.LibraryManifest) {
	for _, d := range m.Documents {
		fmt.Printf("%s  %s  %d chunks  %s\n",
			d.Filename, d.ContentHash[:12], d.ChunkCount, d.UploadedAt.Format(time.RFC3339))
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
