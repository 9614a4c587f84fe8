// Package index implements the in-memory spec index: a copy-on-write
// snapshot of every ingested chunk and its vector, linear-scan cosine
// search, and single-artifact persistence. For corpora past the point where
// a linear scan holds up (~10K chunks), pkg/store provides a
// pgvector-backed strategy with the same contract.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fieldscope/specmatch/internal/models"
	"github.com/fieldscope/specmatch/pkg/lexical"
	"github.com/fieldscope/specmatch/pkg/logging"
)

var (
	// ErrDimensionMismatch means a query or chunk vector does not match the
	// index dimension. Fatal for that operation only.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorruptSnapshot means the persisted snapshot failed validation.
	ErrCorruptSnapshot = errors.New("corrupt index snapshot")
)

type IndexConfig struct {
	Dimension    int
	SnapshotPath string // empty disables persistence
}

// snapshot is the immutable state readers see. Writers build a fresh
// snapshot and swap it in atomically; an in-flight query keeps reading the
// one it loaded.
type snapshot struct {
	docs   []models.SpecDocument // insertion order
	chunks []models.SpecChunk    // grouped per document, in document insertion order
	byName map[string]int        // filename -> index into docs
	byHash map[string]string     // content hash -> filename
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byName: make(map[string]int),
		byHash: make(map[string]string),
	}
}

// MemoryIndex is the linear-scan strategy. Reads are lock-free against an
// atomic snapshot pointer; mutations take the writer mutex, rebuild, swap,
// then persist.
type MemoryIndex struct {
	config IndexConfig
	snap   atomic.Pointer[snapshot]
	mu     sync.Mutex // serializes writers
	store  *snapshotStore
}

func NewWithConfig(config IndexConfig) (*MemoryIndex, error) {
	if config.Dimension == 0 {
		config.Dimension = 768
	}

	idx := &MemoryIndex{config: config}
	idx.snap.Store(emptySnapshot())

	if config.SnapshotPath != "" {
		store, err := openSnapshotStore(config.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		idx.store = store

		loaded, err := store.load(config.Dimension)
		if err != nil {
			// Never serve partial state: log and start with an empty
			// library, leaving the artifact untouched until the next
			// mutation overwrites it.
			logging.Errorf("index snapshot %s failed validation, starting empty: %v",
				config.SnapshotPath, err)
		} else if loaded != nil {
			idx.snap.Store(loaded)
		}
	}

	return idx, nil
}

// Ingest merges one document and its chunks. Append mode skips documents
// whose content hash is already present; replace mode clears any existing
// chunks for the filename (or a prior upload of the same content) first.
// Queries never observe a partially-updated index: the swap happens only
// after the new snapshot is fully built and the context is still live.
func (idx *MemoryIndex) Ingest(ctx context.Context, doc models.SpecDocument, chunks []models.SpecChunk, mode models.IngestMode) (models.IngestResult, error) {
	for _, c := range chunks {
		if len(c.Embedding) != idx.config.Dimension {
			return models.IngestResult{}, fmt.Errorf("%w: chunk %s has dimension %d, index wants %d",
				ErrDimensionMismatch, c.ID, len(c.Embedding), idx.config.Dimension)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()

	if mode == models.ModeAppend {
		if _, exists := cur.byHash[doc.ContentHash]; exists {
			return models.IngestResult{
				Filename:    doc.Filename,
				TotalChunks: len(cur.chunks),
				Skipped:     true,
			}, nil
		}
	}

	// Drop any previous upload under this filename, and in replace mode
	// also a prior upload of the identical content under another name.
	drop := func(d models.SpecDocument) bool {
		if d.Filename == doc.Filename {
			return true
		}
		return mode == models.ModeReplace && d.ContentHash == doc.ContentHash
	}

	next := emptySnapshot()
	for _, d := range cur.docs {
		if drop(d) {
			continue
		}
		next.byName[d.Filename] = len(next.docs)
		next.byHash[d.ContentHash] = d.Filename
		next.docs = append(next.docs, d)
	}
	for _, c := range cur.chunks {
		if _, kept := next.byName[c.SourceDoc]; kept {
			next.chunks = append(next.chunks, c)
		}
	}

	doc.ChunkCount = len(chunks)
	next.byName[doc.Filename] = len(next.docs)
	next.byHash[doc.ContentHash] = doc.Filename
	next.docs = append(next.docs, doc)
	next.chunks = append(next.chunks, chunks...)

	// A canceled ingest must leave the committed index untouched.
	if err := ctx.Err(); err != nil {
		return models.IngestResult{}, err
	}

	if err := idx.persist(next); err != nil {
		return models.IngestResult{}, err
	}
	idx.snap.Store(next)

	return models.IngestResult{
		Filename:    doc.Filename,
		ChunksAdded: len(chunks),
		TotalChunks: len(next.chunks),
	}, nil
}

// Search returns the top-k chunks by cosine similarity, descending. Ties
// break by document insertion order then chunk offset: chunks are stored in
// exactly that order and the sort is stable.
func (idx *MemoryIndex) Search(vector []float32, k int) ([]models.MatchResult, error) {
	s := idx.snap.Load()
	if len(s.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != idx.config.Dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index wants %d",
			ErrDimensionMismatch, len(vector), idx.config.Dimension)
	}

	return rankChunks(s.chunks, k, func(c models.SpecChunk) float64 {
		return CosineSimilarity(vector, c.Embedding)
	}), nil
}

// SearchLexical ranks chunks by term-frequency cosine against the raw
// query text. This is the degraded-mode path used when the embedding
// backend is unavailable.
func (idx *MemoryIndex) SearchLexical(query string, k int) ([]models.MatchResult, error) {
	s := idx.snap.Load()
	if len(s.chunks) == 0 {
		return nil, nil
	}

	qv := lexical.Vectorize(query)
	return rankChunks(s.chunks, k, func(c models.SpecChunk) float64 {
		return lexical.Cosine(qv, lexical.Vectorize(c.Text))
	}), nil
}

func rankChunks(chunks []models.SpecChunk, k int, score func(models.SpecChunk) float64) []models.MatchResult {
	results := make([]models.MatchResult, 0, len(chunks))
	for _, c := range chunks {
		sim := score(c)
		// Chunk vectors stay inside the index; results carry text and
		// offsets only.
		c.Embedding = nil
		results = append(results, models.MatchResult{Chunk: c, Similarity: sim})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// Remove deletes a document and all its chunks atomically. No-op when the
// filename is absent.
func (idx *MemoryIndex) Remove(filename string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()
	if _, exists := cur.byName[filename]; !exists {
		return nil
	}

	next := emptySnapshot()
	for _, d := range cur.docs {
		if d.Filename == filename {
			continue
		}
		next.byName[d.Filename] = len(next.docs)
		next.byHash[d.ContentHash] = d.Filename
		next.docs = append(next.docs, d)
	}
	for _, c := range cur.chunks {
		if c.SourceDoc != filename {
			next.chunks = append(next.chunks, c)
		}
	}

	if err := idx.persist(next); err != nil {
		return err
	}
	idx.snap.Store(next)
	return nil
}

func (idx *MemoryIndex) Stats() models.IndexStats {
	s := idx.snap.Load()
	stats := models.IndexStats{
		TotalDocs:         len(s.docs),
		TotalChunks:       len(s.chunks),
		PerDocChunkCounts: make(map[string]int, len(s.docs)),
	}
	for _, d := range s.docs {
		stats.PerDocChunkCounts[d.Filename] = d.ChunkCount
	}
	return stats
}

// Manifest lists documents in insertion order. Bookkeeping only; no chunk
// text or vectors leave the index.
func (idx *MemoryIndex) Manifest() models.LibraryManifest {
	s := idx.snap.Load()
	m := models.LibraryManifest{Documents: make([]models.DocumentRecord, 0, len(s.docs))}
	for _, d := range s.docs {
		m.Documents = append(m.Documents, models.DocumentRecord{
			Filename:    d.Filename,
			ContentHash: d.ContentHash,
			ChunkCount:  d.ChunkCount,
			UploadedAt:  d.UploadedAt,
		})
	}
	return m
}

func (idx *MemoryIndex) Close() error {
	if idx.store != nil {
		return idx.store.close()
	}
	return nil
}

func (idx *MemoryIndex) persist(s *snapshot) error {
	if idx.store == nil {
		return nil
	}
	return idx.store.save(s, idx.config.Dimension)
}

// CosineSimilarity returns the cosine of two vectors clamped to [0,1].
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
