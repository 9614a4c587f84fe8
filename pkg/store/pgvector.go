// Package store implements the Postgres/pgvector spec index strategy for
// corpora too large for a linear scan. It honors the same contract as the
// in-memory index: append/replace dedup by content hash, deterministic
// tie-breaking, atomic document replacement.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fieldscope/specmatch/internal/models"
	"github.com/fieldscope/specmatch/pkg/index"
	"github.com/fieldscope/specmatch/pkg/lexical"
)

type PgIndexConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

type PgIndex struct {
	config PgIndexConfig
	pool   *pgxpool.Pool
	mu     sync.Mutex // serializes writers; readers go straight to the pool
}

func NewWithConfig(config PgIndexConfig) (*PgIndex, error) {
	if config.TableName == "" {
		config.TableName = "spec_library"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pg := &PgIndex{config: config, pool: pool}
	if err := pg.initialize(); err != nil {
		pool.Close()
		return nil, err
	}
	return pg, nil
}

func (pg *PgIndex) initialize() error {
	ctx := context.Background()

	if _, err := pg.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createDocs := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_documents (
			seq BIGSERIAL,
			filename TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			chunk_count INTEGER NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL
		)`, pg.config.TableName)
	if _, err := pg.pool.Exec(ctx, createDocs); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	createChunks := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_chunks (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL REFERENCES %s_documents(filename) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, pg.config.TableName, pg.config.TableName, pg.config.VectorDim)
	if _, err := pg.pool.Exec(ctx, createChunks); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_chunks_embedding_idx
		ON %s_chunks
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		pg.config.TableName, pg.config.TableName)
	if _, err := pg.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	return nil
}

func (pg *PgIndex) Ingest(ctx context.Context, doc models.SpecDocument, chunks []models.SpecChunk, mode models.IngestMode) (models.IngestResult, error) {
	for _, c := range chunks {
		if len(c.Embedding) != pg.config.VectorDim {
			return models.IngestResult{}, fmt.Errorf("%w: chunk %s has dimension %d, index wants %d",
				index.ErrDimensionMismatch, c.ID, len(c.Embedding), pg.config.VectorDim)
		}
	}

	pg.mu.Lock()
	defer pg.mu.Unlock()

	tx, err := pg.pool.Begin(ctx)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if mode == models.ModeAppend {
		var exists bool
		q := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s_documents WHERE content_hash = $1)", pg.config.TableName)
		if err := tx.QueryRow(ctx, q, doc.ContentHash).Scan(&exists); err != nil {
			return models.IngestResult{}, fmt.Errorf("failed to check content hash: %w", err)
		}
		if exists {
			total, err := pg.totalChunks(ctx, tx)
			if err != nil {
				return models.IngestResult{}, err
			}
			return models.IngestResult{
				Filename:    doc.Filename,
				TotalChunks: total,
				Skipped:     true,
			}, nil
		}
	}

	del := fmt.Sprintf("DELETE FROM %s_documents WHERE filename = $1", pg.config.TableName)
	args := []interface{}{doc.Filename}
	if mode == models.ModeReplace {
		del = fmt.Sprintf("DELETE FROM %s_documents WHERE filename = $1 OR content_hash = $2", pg.config.TableName)
		args = append(args, doc.ContentHash)
	}
	if _, err := tx.Exec(ctx, del, args...); err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to clear previous document: %w", err)
	}

	insertDoc := fmt.Sprintf(`
		INSERT INTO %s_documents (filename, content_hash, chunk_count, uploaded_at)
		VALUES ($1, $2, $3, $4)`, pg.config.TableName)
	if _, err := tx.Exec(ctx, insertDoc, doc.Filename, doc.ContentHash, len(chunks), doc.UploadedAt); err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to insert document: %w", err)
	}

	insertChunk := fmt.Sprintf(`
		INSERT INTO %s_chunks (id, filename, chunk_index, start_offset, end_offset, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, pg.config.TableName)
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return models.IngestResult{}, err
		}
		_, err := tx.Exec(ctx, insertChunk,
			c.ID,
			doc.Filename,
			i,
			c.StartOffset,
			c.EndOffset,
			sanitizeUTF8(c.Text),
			pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return models.IngestResult{}, fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	total, err := pg.totalChunks(ctx, pg.pool)
	if err != nil {
		return models.IngestResult{}, err
	}
	return models.IngestResult{
		Filename:    doc.Filename,
		ChunksAdded: len(chunks),
		TotalChunks: total,
	}, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (pg *PgIndex) totalChunks(ctx context.Context, q querier) (int, error) {
	var total int
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s_chunks", pg.config.TableName)
	if err := q.QueryRow(ctx, sql).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return total, nil
}

// Search returns the top-k chunks by cosine similarity. Ordering matches
// the in-memory strategy: similarity descending, ties by document
// insertion order (seq) then chunk offset.
func (pg *PgIndex) Search(vector []float32, k int) ([]models.MatchResult, error) {
	if len(vector) != pg.config.VectorDim {
		return nil, fmt.Errorf("%w: query has dimension %d, index wants %d",
			index.ErrDimensionMismatch, len(vector), pg.config.VectorDim)
	}

	ctx := context.Background()
	query := fmt.Sprintf(`
		SELECT c.id, c.filename, c.start_offset, c.end_offset, c.content,
		       1 - (c.embedding <=> $1) AS similarity
		FROM %s_chunks c
		JOIN %s_documents d ON d.filename = c.filename
		ORDER BY c.embedding <=> $1 ASC, d.seq ASC, c.chunk_index ASC
		LIMIT $2`,
		pg.config.TableName, pg.config.TableName)

	rows, err := pg.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.MatchResult
	for rows.Next() {
		var m models.MatchResult
		err := rows.Scan(
			&m.Chunk.ID,
			&m.Chunk.SourceDoc,
			&m.Chunk.StartOffset,
			&m.Chunk.EndOffset,
			&m.Chunk.Text,
			&m.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if m.Similarity < 0 {
			m.Similarity = 0
		}
		if m.Similarity > 1 {
			m.Similarity = 1
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// SearchLexical pulls chunk contents and ranks them by term-frequency
// cosine client-side. This path only runs when the embedding backend is
// down, so the full-table read is acceptable.
func (pg *PgIndex) SearchLexical(query string, k int) ([]models.MatchResult, error) {
	ctx := context.Background()
	sql := fmt.Sprintf(`
		SELECT c.id, c.filename, c.start_offset, c.end_offset, c.content
		FROM %s_chunks c
		JOIN %s_documents d ON d.filename = c.filename
		ORDER BY d.seq ASC, c.chunk_index ASC`,
		pg.config.TableName, pg.config.TableName)

	rows, err := pg.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	qv := lexical.Vectorize(query)
	var results []models.MatchResult
	for rows.Next() {
		var m models.MatchResult
		err := rows.Scan(
			&m.Chunk.ID,
			&m.Chunk.SourceDoc,
			&m.Chunk.StartOffset,
			&m.Chunk.EndOffset,
			&m.Chunk.Text,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m.Similarity = lexical.Cosine(qv, lexical.Vectorize(m.Chunk.Text))
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (pg *PgIndex) Remove(filename string) error {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	ctx := context.Background()
	sql := fmt.Sprintf("DELETE FROM %s_documents WHERE filename = $1", pg.config.TableName)
	if _, err := pg.pool.Exec(ctx, sql, filename); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}
	return nil
}

func (pg *PgIndex) Stats() models.IndexStats {
	ctx := context.Background()
	stats := models.IndexStats{PerDocChunkCounts: make(map[string]int)}

	sql := fmt.Sprintf("SELECT filename, chunk_count FROM %s_documents ORDER BY seq", pg.config.TableName)
	rows, err := pg.pool.Query(ctx, sql)
	if err != nil {
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var filename string
		var count int
		if err := rows.Scan(&filename, &count); err != nil {
			return stats
		}
		stats.PerDocChunkCounts[filename] = count
		stats.TotalDocs++
		stats.TotalChunks += count
	}
	return stats
}

func (pg *PgIndex) Manifest() models.LibraryManifest {
	ctx := context.Background()
	var m models.LibraryManifest

	sql := fmt.Sprintf(`
		SELECT filename, content_hash, chunk_count, uploaded_at
		FROM %s_documents ORDER BY seq`, pg.config.TableName)
	rows, err := pg.pool.Query(ctx, sql)
	if err != nil {
		return m
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.DocumentRecord
		if err := rows.Scan(&rec.Filename, &rec.ContentHash, &rec.ChunkCount, &rec.UploadedAt); err != nil {
			return m
		}
		m.Documents = append(m.Documents, rec)
	}
	return m
}

func (pg *PgIndex) Close() error {
	if pg.pool != nil {
		pg.pool.Close()
	}
	return nil
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
