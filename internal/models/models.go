package models

import "time"

// EntityLabel classifies an extracted domain entity.
type EntityLabel string

const (
	LabelMaterial      EntityLabel = "MATERIAL"
	LabelMeasure       EntityLabel = "MEASURE"
	LabelEquipment     EntityLabel = "EQUIPMENT"
	LabelInstallation  EntityLabel = "INSTALLATION"
	LabelStandard      EntityLabel = "STANDARD"
	LabelLocation      EntityLabel = "LOCATION"
	LabelSpecification EntityLabel = "SPECIFICATION"
)

// Status is the final disposition of an analyzed infraction.
type Status string

const (
	StatusRepealable      Status = "REPEALABLE"
	StatusValidInfraction Status = "VALID_INFRACTION"
	StatusReviewRequired  Status = "REVIEW_REQUIRED"
)

// NumericVerdict is the outcome of comparing an infraction measurement
// against the measurement stated in the matched specification text.
type NumericVerdict string

const (
	VerdictSatisfies     NumericVerdict = "SATISFIES_SPEC"
	VerdictViolates      NumericVerdict = "VIOLATES_SPEC"
	VerdictIndeterminate NumericVerdict = "INDETERMINATE"
)

// IngestMode controls how a document is merged into the spec library.
type IngestMode string

const (
	ModeAppend  IngestMode = "append"
	ModeReplace IngestMode = "replace"
)

// SpecDocument identifies one ingested specification document.
// Identity is the SHA-256 content hash, not the filename.
type SpecDocument struct {
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ChunkCount  int       `json:"chunk_count"`
}

// SpecChunk is one overlapping word window of a document, the atomic unit
// of indexing. Offsets are word indexes into the source document, not byte
// offsets. Immutable once created.
type SpecChunk struct {
	ID          string    `json:"id"`
	SourceDoc   string    `json:"source_doc"`
	Text        string    `json:"text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// Entity is a labeled span extracted from infraction or specification text.
// MEASURE entities carry a parsed value and normalized unit when one could
// be read out of the span.
type Entity struct {
	Label        EntityLabel `json:"label"`
	Text         string      `json:"text"`
	NumericValue *float64    `json:"numeric_value,omitempty"`
	Unit         string      `json:"unit,omitempty"`
}

// MatchResult pairs a chunk with its similarity to a query, in [0,1].
type MatchResult struct {
	Chunk      SpecChunk `json:"chunk"`
	Similarity float64   `json:"similarity"`
}

// NumericComparison records the measurement comparison behind a verdict so
// a reviewer can audit it.
type NumericComparison struct {
	Verdict        NumericVerdict `json:"verdict"`
	InfractionText string         `json:"infraction_text,omitempty"`
	SpecText       string         `json:"spec_text,omitempty"`
	Relation       string         `json:"relation,omitempty"`
	Detail         string         `json:"detail,omitempty"`
}

// AnalysisResult is the structured outcome of analyzing one infraction.
// It is produced per call and never persisted by the engine.
type AnalysisResult struct {
	InfractionText string         `json:"infraction_text"`
	Entities       []Entity       `json:"entities"`
	TopMatches     []MatchResult  `json:"top_matches"`
	Confidence     float64        `json:"confidence"`
	Status         Status         `json:"status"`
	NumericVerdict NumericVerdict `json:"numeric_verdict"`
	Degraded       bool           `json:"degraded"`
	Reasoning      string         `json:"reasoning"`
}

// IngestResult reports what one ingest call did.
type IngestResult struct {
	Filename    string `json:"filename"`
	ChunksAdded int    `json:"chunks_added"`
	TotalChunks int    `json:"total_chunks"`
	Skipped     bool   `json:"skipped"`
}

// IndexStats summarizes the current index contents.
type IndexStats struct {
	TotalDocs         int            `json:"total_docs"`
	TotalChunks       int            `json:"total_chunks"`
	PerDocChunkCounts map[string]int `json:"per_doc_chunk_counts"`
}

// DocumentRecord is the manifest entry for one document. It exposes
// bookkeeping only, never chunk text or vectors.
type DocumentRecord struct {
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// LibraryManifest lists every ingested document in insertion order.
type LibraryManifest struct {
	Documents []DocumentRecord `json:"documents"`
}
