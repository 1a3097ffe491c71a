package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Required metadata keys, validated at ingestion time.
const (
	MetaSource    = "source"
	MetaCreatedAt = "createdAt"
)

// Well-known optional metadata keys.
const (
	MetaTitle          = "title"
	MetaType           = "type"
	MetaCategory       = "category"
	MetaTags           = "tags"
	MetaAccessLevel    = "accessLevel"
	MetaOwner          = "owner"
	MetaChunkStrategy  = "chunkStrategy"
	MetaEmbeddingModel = "embeddingModel"
	MetaChunkCount     = "chunkCount"
	MetaVersion        = "version"
)

// Document is the unit of ingestion and versioning. Chunks are produced at
// ingestion time and replaced wholesale on update, never edited in place.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Chunks    []Chunk        `json:"chunks"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ChunkCount reads the previous chunk count recorded in metadata.
// Used to derive the vector point IDs of an earlier version during
// update and delete, even when the new chunk count differs.
func (d *Document) ChunkCount() int {
	if d == nil || d.Metadata == nil {
		return len(d.Chunks)
	}
	switch v := d.Metadata[MetaChunkCount].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return len(d.Chunks)
}

// Chunk is a contiguous span of a document's text, the unit of embedding
// and retrieval. Owned exclusively by its document.
type Chunk struct {
	DocumentID    string `json:"document_id"`
	Index         int    `json:"index"`
	Text          string `json:"text"`
	TokenEstimate int    `json:"token_estimate"`
}

// ID returns the composite chunk identifier "{documentId}_{index}".
// This is also the vector backend's point ID, which makes deletion and
// re-ingestion deterministic.
func (c *Chunk) ID() string {
	return ChunkID(c.DocumentID, c.Index)
}

// ChunkID builds the composite chunk identifier for a document and index.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

// SplitChunkID decomposes a composite chunk ID back into document ID and
// chunk index. The document ID itself may contain underscores, so the
// split happens at the last one.
func SplitChunkID(chunkID string) (documentID string, index int, err error) {
	pos := strings.LastIndex(chunkID, "_")
	if pos <= 0 || pos == len(chunkID)-1 {
		return "", 0, fmt.Errorf("malformed chunk id: %q", chunkID)
	}
	index, err = strconv.Atoi(chunkID[pos+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed chunk id: %q", chunkID)
	}
	return chunkID[:pos], index, nil
}

// EstimateTokens approximates the token count of a text span.
// Four characters per token is the usual rule of thumb for English prose.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// RawDocument is the ingestion pipeline input. Either Content is provided
// directly or FileRef points at a file for the extractor collaborator.
type RawDocument struct {
	ID       string         `json:"id"`
	FileRef  string         `json:"file_ref,omitempty"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// KnowledgeStats summarizes engine state across the document store,
// vector backend, keyword index, and query cache.
type KnowledgeStats struct {
	DocumentCount int       `json:"document_count"`
	ChunkCount    int       `json:"chunk_count"`
	VectorCount   int64     `json:"vector_count"`
	IndexedTerms  int       `json:"indexed_terms"`
	CacheEntries  int       `json:"cache_entries"`
	LastUpdated   time.Time `json:"last_updated"`
}
