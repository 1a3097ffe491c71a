package interfaces

import (
	"context"

	"github.com/ternarybob/scientia/internal/models"
)

// SearchOptions configures a hybrid search.
type SearchOptions struct {
	// TopK caps the number of fused results. Zero means the configured
	// default.
	TopK int

	// Filter is an equality match on chunk metadata, applied to the
	// vector branch natively and to fused results afterwards.
	Filter map[string]any

	// Alpha weights the semantic branch: 0 is pure keyword ranking, 1 is
	// pure semantic ranking. Negative means the configured default.
	Alpha float64
}

// KnowledgeService is the engine façade. It owns document versioning and
// coordinates chunking, embedding, vector and keyword indexing, fusion,
// and caching. Downstream callers need nothing else.
type KnowledgeService interface {
	// Add ingests a document and returns its ID (generated when the raw
	// document carries none).
	Add(ctx context.Context, raw models.RawDocument) (string, error)

	// AddBatch ingests documents with bounded concurrency. One document's
	// failure does not cancel its siblings; results are in input order.
	AddBatch(ctx context.Context, raws []models.RawDocument, maxConcurrency int) []models.IngestResult

	// Update replaces a document's content and metadata, re-chunks,
	// re-embeds, replaces its vectors, and increments its version.
	// All-or-nothing from the caller's perspective: a failed update
	// leaves the prior version intact and queryable.
	Update(ctx context.Context, docID, content string, metadata map[string]any) error

	// Delete removes the document, its chunks, vector records, and
	// keyword index entries. Idempotent.
	Delete(ctx context.Context, docID string) error

	// Search runs hybrid retrieval. When the embedding provider is
	// unavailable it degrades to keyword-only rather than failing, with
	// the Degraded flag set on the response.
	Search(ctx context.Context, query string, opts SearchOptions) (*models.SearchResponse, error)

	// Stats reports engine counters.
	Stats(ctx context.Context) (*models.KnowledgeStats, error)
}
