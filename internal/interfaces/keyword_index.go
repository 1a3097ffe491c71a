package interfaces

import "github.com/ternarybob/scientia/internal/models"

// KeywordIndex is an in-process inverted index with BM25 scoring over
// chunk text. It tolerates concurrent reads during writes; lock
// granularity must not block readers on an unrelated document's ingest.
type KeywordIndex interface {
	// Index replaces the whole index with the given chunks. Idempotent
	// when called again with the same data.
	Index(chunks []models.Chunk)

	// IndexDocument replaces the indexed chunks of a single document.
	IndexDocument(documentID string, chunks []models.Chunk)

	// RemoveDocument drops all of a document's chunks from the index.
	// Removing an unknown document is a no-op.
	RemoveDocument(documentID string)

	// Search scores indexed chunks against the query and returns the topK
	// best, highest score first.
	Search(query string, topK int) []models.ScoredID

	// Stats returns the number of indexed chunks and distinct terms.
	Stats() (chunks int, terms int)
}
