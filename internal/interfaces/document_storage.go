package interfaces

import "github.com/ternarybob/scientia/internal/models"

// DocumentStorage persists documents (id, content, metadata, chunks,
// version). Any key-value store satisfying the document lifecycle
// suffices; the concrete implementation is not part of the engine's
// public contract.
type DocumentStorage interface {
	SaveDocument(doc *models.Document) error
	GetDocument(id string) (*models.Document, error)

	// DeleteDocument is idempotent; deleting a missing document is not
	// an error.
	DeleteDocument(id string) error

	ListDocuments(limit, offset int) ([]*models.Document, error)
	CountDocuments() (int, error)
	Close() error
}
