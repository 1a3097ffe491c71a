package interfaces

import (
	"context"

	"github.com/ternarybob/scientia/internal/models"
)

// VectorStorage is the uniform contract over heterogeneous vector index
// implementations. All operations are safe for concurrent use from
// multiple goroutines against the same handle.
//
// Adapters surface errors unmodified as models.BackendError with a
// Retryable hint where determinable; transient errors are retried by the
// caller, never inside the adapter.
type VectorStorage interface {
	// AddPoints upserts points; re-adding an existing ID overwrites it.
	AddPoints(ctx context.Context, ids []string, vectors [][]float32, payloads []map[string]any) error

	// Query returns the topK nearest points to vector. Filter is a simple
	// equality map translated to the backend's native filter syntax; an
	// empty filter means unrestricted.
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]models.ScoredPoint, error)

	// Delete removes points by ID. Idempotent: deleting a non-existent ID
	// is not an error.
	Delete(ctx context.Context, ids []string) error

	// Stats returns the number of stored points.
	Stats(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}
