package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/storage/badger"
	"github.com/ternarybob/scientia/internal/storage/milvus"
)

// NewVectorStorage creates the configured vector backend. The embedded
// badger backend reuses the document database connection; the milvus
// backend dials the configured endpoint.
func NewVectorStorage(ctx context.Context, db *badger.BadgerDB, config *common.Config, logger arbor.ILogger) (interfaces.VectorStorage, error) {
	switch config.Vector.Backend {
	case "badger", "":
		return badger.NewVectorStorage(db, logger)
	case "milvus":
		return milvus.NewVectorStorage(ctx, &config.Vector, logger)
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s (supported: badger, milvus)", config.Vector.Backend)
	}
}
