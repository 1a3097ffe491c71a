package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/handlers"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/services/chunker"
	"github.com/ternarybob/scientia/internal/services/embeddings"
	"github.com/ternarybob/scientia/internal/services/extract"
	"github.com/ternarybob/scientia/internal/services/ingest"
	"github.com/ternarybob/scientia/internal/services/keyword"
	"github.com/ternarybob/scientia/internal/services/knowledge"
	"github.com/ternarybob/scientia/internal/services/querycache"
	"github.com/ternarybob/scientia/internal/services/ranker"
	"github.com/ternarybob/scientia/internal/services/scheduler"
	"github.com/ternarybob/scientia/internal/storage"
	"github.com/ternarybob/scientia/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB              *badger.BadgerDB
	DocumentStorage interfaces.DocumentStorage
	VectorStorage   interfaces.VectorStorage

	// Engine services
	Embedder         interfaces.EmbeddingProvider
	KeywordIndex     interfaces.KeywordIndex
	QueryCache       interfaces.QueryCache
	Pipeline         *ingest.Pipeline
	KnowledgeService *knowledge.Service
	Scheduler        *scheduler.Scheduler

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	DocumentHandler *handlers.DocumentHandler
	SearchHandler   *handlers.SearchHandler
}

// New initializes storage, the embedding provider, the retrieval
// services, and the HTTP handlers. Fails fast on configuration errors
// such as an embedding dimension that does not match the vector backend.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	// Storage
	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.DB = db
	a.DocumentStorage = badger.NewDocumentStorage(db, logger)

	vectors, err := storage.NewVectorStorage(ctx, db, config, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize vector backend: %w", err)
	}
	a.VectorStorage = vectors

	// Embedding provider (optional; "none" runs keyword-only)
	if config.Embedding.Provider == "gemini" {
		gemini, err := embeddings.NewGeminiProvider(ctx, &config.Embedding, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
		}
		a.Embedder = embeddings.NewService(gemini, config.Embedding.RateLimit, config.Embedding.MaxRetries, logger)

		if a.Embedder.Dimension() != config.Vector.Dimension {
			a.Close()
			return nil, fmt.Errorf("embedding dimension %d does not match vector backend dimension %d",
				a.Embedder.Dimension(), config.Vector.Dimension)
		}
	} else {
		logger.Warn().Msg("No embedding provider configured; semantic search is unavailable")
	}

	// Retrieval services
	a.KeywordIndex = keyword.NewService(config.Search.BM25K1, config.Search.BM25B, logger)
	a.QueryCache = querycache.NewService(config.Cache.Capacity, config.Cache.TTLDuration(), logger)

	chunkSvc := chunker.NewService(a.Embedder, nil, logger)
	extractor := extract.NewPlainTextExtractor(logger)

	a.Pipeline = ingest.NewPipeline(
		extractor,
		chunkSvc,
		a.Embedder,
		a.VectorStorage,
		a.DocumentStorage,
		a.KeywordIndex,
		&config.Chunking,
		logger,
	)

	a.KnowledgeService = knowledge.NewService(
		a.Pipeline,
		a.Embedder,
		a.VectorStorage,
		a.KeywordIndex,
		a.DocumentStorage,
		ranker.NewService(config.Search.RRFConstant),
		a.QueryCache,
		&config.Search,
		logger,
	)

	// The keyword index lives in memory only; rebuild it from the
	// document store on every start.
	if err := a.KnowledgeService.RebuildKeywordIndex(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to rebuild keyword index: %w", err)
	}

	// Maintenance scheduler
	if config.Processing.Enabled {
		a.Scheduler = scheduler.NewScheduler(a.KnowledgeService, a.QueryCache, logger)
		if err := a.Scheduler.Start(config.Processing.Schedule); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to start maintenance scheduler: %w", err)
		}
	}

	// HTTP handlers
	a.APIHandler = handlers.NewAPIHandler(logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.KnowledgeService, a.DocumentStorage, config.Ingest.MaxConcurrency, logger)
	a.SearchHandler = handlers.NewSearchHandler(a.KnowledgeService, logger)

	logger.Info().
		Str("vector_backend", config.Vector.Backend).
		Str("embedding_provider", config.Embedding.Provider).
		Msg("Application initialized")

	return a, nil
}

// Close releases storage and backend resources.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.VectorStorage != nil {
		if err := a.VectorStorage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close vector backend")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
