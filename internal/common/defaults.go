// Package common provides shared configuration, logging, and utilities.
package common

import "time"

// Default tuning values. Every one of them is overridable via config.
const (
	DefaultServerPort = 8505

	// Chunking
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMaxChunkSize = 1200

	// Hybrid search
	DefaultTopK        = 10
	DefaultAlpha       = 0.5
	DefaultRRFConstant = 60
	DefaultBM25K1      = 1.5
	DefaultBM25B       = 0.75

	// Query cache
	DefaultCacheCapacity = 512
	DefaultCacheTTL      = 5 * time.Minute

	// Ingestion
	DefaultIngestConcurrency = 4

	// Embedding provider
	DefaultVectorDimension    = 768
	DefaultEmbeddingModel     = "gemini-embedding-001"
	DefaultEmbeddingRetries   = 3
	DefaultEmbeddingRateLimit = 5.0 // requests per second
)
