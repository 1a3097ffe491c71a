// Package chunker splits extracted text into retrieval-sized segments.
package chunker

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
)

// SentenceSplitter breaks text into sentences. A naive punctuation-based
// fallback is used when none is injected.
type SentenceSplitter func(text string) []string

// Service dispatches to the configured chunking strategy. Chunking is
// pure: deterministic for identical inputs, no side effects. The semantic
// strategy additionally needs the embedding provider for sentence-level
// embeddings.
type Service struct {
	embedder interfaces.EmbeddingProvider
	splitter SentenceSplitter
	logger   arbor.ILogger
}

// NewService creates a chunker. The embedder may be nil when the semantic
// strategy is not used; the splitter may be nil to use the fallback.
func NewService(embedder interfaces.EmbeddingProvider, splitter SentenceSplitter, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	if splitter == nil {
		splitter = SplitSentences
	}
	return &Service{
		embedder: embedder,
		splitter: splitter,
		logger:   logger,
	}
}

// Chunk splits text under the named strategy. Empty input returns an
// empty chunk list, not an error. An unknown strategy is a configuration
// error with no partial result.
func (s *Service) Chunk(ctx context.Context, text string, strategy string, params interfaces.ChunkParams) ([]string, error) {
	if text == "" {
		return nil, nil
	}

	switch strategy {
	case interfaces.StrategyFixed:
		return chunkFixed(text, params.Size, params.Overlap)
	case interfaces.StrategySentence:
		return chunkSentences(s.splitter(text), params.MaxChunkSize), nil
	case interfaces.StrategySemantic:
		return s.chunkSemantic(ctx, text, params.MaxChunkSize)
	default:
		return nil, &models.ConfigurationError{
			Field:  "chunking.strategy",
			Reason: fmt.Sprintf("unknown strategy %q", strategy),
		}
	}
}

var _ interfaces.Chunker = (*Service)(nil)
