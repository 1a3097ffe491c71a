package interfaces

import "context"

// Chunk strategy names.
const (
	StrategyFixed    = "fixed"
	StrategySentence = "sentence"
	StrategySemantic = "semantic"
)

// ChunkParams tunes a chunking strategy. Size and Overlap apply to the
// fixed strategy; MaxChunkSize to the sentence and semantic strategies.
type ChunkParams struct {
	Size         int
	Overlap      int
	MaxChunkSize int
}

// Chunker splits extracted text into segments under a chosen strategy.
// Pure: no side effects, deterministic for identical inputs. An unknown
// strategy is a configuration error; empty input text yields an empty
// chunk list, not an error.
type Chunker interface {
	Chunk(ctx context.Context, text string, strategy string, params ChunkParams) ([]string, error)
}
