package interfaces

import "context"

// EmbeddingProvider generates vector embeddings for batches of text.
// Implementations must return exactly one vector per input text, in input
// order, or an error. Network-bound and fallible; callers own retry policy.
type EmbeddingProvider interface {
	// Embed returns one fixed-dimension vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the provider's output vector size.
	Dimension() int

	// IsAvailable checks whether the provider can currently serve requests.
	IsAvailable(ctx context.Context) bool
}
