package chunker

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ternarybob/scientia/internal/models"
)

// chunkSemantic groups adjacent sentences by embedding similarity.
// Boundaries are placed where the cosine similarity between neighboring
// sentences falls into the lowest 30 percent of observed similarities,
// then groups are capped at maxChunkSize runes.
func (s *Service) chunkSemantic(ctx context.Context, text string, maxChunkSize int) ([]string, error) {
	if s.embedder == nil {
		return nil, &models.ConfigurationError{
			Field:  "chunking.strategy",
			Reason: "semantic chunking requires an embedding provider",
		}
	}

	sentences := s.splitter(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	if len(sentences) == 1 {
		return chunkSentences(sentences, maxChunkSize), nil
	}

	vectors, err := s.embedder.Embed(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embedding sentences for semantic chunking: %w", err)
	}
	if len(vectors) != len(sentences) {
		return nil, fmt.Errorf("embedding count mismatch: %d sentences, %d vectors", len(sentences), len(vectors))
	}

	similarities := make([]float64, len(sentences)-1)
	for i := 0; i < len(sentences)-1; i++ {
		similarities[i] = cosineSimilarity(vectors[i], vectors[i+1])
	}

	threshold := percentile(similarities, 0.30)

	s.logger.Debug().
		Int("sentences", len(sentences)).
		Float64("threshold", threshold).
		Msg("Semantic chunk boundaries computed")

	var groups []string
	start := 0
	for i, sim := range similarities {
		if sim <= threshold {
			groups = append(groups, joinSentences(sentences[start:i+1]))
			start = i + 1
		}
	}
	groups = append(groups, joinSentences(sentences[start:]))

	// Re-split any group that exceeds the size cap.
	var chunks []string
	for _, group := range groups {
		if len([]rune(group)) <= maxChunkSize {
			chunks = append(chunks, group)
			continue
		}
		chunks = append(chunks, chunkSentences(s.splitter(group), maxChunkSize)...)
	}
	return chunks, nil
}

func joinSentences(sentences []string) string {
	out := ""
	for i, sentence := range sentences {
		if i > 0 {
			out += " "
		}
		out += sentence
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// percentile returns the value at fraction p (0..1) of the sorted input.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	return sorted[idx]
}
