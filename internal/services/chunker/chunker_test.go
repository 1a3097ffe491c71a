package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
)

type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := s.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int                     { return 3 }
func (s *stubEmbedder) IsAvailable(_ context.Context) bool { return true }

func TestChunkFixedReconstruction(t *testing.T) {
	svc := NewService(nil, nil, nil)

	text := "The quick brown fox jumps over the lazy dog near the riverbank at dawn."
	size, overlap := 20, 5

	chunks, err := svc.Chunk(context.Background(), text, interfaces.StrategyFixed, interfaces.ChunkParams{Size: size, Overlap: overlap})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Dropping the overlapping prefix of every chunk after the first
	// reconstructs the original text.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		runes := []rune(c)
		rebuilt.WriteString(string(runes[overlap:]))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkFixedShortInput(t *testing.T) {
	svc := NewService(nil, nil, nil)

	chunks, err := svc.Chunk(context.Background(), "short", interfaces.StrategyFixed, interfaces.ChunkParams{Size: 100, Overlap: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, chunks)
}

func TestChunkFixedMammalsScenario(t *testing.T) {
	svc := NewService(nil, nil, nil)

	text := "Mammals are warm-blooded vertebrates. Most mammals give live birth."
	chunks, err := svc.Chunk(context.Background(), text, interfaces.StrategyFixed, interfaces.ChunkParams{Size: 40, Overlap: 5})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(chunks), 2)
	assert.LessOrEqual(t, len(chunks), 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 40)
	}
}

func TestChunkEmptyText(t *testing.T) {
	svc := NewService(nil, nil, nil)

	chunks, err := svc.Chunk(context.Background(), "", interfaces.StrategyFixed, interfaces.ChunkParams{Size: 100, Overlap: 0})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkFixedInvalidParams(t *testing.T) {
	svc := NewService(nil, nil, nil)

	_, err := svc.Chunk(context.Background(), "text", interfaces.StrategyFixed, interfaces.ChunkParams{Size: 10, Overlap: 10})
	require.Error(t, err)

	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestChunkUnknownStrategy(t *testing.T) {
	svc := NewService(nil, nil, nil)

	_, err := svc.Chunk(context.Background(), "text", "recursive", interfaces.ChunkParams{Size: 10, Overlap: 0})
	require.Error(t, err)

	var cfgErr *models.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "recursive")
}

func TestSplitSentences(t *testing.T) {
	sentences := SplitSentences("First sentence. Second one! Third? Trailing fragment")
	assert.Equal(t, []string{"First sentence.", "Second one!", "Third?", "Trailing fragment"}, sentences)
}

func TestChunkSentenceGreedyPacking(t *testing.T) {
	svc := NewService(nil, nil, nil)

	text := "One two three. Four five six. Seven eight nine."
	chunks, err := svc.Chunk(context.Background(), text, interfaces.StrategySentence, interfaces.ChunkParams{MaxChunkSize: 32})
	require.NoError(t, err)

	assert.Equal(t, []string{"One two three. Four five six.", "Seven eight nine."}, chunks)
}

func TestChunkSentenceOversizeKeptWhole(t *testing.T) {
	svc := NewService(nil, nil, nil)

	long := strings.Repeat("word ", 30) + "end."
	chunks, err := svc.Chunk(context.Background(), long, interfaces.StrategySentence, interfaces.ChunkParams{MaxChunkSize: 20})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Greater(t, len(chunks[0]), 20)
}

func TestChunkSemanticRequiresEmbedder(t *testing.T) {
	svc := NewService(nil, nil, nil)

	_, err := svc.Chunk(context.Background(), "Some text here.", interfaces.StrategySemantic, interfaces.ChunkParams{MaxChunkSize: 100})
	require.Error(t, err)

	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestChunkSemanticSplitsAtLowSimilarity(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Cats purr.":          {1, 0, 0},
		"Kittens are cats.":   {0.98, 0.2, 0},
		"Stocks fell today.":  {0, 1, 0},
		"Markets were down.":  {0.1, 0.97, 0},
	}}
	svc := NewService(embedder, nil, nil)

	text := "Cats purr. Kittens are cats. Stocks fell today. Markets were down."
	chunks, err := svc.Chunk(context.Background(), text, interfaces.StrategySemantic, interfaces.ChunkParams{MaxChunkSize: 500})
	require.NoError(t, err)

	// One embedding call covers all sentences.
	assert.Equal(t, 1, embedder.calls)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Cats purr. Kittens are cats.", chunks[0])
	assert.Equal(t, "Stocks fell today. Markets were down.", chunks[1])
}

func TestChunkDeterministic(t *testing.T) {
	svc := NewService(nil, nil, nil)
	text := "Alpha beta gamma delta epsilon zeta eta theta iota kappa."
	params := interfaces.ChunkParams{Size: 15, Overlap: 3}

	first, err := svc.Chunk(context.Background(), text, interfaces.StrategyFixed, params)
	require.NoError(t, err)
	second, err := svc.Chunk(context.Background(), text, interfaces.StrategyFixed, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
