package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
	"github.com/ternarybob/scientia/internal/services/chunker"
	"github.com/ternarybob/scientia/internal/services/keyword"
)

type memDocStore struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string]*models.Document)}
}

func (m *memDocStore) SaveDocument(doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *memDocStore) GetDocument(id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	copied := *doc
	return &copied, nil
}

func (m *memDocStore) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *memDocStore) ListDocuments(limit, offset int) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Document
	for _, doc := range m.docs {
		copied := *doc
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memDocStore) CountDocuments() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

func (m *memDocStore) Close() error { return nil }

type memVectorStore struct {
	mu       sync.Mutex
	points   map[string][]float32
	payloads map[string]map[string]any
	failures int
	addCalls int
}

func newMemVectorStore() *memVectorStore {
	return &memVectorStore{
		points:   make(map[string][]float32),
		payloads: make(map[string]map[string]any),
	}
}

func (m *memVectorStore) AddPoints(_ context.Context, ids []string, vectors [][]float32, payloads []map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if m.addCalls <= m.failures {
		return &models.BackendError{Op: "add_points", Retryable: true, Err: errors.New("transient")}
	}
	for i, id := range ids {
		m.points[id] = vectors[i]
		if payloads != nil {
			m.payloads[id] = payloads[i]
		}
	}
	return nil
}

func (m *memVectorStore) Query(_ context.Context, _ []float32, topK int, _ map[string]any) ([]models.ScoredPoint, error) {
	return nil, nil
}

func (m *memVectorStore) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
		delete(m.payloads, id)
	}
	return nil
}

func (m *memVectorStore) Stats(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.points)), nil
}

func (m *memVectorStore) Close() error { return nil }

type countingEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
	dim    int
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if e.failOn != "" && strings.Contains(text, e.failOn) {
			return nil, &models.EmbeddingError{Attempts: 3, Err: errors.New("provider down")}
		}
		v := make([]float32, e.dim)
		v[0] = float32(len(text))
		out[i] = v
	}
	return out, nil
}

func (e *countingEmbedder) Dimension() int                     { return e.dim }
func (e *countingEmbedder) IsAvailable(_ context.Context) bool { return true }

// cancellingEmbedder cancels the ingest context mid-call but still hands
// back valid vectors, mimicking a caller abort racing a slow provider.
type cancellingEmbedder struct {
	cancel context.CancelFunc
	dim    int
}

func (e *cancellingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.cancel()
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

func (e *cancellingEmbedder) Dimension() int                     { return e.dim }
func (e *cancellingEmbedder) IsAvailable(_ context.Context) bool { return true }

type fixture struct {
	pipeline *Pipeline
	docs     *memDocStore
	vectors  *memVectorStore
	keywords interfaces.KeywordIndex
	embedder *countingEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs := newMemDocStore()
	vectors := newMemVectorStore()
	keywords := keyword.NewService(0, 0, nil)
	embedder := &countingEmbedder{dim: 4}
	cfg := &common.ChunkingConfig{Strategy: interfaces.StrategyFixed, Size: 40, Overlap: 5, MaxChunkSize: 60}

	return &fixture{
		pipeline: NewPipeline(nil, chunker.NewService(embedder, nil, nil), embedder, vectors, docs, keywords, cfg, nil),
		docs:     docs,
		vectors:  vectors,
		keywords: keywords,
		embedder: embedder,
	}
}

func TestIngestOneCommits(t *testing.T) {
	f := newFixture(t)

	result := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:       "doc_1",
		Content:  "Mammals are warm-blooded vertebrates. Most mammals give live birth.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})

	require.True(t, result.OK(), "error: %s", result.Error)
	assert.Equal(t, "doc_1", result.DocumentID)
	assert.Equal(t, 1, result.Version)
	assert.GreaterOrEqual(t, result.ChunkCount, 2)
	assert.LessOrEqual(t, result.ChunkCount, 3)

	// Chunk count, vector count, and stored chunks all agree.
	count, err := f.vectors.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(result.ChunkCount), count)

	doc, err := f.docs.GetDocument("doc_1")
	require.NoError(t, err)
	assert.Len(t, doc.Chunks, result.ChunkCount)
	assert.Equal(t, result.ChunkCount, doc.ChunkCount())

	// createdAt is auto-filled when absent.
	assert.NotEmpty(t, doc.Metadata[models.MetaCreatedAt])

	// Chunks are keyword searchable.
	hits := f.keywords.Search("mammals", 10)
	assert.NotEmpty(t, hits)
}

func TestIngestOneGeneratesID(t *testing.T) {
	f := newFixture(t)

	result := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		Content:  "Some document content here.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})

	require.True(t, result.OK())
	assert.True(t, strings.HasPrefix(result.DocumentID, "doc_"))
}

func TestIngestOneRequiresSource(t *testing.T) {
	f := newFixture(t)

	result := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:      "doc_1",
		Content: "Content without source metadata.",
	})

	assert.False(t, result.OK())
	assert.Equal(t, models.StageExtracting, result.FailedStage)
	assert.Contains(t, result.Error, "source")
}

func TestIngestOneEmbeddingFailureIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.embedder.failOn = "quantum"

	result := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:       "doc_1",
		Content:  "A short note on quantum computing.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})

	assert.False(t, result.OK())
	assert.Equal(t, models.StageEmbedding, result.FailedStage)

	// Nothing was committed.
	count, _ := f.vectors.Stats(context.Background())
	assert.Zero(t, count)
	_, err := f.docs.GetDocument("doc_1")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestIngestOneCancelledAfterEmbeddingDoesNotCommit(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	embedder := &cancellingEmbedder{cancel: cancel, dim: 4}
	cfg := &common.ChunkingConfig{Strategy: interfaces.StrategyFixed, Size: 40, Overlap: 5, MaxChunkSize: 60}
	pipeline := NewPipeline(nil, chunker.NewService(nil, nil, nil), embedder, f.vectors, f.docs, f.keywords, cfg, nil)

	result := pipeline.IngestOne(ctx, models.RawDocument{
		ID:       "doc_1",
		Content:  "Mammals are warm-blooded vertebrates.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})

	// Even though the embedder delivered vectors, the cancellation is seen
	// before the backend write and nothing commits.
	assert.False(t, result.OK())
	assert.Equal(t, models.StageIndexing, result.FailedStage)
	assert.ErrorIs(t, result.Err, context.Canceled)

	assert.Zero(t, f.vectors.addCalls, "no backend write may follow cancellation")
	docCount, _ := f.docs.CountDocuments()
	assert.Zero(t, docCount)
	assert.Empty(t, f.keywords.Search("mammals", 10))
}

func TestFailedUpdateKeepsPriorVersion(t *testing.T) {
	f := newFixture(t)

	first := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:       "doc_1",
		Content:  "Mammals are warm-blooded vertebrates.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})
	require.True(t, first.OK())
	countBefore, err := f.vectors.Stats(context.Background())
	require.NoError(t, err)

	f.embedder.failOn = "quantum"
	second := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:       "doc_1",
		Content:  "A short note on quantum computing.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})
	assert.False(t, second.OK())
	assert.Equal(t, models.StageEmbedding, second.FailedStage)

	// The prior version survives intact and queryable.
	doc, err := f.docs.GetDocument("doc_1")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Contains(t, doc.Content, "Mammals")

	countAfter, err := f.vectors.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, countBefore, countAfter)

	assert.NotEmpty(t, f.keywords.Search("mammals", 10))
	assert.Empty(t, f.keywords.Search("quantum", 10))
}

func TestUpdateReplacesVectorsAndBumpsVersion(t *testing.T) {
	f := newFixture(t)

	long := strings.Repeat("Mammals are warm-blooded vertebrates. ", 4)
	first := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:       "doc_1",
		Content:  long,
		Metadata: map[string]any{models.MetaSource: "test"},
	})
	require.True(t, first.OK())
	require.Greater(t, first.ChunkCount, 1)

	// The replacement is shorter, so it produces fewer chunks; no orphan
	// vectors may survive.
	second := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:       "doc_1",
		Content:  "Quantum entanglement links particles.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})
	require.True(t, second.OK())
	assert.Equal(t, 2, second.Version)
	assert.Less(t, second.ChunkCount, first.ChunkCount)

	count, err := f.vectors.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(second.ChunkCount), count)

	// Keyword index reflects only the new content.
	assert.Empty(t, f.keywords.Search("mammals", 10))
	assert.NotEmpty(t, f.keywords.Search("entanglement", 10))
}

func TestDeleteDocumentIsIdempotent(t *testing.T) {
	f := newFixture(t)

	result := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:       "doc_1",
		Content:  "Mammals are warm-blooded vertebrates.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})
	require.True(t, result.OK())

	require.NoError(t, f.pipeline.DeleteDocument(context.Background(), "doc_1"))

	count, _ := f.vectors.Stats(context.Background())
	assert.Zero(t, count)
	docCount, _ := f.docs.CountDocuments()
	assert.Zero(t, docCount)
	assert.Empty(t, f.keywords.Search("mammals", 10))

	// Second delete of the same ID, and a delete of a never-seen ID, are
	// both no-ops.
	require.NoError(t, f.pipeline.DeleteDocument(context.Background(), "doc_1"))
	require.NoError(t, f.pipeline.DeleteDocument(context.Background(), "doc_never"))
}

func TestRetryableBackendErrorIsRetried(t *testing.T) {
	f := newFixture(t)
	f.vectors.failures = 2

	result := f.pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:       "doc_1",
		Content:  "Mammals are warm-blooded vertebrates.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})

	require.True(t, result.OK(), "error: %s", result.Error)
	assert.Equal(t, 3, f.vectors.addCalls)
}

func TestIngestBatchIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.embedder.failOn = "poison"

	raws := make([]models.RawDocument, 10)
	for i := range raws {
		content := fmt.Sprintf("Document number %d about mammals.", i)
		if i == 5 {
			content = "This poison document cannot be embedded."
		}
		raws[i] = models.RawDocument{
			ID:       fmt.Sprintf("doc_%d", i),
			Content:  content,
			Metadata: map[string]any{models.MetaSource: "test"},
		}
	}

	results := f.pipeline.IngestBatch(context.Background(), raws, 2)
	require.Len(t, results, 10)

	for i, result := range results {
		assert.Equal(t, fmt.Sprintf("doc_%d", i), result.DocumentID)
		if i == 5 {
			assert.False(t, result.OK())
			assert.Equal(t, models.StageEmbedding, result.FailedStage)
		} else {
			assert.True(t, result.OK(), "doc %d failed: %s", i, result.Error)
		}
	}

	docCount, _ := f.docs.CountDocuments()
	assert.Equal(t, 9, docCount)
}

func TestIngestWithoutEmbedderSkipsVectors(t *testing.T) {
	f := newFixture(t)
	cfg := &common.ChunkingConfig{Strategy: interfaces.StrategyFixed, Size: 40, Overlap: 5, MaxChunkSize: 60}
	pipeline := NewPipeline(nil, chunker.NewService(nil, nil, nil), nil, f.vectors, f.docs, f.keywords, cfg, nil)

	result := pipeline.IngestOne(context.Background(), models.RawDocument{
		ID:       "doc_1",
		Content:  "Mammals are warm-blooded vertebrates.",
		Metadata: map[string]any{models.MetaSource: "test"},
	})

	require.True(t, result.OK())
	count, _ := f.vectors.Stats(context.Background())
	assert.Zero(t, count)
	assert.NotEmpty(t, f.keywords.Search("mammals", 10))
}
