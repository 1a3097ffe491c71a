// Package knowledge implements the engine façade coordinating ingestion,
// hybrid retrieval, fusion, and caching.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
	"github.com/ternarybob/scientia/internal/services/ingest"
	"github.com/ternarybob/scientia/internal/services/querycache"
	"github.com/ternarybob/scientia/internal/services/ranker"
)

// Service is the knowledge base façade. Downstream callers use it for the
// whole document lifecycle and for hybrid search; they never touch the
// vector backend, keyword index, or cache directly.
type Service struct {
	pipeline  *ingest.Pipeline
	embedder  interfaces.EmbeddingProvider
	vectors   interfaces.VectorStorage
	keywords  interfaces.KeywordIndex
	documents interfaces.DocumentStorage
	ranker    *ranker.Service
	cache     interfaces.QueryCache

	defaultTopK  int
	defaultAlpha float64

	logger arbor.ILogger
}

// NewService wires the façade. The embedder may be nil; the engine then
// serves keyword-only searches with the Degraded flag set.
func NewService(
	pipeline *ingest.Pipeline,
	embedder interfaces.EmbeddingProvider,
	vectors interfaces.VectorStorage,
	keywords interfaces.KeywordIndex,
	documents interfaces.DocumentStorage,
	rrf *ranker.Service,
	cache interfaces.QueryCache,
	cfg *common.SearchConfig,
	logger arbor.ILogger,
) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = common.DefaultTopK
	}
	return &Service{
		pipeline:     pipeline,
		embedder:     embedder,
		vectors:      vectors,
		keywords:     keywords,
		documents:    documents,
		ranker:       rrf,
		cache:        cache,
		defaultTopK:  topK,
		defaultAlpha: cfg.DefaultAlpha,
		logger:       logger,
	}
}

// Add ingests a document and returns its ID.
func (s *Service) Add(ctx context.Context, raw models.RawDocument) (string, error) {
	result := s.pipeline.IngestOne(ctx, raw)
	if !result.OK() {
		return "", fmt.Errorf("ingestion failed at stage %s: %w", result.FailedStage, result.Err)
	}
	return result.DocumentID, nil
}

// AddBatch ingests documents with bounded concurrency; one result per
// input, in input order.
func (s *Service) AddBatch(ctx context.Context, raws []models.RawDocument, maxConcurrency int) []models.IngestResult {
	return s.pipeline.IngestBatch(ctx, raws, maxConcurrency)
}

// Update replaces a document's content and metadata. The document must
// already exist; the replacement is re-chunked, re-embedded, and takes
// over the version counter. A failure leaves the prior version intact.
func (s *Service) Update(ctx context.Context, docID, content string, metadata map[string]any) error {
	prior, err := s.documents.GetDocument(docID)
	if err != nil {
		return fmt.Errorf("update of %s: %w", docID, err)
	}

	merged := make(map[string]any, len(prior.Metadata)+len(metadata))
	for k, v := range prior.Metadata {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}

	result := s.pipeline.IngestOne(ctx, models.RawDocument{
		ID:       docID,
		Content:  content,
		Metadata: merged,
	})
	if !result.OK() {
		return fmt.Errorf("update failed at stage %s: %w", result.FailedStage, result.Err)
	}
	return nil
}

// Delete removes a document and all derived state. Idempotent.
func (s *Service) Delete(ctx context.Context, docID string) error {
	return s.pipeline.DeleteDocument(ctx, docID)
}

// Search runs hybrid retrieval: keyword and vector branches in parallel,
// fused with weighted reciprocal rank fusion. A failed semantic branch
// degrades the response to keyword-only rather than erroring; only both
// branches failing is an error. Responses are cached.
func (s *Service) Search(ctx context.Context, query string, opts interfaces.SearchOptions) (*models.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &models.SearchResponse{Query: query, Results: []models.RankedResult{}}, nil
	}

	if opts.TopK <= 0 {
		opts.TopK = s.defaultTopK
	}
	if opts.Alpha < 0 {
		opts.Alpha = s.defaultAlpha
	}
	if opts.Alpha > 1 {
		opts.Alpha = 1
	}

	key := querycache.Key(query, opts)
	if cached, ok := s.cache.Get(key); ok {
		hit := *cached
		hit.Cached = true
		return &hit, nil
	}

	resp, err := s.search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, resp)
	return resp, nil
}

func (s *Service) search(ctx context.Context, query string, opts interfaces.SearchOptions) (*models.SearchResponse, error) {
	degraded := false

	// The semantic branch needs a query embedding first. An unavailable
	// provider downgrades to keyword-only instead of failing the search.
	var queryVector []float32
	if s.embedder != nil && opts.Alpha > 0 {
		vectors, err := s.embedder.Embed(ctx, []string{query})
		if err != nil {
			s.logger.Warn().Err(err).Msg("Query embedding failed, degrading to keyword-only")
			degraded = true
		} else {
			queryVector = vectors[0]
		}
	} else if opts.Alpha > 0 {
		degraded = true
	}

	var (
		wg          sync.WaitGroup
		keywordHits []models.ScoredID
		vectorHits  []models.ScoredPoint
		vectorErr   error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		keywordHits = s.keywords.Search(query, opts.TopK)
	}()

	if queryVector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectorHits, vectorErr = s.vectors.Query(ctx, queryVector, opts.TopK, opts.Filter)
		}()
	}
	wg.Wait()

	if vectorErr != nil {
		s.logger.Warn().Err(vectorErr).Msg("Vector branch failed, degrading to keyword-only")
		degraded = true
		vectorHits = nil
	}

	alpha := opts.Alpha
	if degraded {
		alpha = 0
	}

	semanticIDs := make([]models.ScoredID, len(vectorHits))
	payloadByID := make(map[string]map[string]any, len(vectorHits))
	for i, hit := range vectorHits {
		semanticIDs[i] = models.ScoredID{ID: hit.ID, Score: hit.Score}
		payloadByID[hit.ID] = hit.Payload
	}

	fused := s.ranker.Fuse(keywordHits, semanticIDs, alpha, opts.TopK)
	results := s.enrich(fused, payloadByID)
	results = filterResults(results, opts.Filter)
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	return &models.SearchResponse{
		Query:    query,
		Results:  results,
		Degraded: degraded,
	}, nil
}

// enrich fills text and metadata onto fused hits. Vector hits carry their
// payload; keyword-only hits resolve through the document store.
func (s *Service) enrich(fused []models.RankedResult, payloads map[string]map[string]any) []models.RankedResult {
	docCache := make(map[string]*models.Document)
	out := make([]models.RankedResult, 0, len(fused))

	for _, hit := range fused {
		if payload, ok := payloads[hit.ChunkID]; ok && payload != nil {
			if text, ok := payload["text"].(string); ok {
				hit.Text = text
			}
			hit.Metadata = payload
			out = append(out, hit)
			continue
		}

		docID, index, err := models.SplitChunkID(hit.ChunkID)
		if err != nil {
			s.logger.Warn().Str("chunk_id", hit.ChunkID).Msg("Skipping malformed chunk ID")
			continue
		}
		doc, ok := docCache[docID]
		if !ok {
			loaded, err := s.documents.GetDocument(docID)
			if err != nil {
				if !errors.Is(err, models.ErrDocumentNotFound) {
					s.logger.Warn().Err(err).Str("document_id", docID).Msg("Failed to resolve keyword hit")
				}
				continue
			}
			doc = loaded
			docCache[docID] = doc
		}
		if index < 0 || index >= len(doc.Chunks) {
			continue
		}
		hit.Text = doc.Chunks[index].Text
		hit.Metadata = doc.Metadata
		out = append(out, hit)
	}
	return out
}

// filterResults applies the equality filter to hits from the keyword
// branch; the vector branch already filtered natively, and re-applying
// equality there is a no-op.
func filterResults(results []models.RankedResult, filter map[string]any) []models.RankedResult {
	if len(filter) == 0 {
		return results
	}
	out := results[:0]
	for _, r := range results {
		match := true
		for k, want := range filter {
			got, ok := r.Metadata[k]
			if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
				match = false
				break
			}
		}
		if match {
			out = append(out, r)
		}
	}
	return out
}

// Stats reports document, chunk, vector, term, and cache counters.
func (s *Service) Stats(ctx context.Context) (*models.KnowledgeStats, error) {
	docCount, err := s.documents.CountDocuments()
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}

	var vectorCount int64
	if s.vectors != nil {
		vectorCount, err = s.vectors.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("vector backend stats: %w", err)
		}
	}

	chunkCount, termCount := s.keywords.Stats()

	return &models.KnowledgeStats{
		DocumentCount: docCount,
		ChunkCount:    chunkCount,
		VectorCount:   vectorCount,
		IndexedTerms:  termCount,
		CacheEntries:  s.cache.Len(),
		LastUpdated:   time.Now().UTC(),
	}, nil
}

// RebuildKeywordIndex reloads every stored document's chunks into the
// keyword index. Run at startup and by the maintenance scheduler; the
// index itself is never persisted.
func (s *Service) RebuildKeywordIndex() error {
	docs, err := s.documents.ListDocuments(0, 0)
	if err != nil {
		return fmt.Errorf("listing documents for index rebuild: %w", err)
	}

	var chunks []models.Chunk
	for _, doc := range docs {
		chunks = append(chunks, doc.Chunks...)
	}
	s.keywords.Index(chunks)

	s.logger.Info().
		Int("documents", len(docs)).
		Int("chunks", len(chunks)).
		Msg("Keyword index rebuilt")
	return nil
}

var _ interfaces.KnowledgeService = (*Service)(nil)
