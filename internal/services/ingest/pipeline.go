// Package ingest runs documents through the extraction, chunking,
// embedding, and indexing pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
	"github.com/ternarybob/scientia/internal/services/workers"
)

const (
	backendMaxAttempts = 3
	backendRetryDelay  = 250 * time.Millisecond
)

// Pipeline moves a document through extracting, chunking, embedding, and
// indexing to committed. Any stage failure is terminal for that document
// and reported with the stage it failed at; in batch mode the failure is
// isolated to its document.
type Pipeline struct {
	extractor interfaces.Extractor
	chunker   interfaces.Chunker
	embedder  interfaces.EmbeddingProvider
	vectors   interfaces.VectorStorage
	documents interfaces.DocumentStorage
	keywords  interfaces.KeywordIndex

	strategy string
	params   interfaces.ChunkParams

	logger arbor.ILogger
}

// NewPipeline wires the pipeline's collaborators. The embedder may be nil
// to run keyword-only: documents are stored and keyword-indexed without
// vectors.
func NewPipeline(
	extractor interfaces.Extractor,
	chunker interfaces.Chunker,
	embedder interfaces.EmbeddingProvider,
	vectors interfaces.VectorStorage,
	documents interfaces.DocumentStorage,
	keywords interfaces.KeywordIndex,
	cfg *common.ChunkingConfig,
	logger arbor.ILogger,
) *Pipeline {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		documents: documents,
		keywords:  keywords,
		strategy:  cfg.Strategy,
		params: interfaces.ChunkParams{
			Size:         cfg.Size,
			Overlap:      cfg.Overlap,
			MaxChunkSize: cfg.MaxChunkSize,
		},
		logger: logger,
	}
}

// IngestOne runs a single document through the pipeline. A zero-ID input
// gets a generated document ID; re-ingesting an existing ID replaces the
// prior version and increments the version counter.
func (p *Pipeline) IngestOne(ctx context.Context, raw models.RawDocument) models.IngestResult {
	docID := raw.ID
	if docID == "" {
		docID = common.NewDocumentID()
	}

	fail := func(stage models.IngestStage, err error) models.IngestResult {
		p.logger.Warn().
			Str("document_id", docID).
			Str("stage", string(stage)).
			Err(err).
			Msg("Ingestion failed")
		return models.IngestResult{
			DocumentID:  docID,
			Stage:       models.StageFailed,
			FailedStage: stage,
			Error:       err.Error(),
			Err:         err,
		}
	}

	// Extracting
	content := raw.Content
	metadata := cloneMetadata(raw.Metadata)
	if content == "" && raw.FileRef != "" {
		text, extracted, err := p.extractor.Extract(ctx, raw.FileRef)
		if err != nil {
			return fail(models.StageExtracting, &models.ExtractionError{DocumentID: docID, Err: err})
		}
		content = text
		for k, v := range extracted {
			if _, set := metadata[k]; !set {
				metadata[k] = v
			}
		}
	}
	if content == "" {
		return fail(models.StageExtracting, fmt.Errorf("document has no content"))
	}
	if _, ok := metadata[models.MetaSource]; !ok {
		return fail(models.StageExtracting, fmt.Errorf("required metadata %q is missing", models.MetaSource))
	}
	if _, ok := metadata[models.MetaCreatedAt]; !ok {
		metadata[models.MetaCreatedAt] = time.Now().UTC().Format(time.RFC3339)
	}

	// Chunking
	texts, err := p.chunker.Chunk(ctx, content, p.strategy, p.params)
	if err != nil {
		return fail(models.StageChunking, err)
	}
	if len(texts) == 0 {
		return fail(models.StageChunking, fmt.Errorf("chunking produced no chunks"))
	}

	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			DocumentID:    docID,
			Index:         i,
			Text:          text,
			TokenEstimate: models.EstimateTokens(text),
		}
	}

	// Embedding
	var vectors [][]float32
	if p.embedder != nil {
		if err := ctx.Err(); err != nil {
			return fail(models.StageEmbedding, err)
		}
		vectors, err = p.embedder.Embed(ctx, texts)
		if err != nil {
			return fail(models.StageEmbedding, err)
		}
	}

	// A prior version's vectors are removed before the new ones land so a
	// shrinking chunk count leaves no orphans.
	prior, priorErr := p.documents.GetDocument(docID)
	if priorErr != nil && !errors.Is(priorErr, models.ErrDocumentNotFound) {
		return fail(models.StageIndexing, fmt.Errorf("loading prior version: %w", priorErr))
	}
	isUpdate := priorErr == nil && prior != nil
	version := 1
	if isUpdate {
		version = prior.Version + 1
		if err := p.deleteVectors(ctx, docID, prior.ChunkCount()); err != nil {
			return fail(models.StageIndexing, err)
		}
	}

	// Indexing
	metadata[models.MetaChunkCount] = len(chunks)
	metadata[models.MetaVersion] = version

	if vectors != nil {
		if err := ctx.Err(); err != nil {
			return fail(models.StageIndexing, err)
		}
		ids := make([]string, len(chunks))
		payloads := make([]map[string]any, len(chunks))
		for i := range chunks {
			ids[i] = chunks[i].ID()
			payload := cloneMetadata(metadata)
			payload["documentId"] = docID
			payload["chunkIndex"] = chunks[i].Index
			payload["text"] = chunks[i].Text
			payloads[i] = payload
		}
		err = retryBackend(ctx, func() error {
			return p.vectors.AddPoints(ctx, ids, vectors, payloads)
		})
		if err != nil {
			return fail(models.StageIndexing, err)
		}
	}

	doc := &models.Document{
		ID:       docID,
		Content:  content,
		Metadata: metadata,
		Chunks:   chunks,
		Version:  version,
	}
	if isUpdate {
		doc.CreatedAt = prior.CreatedAt
	}
	if err := p.documents.SaveDocument(doc); err != nil {
		return fail(models.StageIndexing, fmt.Errorf("saving document: %w", err))
	}

	p.keywords.IndexDocument(docID, chunks)

	p.logger.Info().
		Str("document_id", docID).
		Int("version", version).
		Int("chunks", len(chunks)).
		Msg("Document committed")

	return models.IngestResult{
		DocumentID: docID,
		Version:    version,
		ChunkCount: len(chunks),
		Stage:      models.StageCommitted,
	}
}

// IngestBatch runs documents through the pipeline with at most
// maxConcurrency in flight. Results come back in input order; a failed
// document never cancels its siblings, but cancelling ctx stops the
// whole batch.
func (p *Pipeline) IngestBatch(ctx context.Context, raws []models.RawDocument, maxConcurrency int) []models.IngestResult {
	if maxConcurrency <= 0 {
		maxConcurrency = common.DefaultIngestConcurrency
	}

	results := make([]models.IngestResult, len(raws))

	pool := workers.NewPool(ctx, maxConcurrency, p.logger)
	pool.Start()

	for i, raw := range raws {
		i, raw := i, raw
		err := pool.Submit(func(jobCtx context.Context) error {
			results[i] = p.IngestOne(jobCtx, raw)
			return nil
		})
		if err != nil {
			results[i] = models.IngestResult{
				DocumentID:  raw.ID,
				Stage:       models.StageFailed,
				FailedStage: models.StageExtracting,
				Error:       err.Error(),
				Err:         err,
			}
		}
	}
	pool.Wait()

	for i := range results {
		if results[i].Stage == "" {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = models.IngestResult{
				DocumentID:  raws[i].ID,
				Stage:       models.StageFailed,
				FailedStage: models.StageExtracting,
				Error:       err.Error(),
				Err:         err,
			}
		}
	}
	return results
}

// DeleteDocument removes a document's vectors, keyword entries, and
// stored record. Deleting an unknown document is a no-op.
func (p *Pipeline) DeleteDocument(ctx context.Context, docID string) error {
	doc, err := p.documents.GetDocument(docID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			return nil
		}
		return fmt.Errorf("loading document %s: %w", docID, err)
	}

	if err := p.deleteVectors(ctx, docID, doc.ChunkCount()); err != nil {
		return err
	}
	p.keywords.RemoveDocument(docID)

	if err := p.documents.DeleteDocument(docID); err != nil {
		return fmt.Errorf("deleting document %s: %w", docID, err)
	}

	p.logger.Info().Str("document_id", docID).Msg("Document deleted")
	return nil
}

func (p *Pipeline) deleteVectors(ctx context.Context, docID string, chunkCount int) error {
	if p.vectors == nil || chunkCount == 0 {
		return nil
	}
	ids := make([]string, chunkCount)
	for i := 0; i < chunkCount; i++ {
		ids[i] = models.ChunkID(docID, i)
	}
	return retryBackend(ctx, func() error {
		return p.vectors.Delete(ctx, ids)
	})
}

// retryBackend retries an operation whose failure is a retryable
// BackendError, with a short fixed delay between attempts. All other
// errors surface immediately.
func retryBackend(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= backendMaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		var backendErr *models.BackendError
		if !errors.As(lastErr, &backendErr) || !backendErr.Retryable {
			return lastErr
		}
		if attempt < backendMaxAttempts {
			select {
			case <-time.After(backendRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func cloneMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
