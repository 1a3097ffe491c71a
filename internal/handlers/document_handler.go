package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
)

// DocumentHandler serves the document lifecycle endpoints.
type DocumentHandler struct {
	knowledge interfaces.KnowledgeService
	documents interfaces.DocumentStorage
	batchSize int
	logger    arbor.ILogger
}

// NewDocumentHandler creates a new DocumentHandler instance.
func NewDocumentHandler(knowledge interfaces.KnowledgeService, documents interfaces.DocumentStorage, batchConcurrency int, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		knowledge: knowledge,
		documents: documents,
		batchSize: batchConcurrency,
		logger:    logger,
	}
}

// AddHandler ingests a single document.
// POST /api/documents
func (h *DocumentHandler) AddHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var raw models.RawDocument
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	docID, err := h.knowledge.Add(r.Context(), raw)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Document add failed")
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"id": docID})
}

// BatchHandler ingests multiple documents with bounded concurrency.
// POST /api/documents/batch
func (h *DocumentHandler) BatchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Documents      []models.RawDocument `json:"documents"`
		MaxConcurrency int                  `json:"max_concurrency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		WriteError(w, http.StatusBadRequest, "documents is empty")
		return
	}

	concurrency := req.MaxConcurrency
	if concurrency <= 0 {
		concurrency = h.batchSize
	}

	results := h.knowledge.AddBatch(r.Context(), req.Documents, concurrency)

	failed := 0
	for _, result := range results {
		if !result.OK() {
			failed++
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"succeeded": len(results) - failed,
		"failed":    failed,
	})
}

// ListHandler lists stored documents without their chunk bodies.
// GET /api/documents
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit, offset := GetPaginationParams(r)
	docs, err := h.documents.ListDocuments(limit, offset)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type docSummary struct {
		ID         string         `json:"id"`
		Metadata   map[string]any `json:"metadata"`
		Version    int            `json:"version"`
		ChunkCount int            `json:"chunk_count"`
	}
	summaries := make([]docSummary, len(docs))
	for i, doc := range docs {
		summaries[i] = docSummary{
			ID:         doc.ID,
			Metadata:   doc.Metadata,
			Version:    doc.Version,
			ChunkCount: len(doc.Chunks),
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"documents": summaries})
}

// DocumentByIDHandler routes GET, PUT, and DELETE for a single document.
// /api/documents/{id}
func (h *DocumentHandler) DocumentByIDHandler(w http.ResponseWriter, r *http.Request) {
	docID := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if docID == "" || strings.Contains(docID, "/") {
		WriteError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getDocument(w, r, docID)
	case http.MethodPut:
		h.updateDocument(w, r, docID)
	case http.MethodDelete:
		h.deleteDocument(w, r, docID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DocumentHandler) getDocument(w http.ResponseWriter, r *http.Request, docID string) {
	doc, err := h.documents.GetDocument(docID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) updateDocument(w http.ResponseWriter, r *http.Request, docID string) {
	var req struct {
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.knowledge.Update(r.Context(), docID, req.Content, req.Metadata); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Warn().Err(err).Str("document_id", docID).Msg("Document update failed")
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	WriteSuccess(w, "document updated")
}

func (h *DocumentHandler) deleteDocument(w http.ResponseWriter, r *http.Request, docID string) {
	if err := h.knowledge.Delete(r.Context(), docID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteSuccess(w, "document deleted")
}

// StatsHandler reports engine counters.
// GET /api/stats
func (h *DocumentHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.knowledge.Stats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
