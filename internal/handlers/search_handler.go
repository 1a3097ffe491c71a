package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/interfaces"
)

// SearchHandler serves the hybrid search endpoint.
type SearchHandler struct {
	knowledge interfaces.KnowledgeService
	logger    arbor.ILogger
}

// NewSearchHandler creates a new SearchHandler instance.
func NewSearchHandler(knowledge interfaces.KnowledgeService, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{knowledge: knowledge, logger: logger}
}

// SearchHandler runs a hybrid search.
// POST /api/search
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Query  string         `json:"query"`
		TopK   int            `json:"top_k"`
		Alpha  *float64       `json:"alpha"`
		Filter map[string]any `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		WriteError(w, http.StatusBadRequest, "query is required")
		return
	}

	opts := interfaces.SearchOptions{
		TopK:   req.TopK,
		Filter: req.Filter,
		Alpha:  -1, // configured default unless the request names one
	}
	if req.Alpha != nil {
		opts.Alpha = *req.Alpha
	}

	resp, err := h.knowledge.Search(r.Context(), req.Query, opts)
	if err != nil {
		h.logger.Warn().Err(err).Str("query", req.Query).Msg("Search failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
