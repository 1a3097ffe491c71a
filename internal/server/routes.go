package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Documents
	mux.HandleFunc("/api/documents/batch", s.app.DocumentHandler.BatchHandler) // POST - batch ingest
	mux.HandleFunc("/api/documents", s.handleDocumentsRoute)                   // GET (list), POST (add)
	mux.HandleFunc("/api/documents/", s.app.DocumentHandler.DocumentByIDHandler)

	// API routes - Search
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler) // POST - hybrid search

	// API routes - Stats
	mux.HandleFunc("/api/stats", s.app.DocumentHandler.StatsHandler) // GET - engine counters

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	return mux
}

// handleDocumentsRoute dispatches /api/documents by method.
func (s *Server) handleDocumentsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.DocumentHandler.ListHandler(w, r)
	case http.MethodPost:
		s.app.DocumentHandler.AddHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
