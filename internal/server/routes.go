package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - voice sessions
	mux.HandleFunc("/ws/voice", s.app.VoiceHandler.HandleVoice)

	// API routes - Documents
	mux.HandleFunc("/api/documents", s.app.DocumentHandler.CollectionHandler)  // GET (list), POST (upload)
	mux.HandleFunc("/api/documents/", s.app.DocumentHandler.ItemHandler)       // GET/DELETE /{id}

	// API routes - Query (RAG)
	mux.HandleFunc("/api/query", s.app.QueryHandler.QueryHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}
