package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
)

// QueryHandler serves retrieval-augmented queries over the indexed documents.
type QueryHandler struct {
	rag    interfaces.RAGService
	logger arbor.ILogger
}

func NewQueryHandler(rag interfaces.RAGService, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{
		rag:    rag,
		logger: logger,
	}
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// QueryHandler handles POST /api/query.
func (h *QueryHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteError(w, http.StatusBadRequest, "Field 'query' is required")
		return
	}

	// Omitted top_k falls back to the configured default; an explicit
	// value must be positive.
	topK := 0
	if req.TopK != nil {
		if *req.TopK < 1 {
			WriteError(w, http.StatusBadRequest, "Field 'top_k' must be at least 1")
			return
		}
		topK = *req.TopK
	}

	result, err := h.rag.Query(r.Context(), req.Query, topK)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Query failed")
		WriteError(w, http.StatusInternalServerError, "Query failed")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
