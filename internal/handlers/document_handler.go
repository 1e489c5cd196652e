// -----------------------------------------------------------------------
// Last Modified: Tuesday, 11th August 2026 2:17:42 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
)

// Upload size cap, well above any realistic text document.
const maxUploadBytes = 32 * 1024 * 1024

// DocumentHandler serves document upload, listing, and deletion. Upload
// and delete keep the document store and the vector index in step.
type DocumentHandler struct {
	documents interfaces.DocumentService
	index     interfaces.VectorIndex
	logger    arbor.ILogger
}

func NewDocumentHandler(documents interfaces.DocumentService, index interfaces.VectorIndex, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		index:     index,
		logger:    logger,
	}
}

// CollectionHandler routes /api/documents by method: GET lists, POST uploads.
func (h *DocumentHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listDocuments(w, r)
	case http.MethodPost:
		h.uploadDocument(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler routes /api/documents/{id}: GET fetches, DELETE removes.
func (h *DocumentHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	docID := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if docID == "" || strings.Contains(docID, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getDocument(w, r, docID)
	case http.MethodDelete:
		h.deleteDocument(w, r, docID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// uploadDocument handles a multipart upload, ingests the file, and adds
// its chunks to the vector index. A failed index add rolls the document
// back so store and index never disagree.
func (h *DocumentHandler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing 'file' field")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if len(raw) > maxUploadBytes {
		WriteError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}

	ctx := r.Context()
	doc, chunks, err := h.documents.Ingest(ctx, header.Filename, raw)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrUnsupportedType):
			WriteError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, common.ErrInvalidEncoding), errors.Is(err, common.ErrInvalidInput):
			WriteError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Str("filename", header.Filename).Msg("Document ingest failed")
			WriteError(w, http.StatusInternalServerError, "Failed to ingest document")
		}
		return
	}

	if err := h.index.AddChunks(ctx, doc.ID, chunks); err != nil {
		h.logger.Error().Err(err).Str("doc_id", doc.ID).Msg("Index add failed, rolling back document")
		if _, rollbackErr := h.documents.Delete(ctx, doc.ID); rollbackErr != nil {
			h.logger.Error().Err(rollbackErr).Str("doc_id", doc.ID).Msg("Rollback delete failed")
		}
		WriteError(w, http.StatusInternalServerError, "Failed to index document")
		return
	}

	WriteJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.ListMetadata(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list documents")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

func (h *DocumentHandler) getDocument(w http.ResponseWriter, r *http.Request, docID string) {
	doc, ok := h.documents.GetMetadata(r.Context(), docID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Document not found")
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

// deleteDocument removes the document from the index first, then the
// store. A dangling index entry would surface stale hits; a document
// without index entries is merely unsearchable.
func (h *DocumentHandler) deleteDocument(w http.ResponseWriter, r *http.Request, docID string) {
	ctx := r.Context()

	if _, err := h.index.RemoveDocument(ctx, docID); err != nil {
		h.logger.Error().Err(err).Str("doc_id", docID).Msg("Index removal failed")
		WriteError(w, http.StatusInternalServerError, "Failed to remove document from index")
		return
	}

	deleted, err := h.documents.Delete(ctx, docID)
	if err != nil {
		h.logger.Error().Err(err).Str("doc_id", docID).Msg("Document delete failed")
		WriteError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, "Document not found")
		return
	}

	WriteSuccess(w, "Document deleted")
}
