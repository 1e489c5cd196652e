// -----------------------------------------------------------------------
// Last Modified: Tuesday, 28th July 2026 9:12:33 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/models"
)

// Service implements document ingest and lookups over badger storage.
// Index membership is the caller's concern: this service only owns the
// document records themselves.
type Service struct {
	storage   interfaces.DocumentStorage
	extractor interfaces.Extractor
	chunker   interfaces.Chunker
	logger    arbor.ILogger
}

// NewService creates a document service.
func NewService(storage interfaces.DocumentStorage, extractor interfaces.Extractor, chunker interfaces.Chunker, logger arbor.ILogger) interfaces.DocumentService {
	return &Service{
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		logger:    logger,
	}
}

// Ingest validates, extracts, chunks, and stores a new document. The
// metadata, content, and chunk records are written together; the returned
// chunk texts are what the caller feeds into the vector index.
func (s *Service) Ingest(ctx context.Context, filename string, raw []byte) (*models.Document, []string, error) {
	if filename == "" {
		return nil, nil, fmt.Errorf("%w: filename is required", common.ErrInvalidInput)
	}
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("%w: file content is empty", common.ErrInvalidInput)
	}
	if !s.extractor.Supported(filename) {
		return nil, nil, fmt.Errorf("%w: %s", common.ErrUnsupportedType, filename)
	}

	text, err := s.extractor.Extract(filename, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract text from %s: %w", filename, err)
	}

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("%w: no indexable text in %s", common.ErrInvalidInput, filename)
	}

	doc := &models.Document{
		ID:         common.NewDocumentID(),
		Filename:   filename,
		UploadedAt: time.Now(),
		ChunkCount: len(chunks),
		SizeBytes:  len(raw),
	}

	err = s.storage.SaveDocumentBundle(
		doc,
		&models.DocumentContent{DocID: doc.ID, Text: text},
		&models.DocumentChunks{DocID: doc.ID, Chunks: chunks},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save document: %w", err)
	}

	s.logger.Info().
		Str("doc_id", doc.ID).
		Str("filename", filename).
		Int("chunks", len(chunks)).
		Int("text_bytes", len(text)).
		Msg("Document ingested")

	return doc, chunks, nil
}

// GetMetadata returns a document's metadata record.
func (s *Service) GetMetadata(ctx context.Context, docID string) (*models.Document, bool) {
	doc, err := s.storage.GetDocument(docID)
	if err != nil {
		if !errors.Is(err, badgerhold.ErrNotFound) {
			s.logger.Warn().Err(err).Str("doc_id", docID).Msg("Failed to load document metadata")
		}
		return nil, false
	}
	return doc, true
}

// ListMetadata returns all document metadata ordered by upload time.
func (s *Service) ListMetadata(ctx context.Context) ([]*models.Document, error) {
	docs, err := s.storage.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// GetText returns a document's full extracted text.
func (s *Service) GetText(ctx context.Context, docID string) (string, bool) {
	content, err := s.storage.GetContent(docID)
	if err != nil {
		if !errors.Is(err, badgerhold.ErrNotFound) {
			s.logger.Warn().Err(err).Str("doc_id", docID).Msg("Failed to load document content")
		}
		return "", false
	}
	return content.Text, true
}

// GetChunks returns a document's ordered chunk texts.
func (s *Service) GetChunks(ctx context.Context, docID string) ([]string, bool) {
	chunks, err := s.storage.GetChunks(docID)
	if err != nil {
		if !errors.Is(err, badgerhold.ErrNotFound) {
			s.logger.Warn().Err(err).Str("doc_id", docID).Msg("Failed to load document chunks")
		}
		return nil, false
	}
	return chunks.Chunks, true
}

// GetChunkText returns one chunk by position. Out-of-range indexes and
// unknown documents both report absence rather than an error, so a stale
// index entry degrades to a dropped hit instead of a failed query.
func (s *Service) GetChunkText(ctx context.Context, docID string, chunkIndex int) (string, bool) {
	chunks, ok := s.GetChunks(ctx, docID)
	if !ok {
		return "", false
	}
	if chunkIndex < 0 || chunkIndex >= len(chunks) {
		return "", false
	}
	return chunks[chunkIndex], true
}

// Delete removes a document's metadata, content, and chunk records.
func (s *Service) Delete(ctx context.Context, docID string) (bool, error) {
	deleted, err := s.storage.DeleteDocument(docID)
	if err != nil {
		return false, fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	if deleted {
		s.logger.Info().Str("doc_id", docID).Msg("Document deleted")
	}
	return deleted, nil
}

// AllChunks returns every stored chunk in document-then-chunk-index order.
// Documents whose chunk record is missing are skipped with a warning.
func (s *Service) AllChunks(ctx context.Context) ([]models.ChunkRef, []string, error) {
	docs, err := s.storage.ListDocuments()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var refs []models.ChunkRef
	var texts []string
	for _, doc := range docs {
		chunks, ok := s.GetChunks(ctx, doc.ID)
		if !ok {
			s.logger.Warn().Str("doc_id", doc.ID).Msg("Document has no chunk record, skipping")
			continue
		}
		for i, text := range chunks {
			refs = append(refs, models.ChunkRef{DocID: doc.ID, ChunkIndex: i})
			texts = append(texts, text)
		}
	}
	return refs, texts, nil
}

// Count returns the number of stored documents.
func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.storage.CountDocuments()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}
