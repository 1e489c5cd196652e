// -----------------------------------------------------------------------
// Last Modified: Tuesday, 28th July 2026 2:05:44 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package badger

import (
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStorage implements the DocumentStorage interface for Badger.
// Metadata, full text, and chunk lists are separate record types keyed by
// document ID, so listing metadata never loads document bodies.
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

// SaveDocumentBundle writes metadata, content, and chunks in one Badger
// transaction. Either all three records land or none do.
func (s *DocumentStorage) SaveDocumentBundle(doc *models.Document, content *models.DocumentContent, chunks *models.DocumentChunks) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if content.DocID != doc.ID || chunks.DocID != doc.ID {
		return fmt.Errorf("bundle records must share the document ID")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		if err := s.db.Store().TxUpsert(tx, doc.ID, doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		if err := s.db.Store().TxUpsert(tx, content.DocID, content); err != nil {
			return fmt.Errorf("failed to save document content: %w", err)
		}
		if err := s.db.Store().TxUpsert(tx, chunks.DocID, chunks); err != nil {
			return fmt.Errorf("failed to save document chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save document bundle: %w", err)
	}
	return nil
}

func (s *DocumentStorage) SaveDocument(doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, badgerhold.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns all document metadata ordered by upload time.
func (s *DocumentStorage) ListDocuments() ([]*models.Document, error) {
	var docs []models.Document
	query := badgerhold.Where("ID").Ne("").SortBy("UploadedAt")
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

// DeleteDocument removes a document's metadata, content, and chunks.
// Returns false without error when the document does not exist.
func (s *DocumentStorage) DeleteDocument(id string) (bool, error) {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete document: %w", err)
	}

	// Content and chunk records may be missing for partially written
	// documents; treat that as already deleted.
	if err := s.db.Store().Delete(id, &models.DocumentContent{}); err != nil && err != badgerhold.ErrNotFound {
		return true, fmt.Errorf("failed to delete document content: %w", err)
	}
	if err := s.db.Store().Delete(id, &models.DocumentChunks{}); err != nil && err != badgerhold.ErrNotFound {
		return true, fmt.Errorf("failed to delete document chunks: %w", err)
	}

	return true, nil
}

func (s *DocumentStorage) CountDocuments() (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

func (s *DocumentStorage) SaveContent(content *models.DocumentContent) error {
	if content.DocID == "" {
		return fmt.Errorf("document ID is required")
	}
	if err := s.db.Store().Upsert(content.DocID, content); err != nil {
		return fmt.Errorf("failed to save document content: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetContent(docID string) (*models.DocumentContent, error) {
	var content models.DocumentContent
	if err := s.db.Store().Get(docID, &content); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, badgerhold.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document content: %w", err)
	}
	return &content, nil
}

func (s *DocumentStorage) SaveChunks(chunks *models.DocumentChunks) error {
	if chunks.DocID == "" {
		return fmt.Errorf("document ID is required")
	}
	if err := s.db.Store().Upsert(chunks.DocID, chunks); err != nil {
		return fmt.Errorf("failed to save document chunks: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetChunks(docID string) (*models.DocumentChunks, error) {
	var chunks models.DocumentChunks
	if err := s.db.Store().Get(docID, &chunks); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, badgerhold.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document chunks: %w", err)
	}
	return &chunks, nil
}
