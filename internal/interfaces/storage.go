package interfaces

import (
	"context"

	"github.com/ternarybob/memoro/internal/models"
)

// DocumentStorage persists document metadata, content, and chunk records.
type DocumentStorage interface {
	// SaveDocumentBundle writes a document's metadata, content, and chunk
	// records in one transaction, so a failed ingest leaves no partial
	// document behind.
	SaveDocumentBundle(doc *models.Document, content *models.DocumentContent, chunks *models.DocumentChunks) error

	SaveDocument(doc *models.Document) error
	GetDocument(id string) (*models.Document, error)
	ListDocuments() ([]*models.Document, error)
	DeleteDocument(id string) (bool, error)
	CountDocuments() (int, error)

	SaveContent(content *models.DocumentContent) error
	GetContent(docID string) (*models.DocumentContent, error)

	SaveChunks(chunks *models.DocumentChunks) error
	GetChunks(docID string) (*models.DocumentChunks, error)
}

// StorageManager provides access to all storage interfaces and owns the
// underlying database connection.
type StorageManager interface {
	DocumentStorage() DocumentStorage

	// RunGC triggers value-log garbage collection on the underlying store.
	RunGC(ctx context.Context) error

	Close() error
}
