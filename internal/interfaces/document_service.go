package interfaces

import (
	"context"

	"github.com/ternarybob/memoro/internal/models"
)

// DocumentService manages uploaded documents and their chunk texts.
// Deleting a document never touches the vector index; callers coordinate
// index removal separately.
type DocumentService interface {
	// Ingest validates, extracts, chunks, and stores a new document.
	// Returns the metadata record and the ordered chunk texts.
	Ingest(ctx context.Context, filename string, raw []byte) (*models.Document, []string, error)

	// GetMetadata returns a document's metadata, or (nil, false) when absent.
	GetMetadata(ctx context.Context, docID string) (*models.Document, bool)

	// ListMetadata returns all document metadata ordered by upload time.
	ListMetadata(ctx context.Context) ([]*models.Document, error)

	// GetText returns a document's full extracted text, or ("", false) when absent.
	GetText(ctx context.Context, docID string) (string, bool)

	// GetChunks returns a document's ordered chunk texts, or (nil, false) when absent.
	GetChunks(ctx context.Context, docID string) ([]string, bool)

	// GetChunkText returns one chunk by position. Unknown documents and
	// out-of-range indexes return ("", false), never an error.
	GetChunkText(ctx context.Context, docID string, chunkIndex int) (string, bool)

	// Delete removes a document and its stored artifacts. Returns true when
	// something was deleted; deleting an unknown ID is a no-op returning false.
	Delete(ctx context.Context, docID string) (bool, error)

	// AllChunks returns every stored chunk across all documents in
	// document-then-chunk-index order, for full index rebuilds.
	AllChunks(ctx context.Context) ([]models.ChunkRef, []string, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
}
