package models

import (
	"time"
)

// Document represents the stored metadata for one uploaded document.
type Document struct {
	// Identity
	ID       string `json:"id"` // doc_{uuid}
	Filename string `json:"filename"`

	// Ingest results
	UploadedAt time.Time `json:"uploaded_at"`
	ChunkCount int       `json:"chunk_count"`
	SizeBytes  int       `json:"size_bytes"` // Size of the raw upload

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentContent holds the full extracted text of a document, stored
// separately from the metadata record so listing stays cheap.
type DocumentContent struct {
	DocID string `json:"doc_id"`
	Text  string `json:"text"`
}

// DocumentChunks holds the ordered chunk texts produced at ingest time.
// Chunk index positions are stable for the lifetime of the document.
type DocumentChunks struct {
	DocID  string   `json:"doc_id"`
	Chunks []string `json:"chunks"`
}

// DocumentStats represents aggregate statistics about stored documents
type DocumentStats struct {
	TotalDocuments int       `json:"total_documents"`
	TotalChunks    int       `json:"total_chunks"`
	LastUpdated    time.Time `json:"last_updated"`
}
