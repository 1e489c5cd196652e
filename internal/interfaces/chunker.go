package interfaces

// Chunker splits document text into retrieval-sized chunks.
// Chunks are returned in document order, trimmed and non-empty.
type Chunker interface {
	Chunk(text string) []string
}

// Extractor converts an uploaded file into plain text by filename extension.
type Extractor interface {
	// Extract returns the plain text content of the upload.
	Extract(filename string, raw []byte) (string, error)

	// Supported reports whether the filename's extension can be extracted.
	Supported(filename string) bool
}
