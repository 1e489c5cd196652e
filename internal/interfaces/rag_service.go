package interfaces

import (
	"context"

	"github.com/ternarybob/memoro/internal/models"
)

// StreamFunc receives one stream event during a streamed query.
// Returning an error aborts the stream.
type StreamFunc func(event models.StreamEvent) error

// RAGService runs retrieval-augmented queries over the indexed documents.
type RAGService interface {
	// Retrieve returns the topK most relevant chunks with their text and
	// source filename resolved. Hits whose chunk text can no longer be
	// resolved are dropped.
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievedChunk, error)

	// BuildContext formats retrieved chunks into a single prompt context.
	BuildContext(chunks []models.RetrievedChunk) string

	// Query runs the full pipeline: retrieve, build context, generate.
	// Generation runs only when retrieval found chunks. A generation
	// failure is reported inside the result, retrieval output is never
	// discarded.
	Query(ctx context.Context, query string, topK int) (*models.RAGResult, error)

	// QueryStream runs the pipeline and emits events: one "chunks" event
	// first, then "token" events, then "done" or a terminal "error".
	// With no retrieval hits the stream ends after the chunks event.
	QueryStream(ctx context.Context, query string, topK int, emit StreamFunc) error
}
