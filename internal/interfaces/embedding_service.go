package interfaces

import (
	"context"
)

// EmbeddingService produces embedding vectors with a consistent dimension.
// The dimension is fixed by the first successful embedding; any later
// vector of a different length is an error.
type EmbeddingService interface {
	// Embed generates an embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in input order,
	// all-or-nothing.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension, or 0 before the first
	// successful embedding.
	Dimension() int
}
