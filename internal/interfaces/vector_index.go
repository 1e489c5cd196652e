package interfaces

import (
	"context"

	"github.com/ternarybob/memoro/internal/models"
)

// VectorIndex is an exact nearest-neighbor index over chunk embeddings.
// Every stored vector has a positionally matched models.ChunkRef, so the
// chunk map length always equals the vector count.
//
// All mutations and persistence operations are serialized; searches may
// run concurrently with each other but not with mutations.
type VectorIndex interface {
	// AddChunks embeds the given chunk texts and appends them to the index
	// with refs (docID, 0..n-1) matching the input order. Empty input is a
	// no-op. Embedding failure adds nothing. The index is persisted after
	// a successful append.
	AddChunks(ctx context.Context, docID string, chunks []string) error

	// RemoveDocument removes all vectors belonging to docID, rebuilding the
	// index from the retained vectors in their original order. Returns true
	// when at least one vector was removed. Unknown IDs are a no-op.
	RemoveDocument(ctx context.Context, docID string) (bool, error)

	// Search embeds the query and returns up to topK nearest chunks by
	// ascending L2 distance. topK < 1 is invalid; an empty index returns an
	// empty result and no error.
	Search(ctx context.Context, query string, topK int) ([]models.SearchHit, error)

	// Size returns the number of stored vectors.
	Size() int

	// Dimension returns the embedding dimension, or 0 before the first add.
	Dimension() int

	// Save persists the vectors and chunk map as a matched pair.
	Save() error

	// Load restores a previously saved index. A missing index is a clean
	// empty start; a half-missing or inconsistent pair is corruption.
	Load() error

	// Verify checks the vector/chunk-map pairing invariant.
	Verify() error
}
