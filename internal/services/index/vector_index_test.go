package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/models"
)

// stubEmbedder returns fixed vectors for known texts and a deterministic
// hash-derived vector otherwise.
type stubEmbedder struct {
	fixed     map[string][]float32
	dim       int
	failNext  bool
	callCount int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		fixed: map[string][]float32{
			"alpha":      {1, 0, 0},
			"beta":       {0, 1, 0},
			"gamma":      {0, 0, 1},
			"delta":      {1, 1, 0},
			"near alpha": {0.9, 0.1, 0},
		},
		dim: 3,
	}
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.callCount++
	if e.failNext {
		e.failNext = false
		return nil, fmt.Errorf("embedding backend unavailable")
	}
	if v, ok := e.fixed[text]; ok {
		return v, nil
	}
	seed := float32(0)
	for _, c := range text {
		seed += float32(c)
	}
	return []float32{seed / 1000, seed / 2000, seed / 3000}, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (e *stubEmbedder) Dimension() int { return e.dim }

func newTestIndex(t *testing.T) (*Service, *stubEmbedder, string) {
	t.Helper()
	dir := t.TempDir()
	embedder := newStubEmbedder()
	idx, err := NewService(embedder, dir, common.GetLogger())
	require.NoError(t, err)
	return idx.(*Service), embedder, dir
}

func requireInvariant(t *testing.T, idx *Service) {
	t.Helper()
	require.NoError(t, idx.Verify())
}

func TestAddChunks_AppendsInOrder(t *testing.T) {
	idx, _, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha", "beta"}))
	requireInvariant(t, idx)

	assert.Equal(t, 2, idx.Size())
	assert.Equal(t, 3, idx.Dimension())
	assert.Equal(t, models.ChunkRef{DocID: "doc_a", ChunkIndex: 0}, idx.chunkMap[0])
	assert.Equal(t, models.ChunkRef{DocID: "doc_a", ChunkIndex: 1}, idx.chunkMap[1])
}

func TestAddChunks_EmptyInputIsNoop(t *testing.T) {
	idx, embedder, _ := newTestIndex(t)

	require.NoError(t, idx.AddChunks(context.Background(), "doc_a", nil))
	assert.Equal(t, 0, idx.Size())
	assert.Equal(t, 0, embedder.callCount, "no embedding call for empty input")
}

func TestAddChunks_EmbedFailureAddsNothing(t *testing.T) {
	idx, embedder, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha"}))

	embedder.failNext = true
	err := idx.AddChunks(ctx, "doc_b", []string{"beta", "gamma"})
	require.Error(t, err)

	assert.Equal(t, 1, idx.Size(), "failed add must leave the index untouched")
	requireInvariant(t, idx)
}

func TestSearch_EmptyIndexReturnsEmpty(t *testing.T) {
	idx, embedder, _ := newTestIndex(t)

	hits, err := idx.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 0, embedder.callCount, "empty index should not embed the query")
}

func TestSearch_InvalidTopK(t *testing.T) {
	idx, _, _ := newTestIndex(t)

	_, err := idx.Search(context.Background(), "anything", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = idx.Search(context.Background(), "anything", -3)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestSearch_AscendingDistanceOrder(t *testing.T) {
	idx, _, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha", "beta", "gamma"}))

	hits, err := idx.Search(ctx, "near alpha", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// "alpha" is closest to "near alpha"
	assert.Equal(t, models.ChunkRef{DocID: "doc_a", ChunkIndex: 0}, hits[0].Ref)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
}

func TestSearch_TopKClampedToSize(t *testing.T) {
	idx, _, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha", "beta"}))

	hits, err := idx.Search(ctx, "alpha", 50)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestRemoveDocument_RebuildPreservesOrder(t *testing.T) {
	idx, _, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha", "beta"}))
	require.NoError(t, idx.AddChunks(ctx, "doc_b", []string{"gamma", "delta", "near alpha"}))
	require.Equal(t, 5, idx.Size())

	removed, err := idx.RemoveDocument(ctx, "doc_a")
	require.NoError(t, err)
	assert.True(t, removed)
	requireInvariant(t, idx)

	require.Equal(t, 3, idx.Size())
	want := []models.ChunkRef{
		{DocID: "doc_b", ChunkIndex: 0},
		{DocID: "doc_b", ChunkIndex: 1},
		{DocID: "doc_b", ChunkIndex: 2},
	}
	assert.Equal(t, want, idx.chunkMap)
}

func TestRemoveDocument_UnknownIsNoop(t *testing.T) {
	idx, _, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha"}))

	removed, err := idx.RemoveDocument(ctx, "doc_missing")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, idx.Size())
}

func TestRemoveDocument_Idempotent(t *testing.T) {
	idx, _, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha", "beta"}))

	removed, err := idx.RemoveDocument(ctx, "doc_a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = idx.RemoveDocument(ctx, "doc_a")
	require.NoError(t, err)
	assert.False(t, removed, "second removal must be a no-op")
	requireInvariant(t, idx)
}

func TestRemoveDocument_LastDocumentKeepsDimension(t *testing.T) {
	idx, _, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha"}))
	require.Equal(t, 3, idx.Dimension())

	removed, err := idx.RemoveDocument(ctx, "doc_a")
	require.NoError(t, err)
	assert.True(t, removed)

	assert.Equal(t, 0, idx.Size())
	assert.Equal(t, 3, idx.Dimension(), "dimension survives an emptied index")
	requireInvariant(t, idx)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	idx, _, dir := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha", "beta"}))
	require.NoError(t, idx.AddChunks(ctx, "doc_b", []string{"gamma"}))

	// Fresh service over the same directory
	reloaded, err := NewService(newStubEmbedder(), dir, common.GetLogger())
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())

	loaded := reloaded.(*Service)
	requireInvariant(t, loaded)
	assert.Equal(t, idx.Size(), loaded.Size())
	assert.Equal(t, idx.Dimension(), loaded.Dimension())
	assert.Equal(t, idx.chunkMap, loaded.chunkMap)
	assert.Equal(t, idx.vectors, loaded.vectors)

	hits, err := loaded.Search(ctx, "near alpha", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, models.ChunkRef{DocID: "doc_a", ChunkIndex: 0}, hits[0].Ref)
}

func TestLoad_MissingBothStartsEmpty(t *testing.T) {
	idx, _, _ := newTestIndex(t)

	require.NoError(t, idx.Load())
	assert.Equal(t, 0, idx.Size())
	assert.Equal(t, 0, idx.Dimension())
}

func TestLoad_HalfMissingPairIsCorrupt(t *testing.T) {
	idx, _, dir := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha"}))

	require.NoError(t, os.Remove(filepath.Join(dir, chunkMapFile)))

	reloaded, err := NewService(newStubEmbedder(), dir, common.GetLogger())
	require.NoError(t, err)
	err = reloaded.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCorruptIndex)
}

func TestLoad_LengthMismatchIsCorrupt(t *testing.T) {
	idx, _, dir := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha", "beta"}))

	// Rewrite the chunk map with an extra entry
	refs := []models.ChunkRef{
		{DocID: "doc_a", ChunkIndex: 0},
		{DocID: "doc_a", ChunkIndex: 1},
		{DocID: "doc_a", ChunkIndex: 2},
	}
	data, err := json.Marshal(refs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, chunkMapFile), data, 0644))

	reloaded, err := NewService(newStubEmbedder(), dir, common.GetLogger())
	require.NoError(t, err)
	err = reloaded.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCorruptIndex)
}

func TestChunkMapFile_IsTupleList(t *testing.T) {
	idx, _, dir := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddChunks(ctx, "doc_a", []string{"alpha", "beta"}))

	data, err := os.ReadFile(filepath.Join(dir, chunkMapFile))
	require.NoError(t, err)

	var raw [][]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "doc_a", raw[0][0])
	assert.Equal(t, float64(0), raw[0][1])
	assert.Equal(t, float64(1), raw[1][1])
}

func TestChunkRef_JSONRoundTrip(t *testing.T) {
	ref := models.ChunkRef{DocID: "doc_x", ChunkIndex: 7}
	data, err := json.Marshal(ref)
	require.NoError(t, err)
	assert.JSONEq(t, `["doc_x", 7]`, string(data))

	var back models.ChunkRef
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ref, back)
}
