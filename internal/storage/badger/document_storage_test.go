package badger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestStorage(t *testing.T) interfaces.DocumentStorage {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	db := &BadgerDB{store: store}
	return NewDocumentStorage(db, arbor.NewLogger())
}

func TestDocumentLifecycle(t *testing.T) {
	storage := newTestStorage(t)

	doc := &models.Document{
		ID:         "doc_test1",
		Filename:   "notes.md",
		UploadedAt: time.Now(),
		ChunkCount: 2,
		SizeBytes:  120,
	}
	require.NoError(t, storage.SaveDocument(doc))

	loaded, err := storage.GetDocument("doc_test1")
	require.NoError(t, err)
	assert.Equal(t, "notes.md", loaded.Filename)
	assert.Equal(t, 2, loaded.ChunkCount)
	assert.False(t, loaded.CreatedAt.IsZero())

	count, err := storage.CountDocuments()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetDocument_NotFound(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.GetDocument("doc_missing")
	assert.ErrorIs(t, err, badgerhold.ErrNotFound)
}

func TestListDocuments_OrderedByUploadTime(t *testing.T) {
	storage := newTestStorage(t)

	base := time.Now()
	for i, id := range []string{"doc_c", "doc_a", "doc_b"} {
		require.NoError(t, storage.SaveDocument(&models.Document{
			ID:         id,
			Filename:   id + ".txt",
			UploadedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	docs, err := storage.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc_c", docs[0].ID)
	assert.Equal(t, "doc_a", docs[1].ID)
	assert.Equal(t, "doc_b", docs[2].ID)
}

func TestContentAndChunksRoundTrip(t *testing.T) {
	storage := newTestStorage(t)

	require.NoError(t, storage.SaveContent(&models.DocumentContent{
		DocID: "doc_test1",
		Text:  "full extracted text",
	}))
	require.NoError(t, storage.SaveChunks(&models.DocumentChunks{
		DocID:  "doc_test1",
		Chunks: []string{"first chunk", "second chunk"},
	}))

	content, err := storage.GetContent("doc_test1")
	require.NoError(t, err)
	assert.Equal(t, "full extracted text", content.Text)

	chunks, err := storage.GetChunks("doc_test1")
	require.NoError(t, err)
	assert.Equal(t, []string{"first chunk", "second chunk"}, chunks.Chunks)
}

func TestSaveDocumentBundle_WritesAllRecords(t *testing.T) {
	storage := newTestStorage(t)

	doc := &models.Document{
		ID:         "doc_bundle",
		Filename:   "notes.md",
		UploadedAt: time.Now(),
		ChunkCount: 2,
		SizeBytes:  64,
	}
	err := storage.SaveDocumentBundle(
		doc,
		&models.DocumentContent{DocID: "doc_bundle", Text: "full extracted text"},
		&models.DocumentChunks{DocID: "doc_bundle", Chunks: []string{"first chunk", "second chunk"}},
	)
	require.NoError(t, err)
	assert.False(t, doc.CreatedAt.IsZero())

	loaded, err := storage.GetDocument("doc_bundle")
	require.NoError(t, err)
	assert.Equal(t, "notes.md", loaded.Filename)

	content, err := storage.GetContent("doc_bundle")
	require.NoError(t, err)
	assert.Equal(t, "full extracted text", content.Text)

	chunks, err := storage.GetChunks("doc_bundle")
	require.NoError(t, err)
	assert.Equal(t, []string{"first chunk", "second chunk"}, chunks.Chunks)
}

func TestSaveDocumentBundle_MismatchedIDsWriteNothing(t *testing.T) {
	storage := newTestStorage(t)

	err := storage.SaveDocumentBundle(
		&models.Document{ID: "doc_bundle", Filename: "a.txt", UploadedAt: time.Now()},
		&models.DocumentContent{DocID: "doc_other", Text: "text"},
		&models.DocumentChunks{DocID: "doc_bundle", Chunks: []string{"text"}},
	)
	require.Error(t, err)

	_, err = storage.GetDocument("doc_bundle")
	assert.ErrorIs(t, err, badgerhold.ErrNotFound, "rejected bundle leaves no records")
}

func TestDeleteDocument_RemovesAllRecords(t *testing.T) {
	storage := newTestStorage(t)

	require.NoError(t, storage.SaveDocument(&models.Document{ID: "doc_test1", Filename: "a.txt", UploadedAt: time.Now()}))
	require.NoError(t, storage.SaveContent(&models.DocumentContent{DocID: "doc_test1", Text: "text"}))
	require.NoError(t, storage.SaveChunks(&models.DocumentChunks{DocID: "doc_test1", Chunks: []string{"text"}}))

	deleted, err := storage.DeleteDocument("doc_test1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = storage.GetDocument("doc_test1")
	assert.ErrorIs(t, err, badgerhold.ErrNotFound)
	_, err = storage.GetContent("doc_test1")
	assert.ErrorIs(t, err, badgerhold.ErrNotFound)
	_, err = storage.GetChunks("doc_test1")
	assert.ErrorIs(t, err, badgerhold.ErrNotFound)
}

func TestDeleteDocument_UnknownIsNoop(t *testing.T) {
	storage := newTestStorage(t)

	deleted, err := storage.DeleteDocument("doc_missing")
	require.NoError(t, err)
	assert.False(t, deleted)
}
