package documents

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/models"
	"github.com/ternarybob/memoro/internal/services/chunker"
	"github.com/ternarybob/memoro/internal/services/extraction"
)

// memStorage is an in-memory DocumentStorage for service tests.
type memStorage struct {
	docs     map[string]*models.Document
	contents map[string]*models.DocumentContent
	chunks   map[string]*models.DocumentChunks
}

func newMemStorage() *memStorage {
	return &memStorage{
		docs:     make(map[string]*models.Document),
		contents: make(map[string]*models.DocumentContent),
		chunks:   make(map[string]*models.DocumentChunks),
	}
}

func (m *memStorage) SaveDocumentBundle(doc *models.Document, content *models.DocumentContent, chunks *models.DocumentChunks) error {
	if err := m.SaveDocument(doc); err != nil {
		return err
	}
	if err := m.SaveContent(content); err != nil {
		return err
	}
	return m.SaveChunks(chunks)
}

func (m *memStorage) SaveDocument(doc *models.Document) error {
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *memStorage) GetDocument(id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, badgerhold.ErrNotFound
	}
	return doc, nil
}

func (m *memStorage) ListDocuments() ([]*models.Document, error) {
	out := make([]*models.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UploadedAt.Before(out[b].UploadedAt) })
	return out, nil
}

func (m *memStorage) DeleteDocument(id string) (bool, error) {
	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	delete(m.contents, id)
	delete(m.chunks, id)
	return true, nil
}

func (m *memStorage) CountDocuments() (int, error) { return len(m.docs), nil }

func (m *memStorage) SaveContent(content *models.DocumentContent) error {
	m.contents[content.DocID] = content
	return nil
}

func (m *memStorage) GetContent(docID string) (*models.DocumentContent, error) {
	content, ok := m.contents[docID]
	if !ok {
		return nil, badgerhold.ErrNotFound
	}
	return content, nil
}

func (m *memStorage) SaveChunks(chunks *models.DocumentChunks) error {
	m.chunks[chunks.DocID] = chunks
	return nil
}

func (m *memStorage) GetChunks(docID string) (*models.DocumentChunks, error) {
	chunks, ok := m.chunks[docID]
	if !ok {
		return nil, badgerhold.ErrNotFound
	}
	return chunks, nil
}

func newTestService(t *testing.T) (*Service, *memStorage) {
	t.Helper()
	logger := common.GetLogger()
	storage := newMemStorage()
	svc := NewService(
		storage,
		extraction.NewExtractor(logger),
		chunker.NewSemanticChunker(&common.ChunkingConfig{MinChunkChars: 50, Threshold: 0.15}, logger),
		logger,
	)
	return svc.(*Service), storage
}

const sampleText = `The quarterly insurance claim was filed on March twelfth and covers water damage.
The adjuster inspected the property and confirmed the damage matched the filed claim.

Cooking pasta requires salted boiling water and careful timing for the best texture.
Fresh herbs added at the end brighten the flavor of almost any pasta dish.`

func TestIngest_StoresAllRecords(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	doc, chunks, err := svc.Ingest(ctx, "claims.txt", []byte(sampleText))
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.NotEmpty(t, chunks)

	assert.Contains(t, doc.ID, "doc_")
	assert.Equal(t, "claims.txt", doc.Filename)
	assert.Equal(t, len(chunks), doc.ChunkCount)
	assert.Greater(t, doc.SizeBytes, 0)
	assert.False(t, doc.UploadedAt.IsZero())

	_, ok := storage.docs[doc.ID]
	assert.True(t, ok, "metadata record stored")
	_, ok = storage.contents[doc.ID]
	assert.True(t, ok, "content record stored")
	stored, ok := storage.chunks[doc.ID]
	require.True(t, ok, "chunk record stored")
	assert.Equal(t, chunks, stored.Chunks)
}

func TestIngest_SizeBytesIsRawUploadSize(t *testing.T) {
	svc, _ := newTestService(t)

	// Markdown markup is stripped during extraction, so the extracted
	// text is shorter than the upload.
	raw := []byte("# Claim Report\n\n**The quarterly insurance claim** was filed on March twelfth and covers water damage to the *property*.\n")
	doc, _, err := svc.Ingest(context.Background(), "claims.md", raw)
	require.NoError(t, err)

	assert.Equal(t, len(raw), doc.SizeBytes)
}

func TestIngest_UnsupportedExtension(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Ingest(context.Background(), "report.pdf", []byte("content"))
	assert.ErrorIs(t, err, common.ErrUnsupportedType)
}

func TestIngest_InvalidEncoding(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Ingest(context.Background(), "broken.txt", []byte{0xff, 0xfe, 0xfd})
	assert.ErrorIs(t, err, common.ErrInvalidEncoding)
}

func TestIngest_EmptyContent(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Ingest(context.Background(), "empty.txt", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = svc.Ingest(context.Background(), "blank.txt", []byte("   \n\n  "))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestGetChunkText(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, chunks, err := svc.Ingest(ctx, "claims.txt", []byte(sampleText))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	text, ok := svc.GetChunkText(ctx, doc.ID, 0)
	assert.True(t, ok)
	assert.Equal(t, chunks[0], text)

	_, ok = svc.GetChunkText(ctx, doc.ID, len(chunks))
	assert.False(t, ok, "out-of-range index reports absence")

	_, ok = svc.GetChunkText(ctx, doc.ID, -1)
	assert.False(t, ok)

	_, ok = svc.GetChunkText(ctx, "doc_missing", 0)
	assert.False(t, ok, "unknown document reports absence")
}

func TestDelete_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, _, err := svc.Ingest(ctx, "claims.txt", []byte(sampleText))
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok := svc.GetMetadata(ctx, doc.ID)
	assert.False(t, ok)
	_, ok = svc.GetText(ctx, doc.ID)
	assert.False(t, ok)

	deleted, err = svc.Delete(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestAllChunks_DocumentThenChunkOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	docA, chunksA, err := svc.Ingest(ctx, "first.txt", []byte(sampleText))
	require.NoError(t, err)
	docB, chunksB, err := svc.Ingest(ctx, "second.txt", []byte(sampleText))
	require.NoError(t, err)

	refs, texts, err := svc.AllChunks(ctx)
	require.NoError(t, err)
	require.Len(t, refs, len(chunksA)+len(chunksB))
	require.Len(t, texts, len(refs))

	for i := range chunksA {
		assert.Equal(t, models.ChunkRef{DocID: docA.ID, ChunkIndex: i}, refs[i])
		assert.Equal(t, chunksA[i], texts[i])
	}
	for i := range chunksB {
		assert.Equal(t, models.ChunkRef{DocID: docB.ID, ChunkIndex: i}, refs[len(chunksA)+i])
	}
}

func TestCount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, _, err = svc.Ingest(ctx, "claims.txt", []byte(sampleText))
	require.NoError(t, err)

	count, err = svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
