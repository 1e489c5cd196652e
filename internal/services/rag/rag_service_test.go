package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/models"
)

// fakeIndex returns canned search hits.
type fakeIndex struct {
	hits []models.SearchHit
	err  error
}

func (f *fakeIndex) AddChunks(ctx context.Context, docID string, chunks []string) error { return nil }
func (f *fakeIndex) RemoveDocument(ctx context.Context, docID string) (bool, error)     { return false, nil }
func (f *fakeIndex) Search(ctx context.Context, query string, topK int) ([]models.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topK > len(f.hits) {
		topK = len(f.hits)
	}
	return f.hits[:topK], nil
}
func (f *fakeIndex) Size() int      { return len(f.hits) }
func (f *fakeIndex) Dimension() int { return 3 }
func (f *fakeIndex) Save() error    { return nil }
func (f *fakeIndex) Load() error    { return nil }
func (f *fakeIndex) Verify() error  { return nil }

// fakeDocuments resolves chunk texts and filenames from maps.
type fakeDocuments struct {
	filenames map[string]string
	texts     map[string][]string
}

func (f *fakeDocuments) Ingest(ctx context.Context, filename string, raw []byte) (*models.Document, []string, error) {
	return nil, nil, nil
}
func (f *fakeDocuments) GetMetadata(ctx context.Context, docID string) (*models.Document, bool) {
	name, ok := f.filenames[docID]
	if !ok {
		return nil, false
	}
	return &models.Document{ID: docID, Filename: name}, true
}
func (f *fakeDocuments) ListMetadata(ctx context.Context) ([]*models.Document, error) {
	return nil, nil
}
func (f *fakeDocuments) GetText(ctx context.Context, docID string) (string, bool) { return "", false }
func (f *fakeDocuments) GetChunks(ctx context.Context, docID string) ([]string, bool) {
	chunks, ok := f.texts[docID]
	return chunks, ok
}
func (f *fakeDocuments) GetChunkText(ctx context.Context, docID string, chunkIndex int) (string, bool) {
	chunks, ok := f.texts[docID]
	if !ok || chunkIndex < 0 || chunkIndex >= len(chunks) {
		return "", false
	}
	return chunks[chunkIndex], true
}
func (f *fakeDocuments) Delete(ctx context.Context, docID string) (bool, error) { return false, nil }
func (f *fakeDocuments) AllChunks(ctx context.Context) ([]models.ChunkRef, []string, error) {
	return nil, nil, nil
}
func (f *fakeDocuments) Count(ctx context.Context) (int, error) { return len(f.texts), nil }

// fakeLLM returns a fixed answer, optionally streaming it word by word.
type fakeLLM struct {
	answer       string
	chatErr      error
	lastMessages []interfaces.Message
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (f *fakeLLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	f.lastMessages = messages
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.answer, nil
}
func (f *fakeLLM) ChatStream(ctx context.Context, messages []interfaces.Message, onToken interfaces.TokenFunc) (string, error) {
	f.lastMessages = messages
	if f.chatErr != nil {
		return "", f.chatErr
	}
	for _, word := range strings.SplitAfter(f.answer, " ") {
		if err := onToken(word); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}
func (f *fakeLLM) AnalyzeImage(ctx context.Context, imageB64 string, question string) (string, error) {
	return "", nil
}
func (f *fakeLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeLLM) GetMode() interfaces.LLMMode           { return interfaces.LLMModeOffline }
func (f *fakeLLM) Close() error                          { return nil }

func newTestRAG(index *fakeIndex, docs *fakeDocuments, llm *fakeLLM) interfaces.RAGService {
	return NewService(index, docs, llm, 5, common.GetLogger())
}

func standardFixtures() (*fakeIndex, *fakeDocuments) {
	index := &fakeIndex{
		hits: []models.SearchHit{
			{Ref: models.ChunkRef{DocID: "doc_a", ChunkIndex: 0}, Distance: 0.1},
			{Ref: models.ChunkRef{DocID: "doc_b", ChunkIndex: 1}, Distance: 0.4},
		},
	}
	docs := &fakeDocuments{
		filenames: map[string]string{"doc_a": "claims.txt", "doc_b": "recipes.md"},
		texts: map[string][]string{
			"doc_a": {"the claim was approved"},
			"doc_b": {"boil the water", "add the pasta"},
		},
	}
	return index, docs
}

func TestRetrieve_ResolvesTextAndFilename(t *testing.T) {
	index, docs := standardFixtures()
	svc := newTestRAG(index, docs, &fakeLLM{})

	chunks, err := svc.Retrieve(context.Background(), "what happened to the claim", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "claims.txt", chunks[0].Filename)
	assert.Equal(t, "the claim was approved", chunks[0].Text)
	assert.Equal(t, float32(0.1), chunks[0].Distance)

	assert.Equal(t, "recipes.md", chunks[1].Filename)
	assert.Equal(t, "add the pasta", chunks[1].Text)
}

func TestRetrieve_DropsDanglingHits(t *testing.T) {
	index, docs := standardFixtures()
	index.hits = append(index.hits, models.SearchHit{
		Ref: models.ChunkRef{DocID: "doc_gone", ChunkIndex: 0}, Distance: 0.9,
	})
	svc := newTestRAG(index, docs, &fakeLLM{})

	chunks, err := svc.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Len(t, chunks, 2, "hit for a deleted document is dropped")
}

func TestRetrieve_MissingMetadataFallsBackToUnknown(t *testing.T) {
	index, docs := standardFixtures()
	delete(docs.filenames, "doc_a")
	svc := newTestRAG(index, docs, &fakeLLM{})

	chunks, err := svc.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "unknown", chunks[0].Filename)
	assert.Equal(t, "the claim was approved", chunks[0].Text)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	index, docs := standardFixtures()
	svc := newTestRAG(index, docs, &fakeLLM{})

	_, err := svc.Retrieve(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	index, docs := standardFixtures()
	svc := newTestRAG(index, docs, &fakeLLM{})

	chunks, err := svc.Retrieve(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Len(t, chunks, 2, "top_k of 0 falls back to the configured default")
}

func TestBuildContext_Format(t *testing.T) {
	svc := newTestRAG(&fakeIndex{}, &fakeDocuments{}, &fakeLLM{})

	got := svc.BuildContext([]models.RetrievedChunk{
		{Filename: "claims.txt", Text: "the claim was approved"},
		{Filename: "recipes.md", Text: "boil the water"},
	})

	want := "[claims.txt]: the claim was approved\n\n---\n\n[recipes.md]: boil the water"
	assert.Equal(t, want, got)
}

func TestBuildContext_EmptyUsesSentinel(t *testing.T) {
	svc := newTestRAG(&fakeIndex{}, &fakeDocuments{}, &fakeLLM{})
	assert.Equal(t, models.NoResultsContext, svc.BuildContext(nil))
}

func TestQuery_FullPipeline(t *testing.T) {
	index, docs := standardFixtures()
	llm := &fakeLLM{answer: "The claim was approved."}
	svc := newTestRAG(index, docs, llm)

	result, err := svc.Query(context.Background(), "what happened to the claim", 5)
	require.NoError(t, err)

	assert.Equal(t, "what happened to the claim", result.Query)
	assert.Len(t, result.Chunks, 2)
	assert.Contains(t, result.Context, "[claims.txt]: the claim was approved")
	assert.Equal(t, "The claim was approved.", result.Answer)
	assert.False(t, result.LLMError)

	// The prompt carries the assembled context and the question
	require.Len(t, llm.lastMessages, 2)
	assert.Equal(t, "system", llm.lastMessages[0].Role)
	assert.Contains(t, llm.lastMessages[1].Content, result.Context)
	assert.Contains(t, llm.lastMessages[1].Content, "what happened to the claim")
}

func TestQuery_GenerationFailureKeepsRetrieval(t *testing.T) {
	index, docs := standardFixtures()
	llm := &fakeLLM{chatErr: fmt.Errorf("model overloaded")}
	svc := newTestRAG(index, docs, llm)

	result, err := svc.Query(context.Background(), "anything", 5)
	require.NoError(t, err, "generation failure is not a pipeline error")

	assert.True(t, result.LLMError)
	assert.Empty(t, result.Answer)
	assert.Len(t, result.Chunks, 2, "retrieval output survives the failure")
	assert.NotEmpty(t, result.Context)
}

func TestQuery_NoHitsSkipsGeneration(t *testing.T) {
	llm := &fakeLLM{answer: "should never be generated"}
	svc := newTestRAG(&fakeIndex{}, &fakeDocuments{}, llm)

	result, err := svc.Query(context.Background(), "unknown topic", 5)
	require.NoError(t, err)

	assert.Empty(t, result.Chunks)
	assert.Equal(t, models.NoResultsContext, result.Context)
	assert.Empty(t, result.Answer, "nothing retrieved, nothing generated")
	assert.False(t, result.LLMError)
	assert.Nil(t, llm.lastMessages, "model is not called without retrieval hits")
}

func TestQueryStream_NoHitsEndsAfterChunksEvent(t *testing.T) {
	llm := &fakeLLM{answer: "should never be streamed"}
	svc := newTestRAG(&fakeIndex{}, &fakeDocuments{}, llm)

	var events []models.StreamEvent
	err := svc.QueryStream(context.Background(), "unknown topic", 5, func(event models.StreamEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 1, "no token or done events without retrieval hits")
	assert.Equal(t, models.StreamEventChunks, events[0].Type)
	assert.Empty(t, events[0].Chunks)
	assert.Nil(t, llm.lastMessages, "model is not called without retrieval hits")
}

func TestQueryStream_EventOrder(t *testing.T) {
	index, docs := standardFixtures()
	llm := &fakeLLM{answer: "approved today"}
	svc := newTestRAG(index, docs, llm)

	var events []models.StreamEvent
	err := svc.QueryStream(context.Background(), "what happened", 5, func(event models.StreamEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(events), 3)

	assert.Equal(t, models.StreamEventChunks, events[0].Type)
	assert.Len(t, events[0].Chunks, 2)

	var tokens strings.Builder
	for _, event := range events[1 : len(events)-1] {
		assert.Equal(t, models.StreamEventToken, event.Type)
		tokens.WriteString(event.Token)
	}
	assert.Equal(t, "approved today", tokens.String())

	last := events[len(events)-1]
	assert.Equal(t, models.StreamEventDone, last.Type)
	assert.Equal(t, "approved today", last.Answer)
}

func TestQueryStream_GenerationFailureEmitsError(t *testing.T) {
	index, docs := standardFixtures()
	llm := &fakeLLM{chatErr: fmt.Errorf("connection reset")}
	svc := newTestRAG(index, docs, llm)

	var events []models.StreamEvent
	err := svc.QueryStream(context.Background(), "what happened", 5, func(event models.StreamEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, models.StreamEventChunks, events[0].Type)
	assert.Equal(t, models.StreamEventError, events[1].Type)
	assert.Contains(t, events[1].Error, "connection reset")
}

func TestQueryStream_EmitErrorAbortsStream(t *testing.T) {
	index, docs := standardFixtures()
	llm := &fakeLLM{answer: "some answer"}
	svc := newTestRAG(index, docs, llm)

	wantErr := fmt.Errorf("client went away")
	err := svc.QueryStream(context.Background(), "what happened", 5, func(event models.StreamEvent) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}
