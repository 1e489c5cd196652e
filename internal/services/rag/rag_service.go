// -----------------------------------------------------------------------
// Last Modified: Tuesday, 11th August 2026 10:41:07 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/models"
)

const systemPrompt = "You are a helpful assistant. Answer the question using only the provided document context. " +
	"If the context does not contain the answer, say so instead of guessing."

const contextSeparator = "\n\n---\n\n"

// Service runs the retrieval-augmented query pipeline: vector search,
// chunk resolution, context assembly, generation.
type Service struct {
	index       interfaces.VectorIndex
	documents   interfaces.DocumentService
	llm         interfaces.LLMService
	defaultTopK int
	logger      arbor.ILogger
}

// NewService creates a RAG service. defaultTopK is used when a query
// does not specify how many chunks to retrieve.
func NewService(index interfaces.VectorIndex, documents interfaces.DocumentService, llm interfaces.LLMService, defaultTopK int, logger arbor.ILogger) interfaces.RAGService {
	if defaultTopK < 1 {
		defaultTopK = 5
	}
	return &Service{
		index:       index,
		documents:   documents,
		llm:         llm,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
}

// Retrieve searches the index and resolves each hit to its chunk text and
// source filename. Hits whose document or chunk no longer exists are
// dropped; a missing metadata record degrades to filename "unknown".
func (s *Service) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", common.ErrInvalidInput)
	}
	if topK < 1 {
		topK = s.defaultTopK
	}

	hits, err := s.index.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		text, ok := s.documents.GetChunkText(ctx, hit.Ref.DocID, hit.Ref.ChunkIndex)
		if !ok {
			s.logger.Warn().
				Str("doc_id", hit.Ref.DocID).
				Int("chunk_index", hit.Ref.ChunkIndex).
				Msg("Dropping dangling index hit")
			continue
		}

		filename := "unknown"
		if doc, ok := s.documents.GetMetadata(ctx, hit.Ref.DocID); ok {
			filename = doc.Filename
		}

		chunks = append(chunks, models.RetrievedChunk{
			DocID:      hit.Ref.DocID,
			ChunkIndex: hit.Ref.ChunkIndex,
			Filename:   filename,
			Text:       text,
			Distance:   hit.Distance,
		})
	}

	s.logger.Debug().
		Int("hits", len(hits)).
		Int("resolved", len(chunks)).
		Msg("Retrieval complete")

	return chunks, nil
}

// BuildContext formats retrieved chunks into one prompt context block.
func (s *Service) BuildContext(chunks []models.RetrievedChunk) string {
	if len(chunks) == 0 {
		return models.NoResultsContext
	}
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("[%s]: %s", chunk.Filename, chunk.Text)
	}
	return strings.Join(parts, contextSeparator)
}

// Query runs the full pipeline. Generation failures are reported in the
// result rather than as an error, so callers always get the retrieval
// output they can fall back on.
func (s *Service) Query(ctx context.Context, query string, topK int) (*models.RAGResult, error) {
	chunks, err := s.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	result := &models.RAGResult{
		Query:   query,
		Chunks:  chunks,
		Context: s.BuildContext(chunks),
	}

	// Generation only runs when retrieval found something: with no
	// chunks there is nothing to ground an answer on.
	if len(chunks) == 0 {
		return result, nil
	}

	answer, err := s.llm.Chat(ctx, s.buildMessages(query, result.Context))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Answer generation failed")
		result.LLMError = true
		return result, nil
	}

	result.Answer = answer
	return result, nil
}

// QueryStream runs the pipeline and emits the retrieved chunks first,
// then generation tokens, then a terminal "done" or "error" event.
func (s *Service) QueryStream(ctx context.Context, query string, topK int, emit interfaces.StreamFunc) error {
	chunks, err := s.Retrieve(ctx, query, topK)
	if err != nil {
		return err
	}

	if err := emit(models.StreamEvent{
		Type:   models.StreamEventChunks,
		Chunks: chunks,
	}); err != nil {
		return err
	}

	// No chunks, no generation: the stream ends after the chunks event.
	if len(chunks) == 0 {
		return nil
	}

	answer, err := s.llm.ChatStream(ctx, s.buildMessages(query, s.BuildContext(chunks)), func(token string) error {
		return emit(models.StreamEvent{Type: models.StreamEventToken, Token: token})
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Streamed generation failed")
		return emit(models.StreamEvent{
			Type:  models.StreamEventError,
			Error: err.Error(),
		})
	}

	return emit(models.StreamEvent{
		Type:   models.StreamEventDone,
		Answer: answer,
	})
}

func (s *Service) buildMessages(query, docContext string) []interfaces.Message {
	return []interfaces.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", docContext, query)},
	}
}
