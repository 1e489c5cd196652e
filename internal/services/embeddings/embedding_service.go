package embeddings

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/interfaces"
)

// EmbeddingService wraps the LLM backend's embedding operations with
// dimension tracking. The first successful embedding fixes the dimension;
// later vectors of a different length indicate a backend or model change
// and are rejected.
type EmbeddingService struct {
	llm       interfaces.LLMService
	logger    arbor.ILogger
	mu        sync.Mutex
	dimension int
}

// NewEmbeddingService creates an embedding service on top of the LLM backend.
func NewEmbeddingService(llm interfaces.LLMService, logger arbor.ILogger) interfaces.EmbeddingService {
	return &EmbeddingService{
		llm:    llm,
		logger: logger,
	}
}

// Embed generates an embedding for one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	start := time.Now()
	vector, err := s.llm.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := s.checkDimension(len(vector)); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("dimension", len(vector)).
		Dur("duration", time.Since(start)).
		Msg("Embedding generated")

	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts, all-or-nothing.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("cannot embed empty text at position %d", i)
		}
	}

	start := time.Now()
	vectors, err := s.llm.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(vectors))
	}

	for i, vector := range vectors {
		if err := s.checkDimension(len(vector)); err != nil {
			return nil, fmt.Errorf("batch position %d: %w", i, err)
		}
	}

	s.logger.Debug().
		Int("count", len(vectors)).
		Dur("duration", time.Since(start)).
		Msg("Batch embeddings generated")

	return vectors, nil
}

// Dimension returns the tracked embedding dimension.
func (s *EmbeddingService) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dimension
}

func (s *EmbeddingService) checkDimension(got int) error {
	if got == 0 {
		return fmt.Errorf("backend returned empty embedding")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		s.dimension = got
		return nil
	}
	if got != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, got)
	}
	return nil
}
