package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
)

// Status is a point-in-time snapshot of the running service.
type Status struct {
	Version       string    `json:"version"`
	Environment   string    `json:"environment"`
	LLMMode       string    `json:"llm_mode"`
	LLMHealthy    bool      `json:"llm_healthy"`
	LLMError      string    `json:"llm_error,omitempty"`
	DocumentCount int       `json:"document_count"`
	IndexSize     int       `json:"index_size"`
	IndexDim      int       `json:"index_dimension"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// Service reports service health and index statistics.
type Service struct {
	environment string
	index       interfaces.VectorIndex
	documents   interfaces.DocumentService
	llm         interfaces.LLMService
	logger      arbor.ILogger
	startedAt   time.Time

	mu sync.Mutex
}

// NewService creates a status service.
func NewService(environment string, index interfaces.VectorIndex, documents interfaces.DocumentService, llm interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		environment: environment,
		index:       index,
		documents:   documents,
		llm:         llm,
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// GetStatus assembles the current snapshot. An unhealthy LLM backend is
// reported in the snapshot, never as an error.
func (s *Service) GetStatus(ctx context.Context) *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &Status{
		Version:       common.GetVersion(),
		Environment:   s.environment,
		LLMMode:       string(s.llm.GetMode()),
		LLMHealthy:    true,
		IndexSize:     s.index.Size(),
		IndexDim:      s.index.Dimension(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Timestamp:     time.Now(),
	}

	if count, err := s.documents.Count(ctx); err == nil {
		status.DocumentCount = count
	} else {
		s.logger.Warn().Err(err).Msg("Failed to count documents for status")
	}

	if err := s.llm.HealthCheck(ctx); err != nil {
		status.LLMHealthy = false
		status.LLMError = err.Error()
	}

	return status
}
