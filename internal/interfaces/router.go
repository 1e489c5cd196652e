package interfaces

import (
	"context"

	"github.com/ternarybob/memoro/internal/models"
)

// Router decides which tool should handle an utterance.
type Router interface {
	// Route returns a decision for the given text. Implementations fall
	// back to keyword matching when the model cannot decide.
	Route(ctx context.Context, text string) (*models.RouteDecision, error)
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	// Transcribe converts a WAV audio payload to text.
	Transcribe(ctx context.Context, audio []byte) (*models.Transcription, error)

	// HealthCheck verifies the transcription backend is reachable.
	HealthCheck(ctx context.Context) error
}
