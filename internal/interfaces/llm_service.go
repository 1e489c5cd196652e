package interfaces

import (
	"context"
)

// LLMMode represents the operational mode of the LLM service
type LLMMode string

const (
	// LLMModeCloud indicates the service uses cloud-based LLM APIs
	LLMModeCloud LLMMode = "cloud"

	// LLMModeOffline indicates the service uses local/offline LLM models
	LLMModeOffline LLMMode = "offline"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// TokenFunc receives one generated text fragment during a streamed
// completion. Returning an error aborts the stream.
type TokenFunc func(token string) error

// LLMService defines the interface for language model operations including
// embeddings, chat completions, streamed completions, and image analysis.
// Implementations may use cloud APIs (Gemini, Claude) or a local llama-server.
type LLMService interface {
	// Embed generates an embedding vector for the given text. All texts
	// embedded by one implementation share the same dimensionality.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in input order.
	// The operation is all-or-nothing: any failure returns an error and
	// no partial results.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Chat generates a completion response based on the conversation history.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatStream generates a completion and delivers text fragments to
	// onToken as they arrive. Returns the full response text on success.
	ChatStream(ctx context.Context, messages []Message, onToken TokenFunc) (string, error)

	// AnalyzeImage answers a question about a base64-encoded PNG image.
	// Offline implementations return an error: vision requires a cloud model.
	AnalyzeImage(ctx context.Context, imageB64 string, question string) (string, error)

	// HealthCheck verifies the LLM service is operational.
	HealthCheck(ctx context.Context) error

	// GetMode returns the current operational mode of the LLM service.
	GetMode() LLMMode

	// Close releases resources and performs cleanup operations.
	Close() error
}
