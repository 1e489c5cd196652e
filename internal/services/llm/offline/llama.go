// -----------------------------------------------------------------------
// Last Modified: Thursday, 2nd July 2026 11:36:29 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package offline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
)

// OfflineLLMService provides local LLM operations against llama-server
// instances already running on localhost.
// SECURITY: Guarantees 100% local operation with NO external network calls.
type OfflineLLMService struct {
	embedURL  string
	chatURL   string
	maxTokens int
	mockMode  bool
	embedDim  int
	client    *http.Client
	logger    arbor.ILogger
}

// llamaEmbeddingRequest represents embedding request to llama-server
type llamaEmbeddingRequest struct {
	Content string `json:"content"`
}

// llamaEmbeddingResponse represents embedding response from llama-server
type llamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type llamaBatchEmbeddingResponse struct {
	Index     int         `json:"index"`
	Embedding [][]float32 `json:"embedding"` // Nested array format
}

// llamaChatRequest represents chat request to llama-server
type llamaChatRequest struct {
	Messages    []llamaMessage `json:"messages"`
	Temperature float32        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Stream      bool           `json:"stream"`
}

type llamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// llamaChatResponse represents chat response from llama-server
type llamaChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// llamaStreamChunk is one SSE data frame from a streamed completion
type llamaStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// NewOfflineLLMService creates a client for already-running llama-server
// instances. The servers are never started or stopped by this service.
func NewOfflineLLMService(cfg *common.OfflineConfig, logger arbor.ILogger) (*OfflineLLMService, error) {
	embedDim := cfg.EmbedDim
	if embedDim <= 0 {
		embedDim = 768
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	service := &OfflineLLMService{
		embedURL:  strings.TrimRight(cfg.EmbedURL, "/"),
		chatURL:   strings.TrimRight(cfg.ChatURL, "/"),
		maxTokens: maxTokens,
		mockMode:  cfg.MockMode,
		embedDim:  embedDim,
		client:    newLocalhostClient(240 * time.Second),
		logger:    logger,
	}

	if cfg.MockMode {
		logger.Warn().Msg("Offline LLM service in MOCK mode - using fake responses")
		return service, nil
	}

	if service.embedURL == "" || service.chatURL == "" {
		return nil, fmt.Errorf("offline mode requires embed_url and chat_url")
	}

	logger.Info().
		Str("embed_server_url", service.embedURL).
		Str("chat_server_url", service.chatURL).
		Msg("Offline LLM service initialized")

	return service, nil
}

// newLocalhostClient builds an HTTP client that refuses any connection
// outside the loopback interface.
// SECURITY: Transport enforces localhost-only connections.
func newLocalhostClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				if !strings.HasPrefix(addr, "127.0.0.1:") && !strings.HasPrefix(addr, "localhost:") {
					return nil, fmt.Errorf("security violation: attempt to connect to non-localhost address: %s", addr)
				}
				return (&net.Dialer{}).DialContext(ctx, network, addr)
			},
		},
	}
}

// Embed generates an embedding vector for the given text.
// SECURITY: Uses llama-server on localhost ONLY - no external network access.
func (s *OfflineLLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.mockMode {
		return s.generateMockEmbedding(text), nil
	}

	reqBody := llamaEmbeddingRequest{Content: text}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.embedURL+"/embedding", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llama-server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llama-server returned status %d: %s", resp.StatusCode, string(body))
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	embedding, err := parseEmbeddingResponse(bodyBytes)
	if err != nil {
		preview := bodyBytes
		if len(preview) > 200 {
			preview = preview[:200]
		}
		s.logger.Error().
			Err(err).
			Str("response_preview", string(preview)).
			Msg("Failed to parse embedding response")
		return nil, err
	}

	s.logger.Debug().
		Int("dimension", len(embedding)).
		Msg("Embedding generated")

	return embedding, nil
}

// parseEmbeddingResponse handles the three response shapes llama-server
// emits across versions: {"embedding":[...]}, a bare array, and the batch
// form [{"index":0,"embedding":[[...]]}].
func parseEmbeddingResponse(body []byte) ([]float32, error) {
	var objResponse llamaEmbeddingResponse
	if err := json.Unmarshal(body, &objResponse); err == nil && len(objResponse.Embedding) > 0 {
		return objResponse.Embedding, nil
	}

	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var batch []llamaBatchEmbeddingResponse
	if err := json.Unmarshal(body, &batch); err == nil && len(batch) > 0 {
		if len(batch[0].Embedding) > 0 && len(batch[0].Embedding[0]) > 0 {
			return batch[0].Embedding[0], nil
		}
		return nil, fmt.Errorf("batch embedding response has empty embedding array")
	}

	return nil, fmt.Errorf("failed to parse embedding response in any known format")
}

// EmbedBatch embeds texts sequentially. All-or-nothing: any failure
// returns an error and no partial results. llama-server processes one
// embedding request at a time, so there is nothing to gain from fan-out.
func (s *OfflineLLMService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch embedding failed at position %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Chat generates a completion response based on conversation history.
// SECURITY: Uses llama-server on localhost ONLY - no external network access.
func (s *OfflineLLMService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if s.mockMode {
		return s.generateMockResponse(messages), nil
	}

	jsonData, err := json.Marshal(s.chatRequest(messages, false))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.chatURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llama-server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llama-server returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResponse llamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResponse); err != nil {
		return "", fmt.Errorf("failed to parse chat JSON: %w", err)
	}
	if len(chatResponse.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}

	response := chatResponse.Choices[0].Message.Content
	s.logger.Debug().
		Int("response_length", len(response)).
		Msg("Chat completion generated")

	return response, nil
}

// ChatStream generates a completion with stream=true and parses the SSE
// frames llama-server emits, delivering each content delta to onToken.
func (s *OfflineLLMService) ChatStream(ctx context.Context, messages []interfaces.Message, onToken interfaces.TokenFunc) (string, error) {
	if s.mockMode {
		response := s.generateMockResponse(messages)
		if onToken != nil {
			for _, word := range strings.SplitAfter(response, " ") {
				if err := onToken(word); err != nil {
					return "", err
				}
			}
		}
		return response, nil
	}

	jsonData, err := json.Marshal(s.chatRequest(messages, true))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.chatURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llama-server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llama-server returned status %d: %s", resp.StatusCode, string(body))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk llamaStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.logger.Debug().Err(err).Msg("Skipping unparseable stream frame")
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}

		full.WriteString(token)
		if onToken != nil {
			if err := onToken(token); err != nil {
				return "", err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read failed: %w", err)
	}

	return full.String(), nil
}

func (s *OfflineLLMService) chatRequest(messages []interfaces.Message, stream bool) llamaChatRequest {
	llamaMessages := make([]llamaMessage, len(messages))
	for i, msg := range messages {
		llamaMessages[i] = llamaMessage{Role: msg.Role, Content: msg.Content}
	}
	return llamaChatRequest{
		Messages:    llamaMessages,
		Temperature: 0.8,
		MaxTokens:   s.maxTokens,
		Stream:      stream,
	}
}

// AnalyzeImage is unsupported offline: the local chat model has no vision.
func (s *OfflineLLMService) AnalyzeImage(ctx context.Context, imageB64 string, question string) (string, error) {
	return "", fmt.Errorf("image analysis is not available in offline mode")
}

// HealthCheck verifies both llama-server endpoints respond.
func (s *OfflineLLMService) HealthCheck(ctx context.Context) error {
	if s.mockMode {
		return nil
	}

	for _, url := range []string{s.embedURL, s.chatURL} {
		req, err := http.NewRequestWithContext(ctx, "GET", url+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("llama-server not reachable at %s: %w", url, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("llama-server at %s returned status %d", url, resp.StatusCode)
		}
	}
	return nil
}

// GetMode returns the operational mode (always offline)
func (s *OfflineLLMService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeOffline
}

// Close releases resources. The llama-server processes are externally
// managed, so there is nothing to stop.
func (s *OfflineLLMService) Close() error {
	return nil
}

// generateMockEmbedding creates a deterministic fake embedding for testing
func (s *OfflineLLMService) generateMockEmbedding(text string) []float32 {
	embedding := make([]float32, s.embedDim)
	seed := 0
	for _, c := range text {
		seed += int(c)
	}
	for i := range embedding {
		embedding[i] = float32((seed+i)%100) / 100.0
	}
	return embedding
}

// generateMockResponse creates a fake chat response for testing
func (s *OfflineLLMService) generateMockResponse(messages []interfaces.Message) string {
	if len(messages) == 0 {
		return "Mock response: No messages provided"
	}
	lastMsg := messages[len(messages)-1]
	return fmt.Sprintf("Mock response to: %s", lastMsg.Content)
}
