// -----------------------------------------------------------------------
// Last Modified: Wednesday, 5th August 2026 4:52:10 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// CloudLLMService implements LLMService against Gemini and Claude APIs.
// Chat, streaming, and vision follow the configured default provider;
// embeddings always use Gemini, the only configured backend with an
// embedding model.
type CloudLLMService struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	provider     ProviderType
	logger       arbor.ILogger

	geminiClient  *genai.Client
	claudeClient  anthropic.Client
	claudeReady   bool
	geminiLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
	retry         RetryConfig
	timeout       time.Duration
}

// NewCloudLLMService creates the cloud LLM service for the configured
// default provider. The Gemini API key is always required for embeddings.
func NewCloudLLMService(cfg *common.Config, logger arbor.ILogger) (*CloudLLMService, error) {
	provider := DetectProvider(cfg.LLM.DefaultProvider, ProviderGemini)

	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for cloud mode (set MEMORO_GEMINI_API_KEY or gemini.api_key): embeddings have no other backend")
	}
	if provider == ProviderClaude && cfg.Claude.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required when default_provider is claude (set ANTHROPIC_API_KEY or claude.api_key)")
	}

	timeout, err := time.ParseDuration(cfg.Gemini.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 2 * time.Minute
	}

	service := &CloudLLMService{
		geminiConfig:  &cfg.Gemini,
		claudeConfig:  &cfg.Claude,
		provider:      provider,
		logger:        logger,
		geminiLimiter: newLimiter(cfg.Gemini.RateLimit, 4*time.Second),
		claudeLimiter: newLimiter(cfg.Claude.RateLimit, time.Second),
		retry:         NewDefaultRetryConfig(),
		timeout:       timeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	service.geminiClient = client

	if cfg.Claude.APIKey != "" {
		service.claudeClient = anthropic.NewClient(option.WithAPIKey(cfg.Claude.APIKey))
		service.claudeReady = true
	}

	logger.Info().
		Str("provider", string(provider)).
		Str("chat_model", service.chatModel()).
		Str("embed_model", cfg.Gemini.EmbedModel).
		Msg("Cloud LLM service initialized")

	return service, nil
}

// DetectProvider determines the provider type from a model or provider string.
// Accepts bare provider names ("claude"), prefixed models ("claude/..."),
// and model name patterns ("claude-sonnet-...").
func DetectProvider(value string, fallback ProviderType) ProviderType {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "":
		return fallback
	case v == "claude" || v == "anthropic",
		strings.HasPrefix(v, "claude/"), strings.HasPrefix(v, "anthropic/"),
		strings.HasPrefix(v, "claude-"):
		return ProviderClaude
	case v == "gemini" || v == "google",
		strings.HasPrefix(v, "gemini/"), strings.HasPrefix(v, "google/"),
		strings.HasPrefix(v, "gemini-"):
		return ProviderGemini
	default:
		return fallback
	}
}

func newLimiter(interval string, fallback time.Duration) *rate.Limiter {
	d, err := time.ParseDuration(interval)
	if err != nil || d <= 0 {
		d = fallback
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

func (s *CloudLLMService) chatModel() string {
	if s.provider == ProviderClaude {
		return s.claudeConfig.Model
	}
	return s.geminiConfig.Model
}

// Embed generates an embedding vector using the Gemini embedding model.
func (s *CloudLLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple texts in order. All-or-nothing: any failure
// returns an error and no partial results.
func (s *CloudLLMService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	outputDim := int32(s.geminiConfig.EmbedDim)
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var result *genai.EmbedContentResponse
	err := s.withRetry(ctx, s.geminiLimiter, "embed", func(ctx context.Context) error {
		var apiErr error
		result, apiErr = s.geminiClient.Models.EmbedContent(ctx, s.geminiConfig.EmbedModel, contents, config)
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vectors[i] = emb.Values
	}

	s.logger.Debug().
		Int("count", len(vectors)).
		Int("dimension", len(vectors[0])).
		Msg("Embeddings generated")

	return vectors, nil
}

// Chat generates a completion using the default provider.
func (s *CloudLLMService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.provider == ProviderClaude {
		return s.chatClaude(ctx, messages)
	}
	return s.chatGemini(ctx, messages)
}

// ChatStream generates a completion, delivering fragments to onToken.
func (s *CloudLLMService) ChatStream(ctx context.Context, messages []interfaces.Message, onToken interfaces.TokenFunc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.provider == ProviderClaude {
		return s.streamClaude(ctx, messages, onToken)
	}
	return s.streamGemini(ctx, messages, onToken)
}

func (s *CloudLLMService) chatGemini(ctx context.Context, messages []interfaces.Message) (string, error) {
	contents, config, err := s.geminiRequest(messages)
	if err != nil {
		return "", err
	}

	var resp *genai.GenerateContentResponse
	err = s.withRetry(ctx, s.geminiLimiter, "chat", func(ctx context.Context) error {
		var apiErr error
		resp, apiErr = s.geminiClient.Models.GenerateContent(ctx, s.geminiConfig.Model, contents, config)
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("Gemini chat generation failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty text in Gemini response")
	}
	return text, nil
}

func (s *CloudLLMService) streamGemini(ctx context.Context, messages []interfaces.Message, onToken interfaces.TokenFunc) (string, error) {
	contents, config, err := s.geminiRequest(messages)
	if err != nil {
		return "", err
	}

	if err := s.geminiLimiter.Wait(ctx); err != nil {
		return "", err
	}

	var full strings.Builder
	for resp, err := range s.geminiClient.Models.GenerateContentStream(ctx, s.geminiConfig.Model, contents, config) {
		if err != nil {
			return "", fmt.Errorf("Gemini stream failed: %w", err)
		}
		token := resp.Text()
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

	if full.Len() == 0 {
		return "", fmt.Errorf("empty response from Gemini stream")
	}
	return full.String(), nil
}

func (s *CloudLLMService) geminiRequest(messages []interfaces.Message) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return nil, nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.geminiConfig.Temperature),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	return contents, config, nil
}

func (s *CloudLLMService) chatClaude(ctx context.Context, messages []interfaces.Message) (string, error) {
	if !s.claudeReady {
		return "", fmt.Errorf("Claude client not configured")
	}

	params, err := s.claudeParams(messages)
	if err != nil {
		return "", err
	}

	var resp *anthropic.Message
	err = s.withRetry(ctx, s.claudeLimiter, "chat", func(ctx context.Context) error {
		var apiErr error
		resp, apiErr = s.claudeClient.Messages.New(ctx, params)
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("Claude chat generation failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}
	return text.String(), nil
}

func (s *CloudLLMService) streamClaude(ctx context.Context, messages []interfaces.Message, onToken interfaces.TokenFunc) (string, error) {
	if !s.claudeReady {
		return "", fmt.Errorf("Claude client not configured")
	}

	params, err := s.claudeParams(messages)
	if err != nil {
		return "", err
	}

	if err := s.claudeLimiter.Wait(ctx); err != nil {
		return "", err
	}

	stream := s.claudeClient.Messages.NewStreaming(ctx, params)
	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text == "" {
					continue
				}
				full.WriteString(delta.Text)
				if onToken != nil {
					if err := onToken(delta.Text); err != nil {
						return "", err
					}
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("Claude stream failed: %w", err)
	}

	if full.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude stream")
	}
	return full.String(), nil
}

func (s *CloudLLMService) claudeParams(messages []interfaces.Message) (anthropic.MessageNewParams, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.claudeConfig.Model),
		MaxTokens: int64(s.claudeConfig.MaxTokens),
		Messages:  claudeMessages,
	}
	if s.claudeConfig.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.claudeConfig.Temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}
	return params, nil
}

// AnalyzeImage answers a question about a base64-encoded PNG image using
// the default provider's vision capability.
func (s *CloudLLMService) AnalyzeImage(ctx context.Context, imageB64 string, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.provider == ProviderClaude {
		return s.analyzeImageClaude(ctx, imageB64, question)
	}
	return s.analyzeImageGemini(ctx, imageB64, question)
}

func (s *CloudLLMService) analyzeImageGemini(ctx context.Context, imageB64 string, question string) (string, error) {
	imageData, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		return "", fmt.Errorf("invalid base64 image: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				genai.NewPartFromBytes(imageData, "image/png"),
				genai.NewPartFromText(question),
			},
		},
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.geminiConfig.Temperature),
	}

	var resp *genai.GenerateContentResponse
	err = s.withRetry(ctx, s.geminiLimiter, "vision", func(ctx context.Context) error {
		var apiErr error
		resp, apiErr = s.geminiClient.Models.GenerateContent(ctx, s.geminiConfig.Model, contents, config)
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("Gemini image analysis failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Text() == "" {
		return "", fmt.Errorf("empty vision response from Gemini API")
	}
	return resp.Text(), nil
}

func (s *CloudLLMService) analyzeImageClaude(ctx context.Context, imageB64 string, question string) (string, error) {
	if !s.claudeReady {
		return "", fmt.Errorf("Claude client not configured")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.claudeConfig.Model),
		MaxTokens: int64(s.claudeConfig.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64("image/png", imageB64),
				anthropic.NewTextBlock(question),
			),
		},
	}

	var resp *anthropic.Message
	err := s.withRetry(ctx, s.claudeLimiter, "vision", func(ctx context.Context) error {
		var apiErr error
		resp, apiErr = s.claudeClient.Messages.New(ctx, params)
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("Claude image analysis failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty vision response from Claude API")
	}
	return text.String(), nil
}

// withRetry runs an API call with rate limiting and exponential backoff.
func (s *CloudLLMService) withRetry(ctx context.Context, limiter *rate.Limiter, operation string, call func(ctx context.Context) error) error {
	var apiErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		apiErr = call(ctx)
		if apiErr == nil {
			return nil
		}

		if attempt == s.retry.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if IsRateLimitError(apiErr) {
			backoff = s.retry.CalculateBackoff(attempt)
		}

		s.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying cloud API call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("API call failed after %d retries: %w", s.retry.MaxRetries, apiErr)
}

// HealthCheck verifies cloud credentials are present. No API round trip:
// rate limits make a per-check request too expensive.
func (s *CloudLLMService) HealthCheck(ctx context.Context) error {
	if s.geminiClient == nil {
		return fmt.Errorf("Gemini client not initialized")
	}
	if s.provider == ProviderClaude && !s.claudeReady {
		return fmt.Errorf("Claude client not initialized")
	}
	return nil
}

// GetMode returns the operational mode (always cloud)
func (s *CloudLLMService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeCloud
}

// Close releases client resources
func (s *CloudLLMService) Close() error {
	s.geminiClient = nil
	s.claudeClient = anthropic.Client{}
	s.claudeReady = false
	return nil
}
