package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/models"
)

// WhisperService transcribes audio through a whisper-server instance
// already running on localhost. The server is never started or stopped
// by this service.
// SECURITY: Transport enforces localhost-only connections.
type WhisperService struct {
	url      string
	mockMode bool
	client   *http.Client
	logger   arbor.ILogger
}

// whisperResponse is the JSON body whisper-server returns for /inference.
type whisperResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// NewWhisperService creates a transcription client for whisper-server.
func NewWhisperService(cfg *common.WhisperConfig, logger arbor.ILogger) (interfaces.Transcriber, error) {
	timeout := 60 * time.Second
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid whisper timeout %q: %w", cfg.Timeout, err)
		}
		timeout = parsed
	}

	service := &WhisperService{
		url:      strings.TrimRight(cfg.URL, "/"),
		mockMode: cfg.MockMode,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					if !strings.HasPrefix(addr, "127.0.0.1:") && !strings.HasPrefix(addr, "localhost:") {
						return nil, fmt.Errorf("security violation: attempt to connect to non-localhost address: %s", addr)
					}
					return (&net.Dialer{}).DialContext(ctx, network, addr)
				},
			},
		},
		logger: logger,
	}

	if cfg.MockMode {
		logger.Warn().Msg("Whisper service in MOCK mode - using fake transcripts")
		return service, nil
	}

	if service.url == "" {
		return nil, fmt.Errorf("whisper url is required")
	}

	logger.Info().Str("whisper_url", service.url).Msg("Whisper service initialized")
	return service, nil
}

// Transcribe posts a WAV payload to whisper-server as a multipart upload.
func (s *WhisperService) Transcribe(ctx context.Context, audio []byte) (*models.Transcription, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: audio payload is empty", common.ErrInvalidInput)
	}

	if s.mockMode {
		return &models.Transcription{
			Text:     fmt.Sprintf("Mock transcription of %d audio bytes", len(audio)),
			Duration: float64(len(audio)) / 32000.0, // 16kHz mono 16-bit
		}, nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio payload: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, "POST", s.url+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper-server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("whisper-server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse transcription response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("whisper-server error: %s", result.Error)
	}

	text := strings.TrimSpace(result.Text)
	s.logger.Debug().
		Int("audio_bytes", len(audio)).
		Int("text_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Audio transcribed")

	return &models.Transcription{
		Text:     text,
		Duration: result.Duration,
	}, nil
}

// HealthCheck verifies whisper-server responds.
func (s *WhisperService) HealthCheck(ctx context.Context) error {
	if s.mockMode {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.url+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whisper-server not reachable at %s: %w", s.url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper-server at %s returned status %d", s.url, resp.StatusCode)
	}
	return nil
}
