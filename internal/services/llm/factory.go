package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/services/llm/offline"
)

// NewLLMService creates the appropriate LLM service implementation based on configuration
func NewLLMService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	if cfg.LLM.Mode != "offline" && cfg.LLM.Mode != "cloud" {
		return nil, fmt.Errorf("invalid LLM mode '%s': must be 'offline' or 'cloud'", cfg.LLM.Mode)
	}

	logger.Info().Str("mode", cfg.LLM.Mode).Msg("Initializing LLM service")

	switch cfg.LLM.Mode {
	case "offline":
		service, err := offline.NewOfflineLLMService(&cfg.LLM.Offline, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create offline LLM service: %w", err)
		}
		return service, nil

	case "cloud":
		service, err := NewCloudLLMService(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud LLM service: %w", err)
		}
		return service, nil

	default:
		return nil, fmt.Errorf("unsupported LLM mode: %s", cfg.LLM.Mode)
	}
}
