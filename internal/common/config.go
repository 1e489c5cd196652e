// -----------------------------------------------------------------------
// Last Modified: Tuesday, 18th August 2026 9:41:07 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Index       IndexConfig       `toml:"index"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Logging     LoggingConfig     `toml:"logging"`
	LLM         LLMConfig         `toml:"llm"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Claude      ClaudeConfig      `toml:"claude"`
	Whisper     WhisperConfig     `toml:"whisper"`
	Voice       VoiceConfig       `toml:"voice"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// IndexConfig controls the vector index and retrieval behavior
type IndexConfig struct {
	Dir         string `toml:"dir" validate:"required"`   // Directory holding vectors.gob and chunk_map.json
	DefaultTopK int    `toml:"default_top_k" validate:"min=1"` // Result count when the caller does not specify one
}

// ChunkingConfig controls the semantic chunker
type ChunkingConfig struct {
	MinChunkChars int     `toml:"min_chunk_chars" validate:"min=1"` // Chunks shorter than this merge into a neighbor
	Threshold     float64 `toml:"threshold"`                        // Topic-shift sensitivity, 0..1 (higher = fewer chunks)
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output"`                                             // "stdout", "file"
}

// LLMConfig selects the model backend and default cloud provider
type LLMConfig struct {
	Mode            string        `toml:"mode" validate:"oneof=offline cloud"` // "offline" or "cloud"
	DefaultProvider string        `toml:"default_provider"`                    // "gemini" or "claude" (cloud mode)
	Offline         OfflineConfig `toml:"offline"`
}

// OfflineConfig contains the local llama-server endpoints.
// The servers are expected to be already running; memoro never starts them.
type OfflineConfig struct {
	EmbedURL  string `toml:"embed_url"`  // llama-server --embedding endpoint (default http://127.0.0.1:8086)
	ChatURL   string `toml:"chat_url"`   // llama-server chat endpoint (default http://127.0.0.1:8087)
	MockMode  bool   `toml:"mock_mode"`  // Deterministic fake responses for tests
	EmbedDim  int    `toml:"embed_dim"`  // Mock embedding dimension (default 768)
	MaxTokens int    `toml:"max_tokens"` // Completion token cap (default 512)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Chat model (default: "gemini-3-flash-preview")
	EmbedModel  string  `toml:"embed_model"` // Embedding model (default: "gemini-embedding-001")
	EmbedDim    int     `toml:"embed_dim"`   // Embedding output dimensionality (default: 768)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "4s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Chat model (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// WhisperConfig contains the local whisper-server transcription endpoint
type WhisperConfig struct {
	URL      string `toml:"url"`       // whisper-server endpoint (default http://127.0.0.1:8088)
	Timeout  string `toml:"timeout"`   // Request timeout (default: "60s")
	MockMode bool   `toml:"mock_mode"` // Deterministic fake transcripts for tests
}

// VoiceConfig controls the voice WebSocket session
type VoiceConfig struct {
	MaxAudioBytes   int    `toml:"max_audio_bytes"`  // Audio buffer cap per session (default 10MB)
	MessageRate     int    `toml:"message_rate"`     // Client messages per second (default 20)
	MessageBurst    int    `toml:"message_burst"`    // Rate limiter burst (default 40)
	WriteTimeout    string `toml:"write_timeout"`    // Per-message write deadline (default "10s")
	StreamingAnswer bool   `toml:"streaming_answer"` // Stream RAG answers token by token (default true)
}

// MaintenanceConfig controls the scheduled maintenance job
type MaintenanceConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format (default: every 6 hours)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in memoro.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8090,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/db",
			},
		},
		Index: IndexConfig{
			Dir:         "./data/index",
			DefaultTopK: 5,
		},
		Chunking: ChunkingConfig{
			MinChunkChars: 50,
			Threshold:     0.15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		LLM: LLMConfig{
			Mode:            "offline", // Local-first by default
			DefaultProvider: "gemini",
			Offline: OfflineConfig{
				EmbedURL:  "http://127.0.0.1:8086",
				ChatURL:   "http://127.0.0.1:8087",
				MockMode:  false,
				EmbedDim:  768,
				MaxTokens: 512,
			},
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			EmbedModel:  "gemini-embedding-001",
			EmbedDim:    768,
			Timeout:     "2m",
			RateLimit:   "4s", // 15 RPM free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		Whisper: WhisperConfig{
			URL:     "http://127.0.0.1:8088",
			Timeout: "60s",
		},
		Voice: VoiceConfig{
			MaxAudioBytes:   10 * 1024 * 1024,
			MessageRate:     20,
			MessageBurst:    40,
			WriteTimeout:    "10s",
			StreamingAnswer: true,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "0 0 */6 * * *", // Every 6 hours
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against its struct tags plus
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.LLM.Mode == "cloud" {
		provider := strings.ToLower(c.LLM.DefaultProvider)
		if provider != "gemini" && provider != "claude" {
			return fmt.Errorf("invalid default_provider '%s': must be 'gemini' or 'claude'", c.LLM.DefaultProvider)
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MEMORO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("MEMORO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MEMORO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("MEMORO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Index configuration
	if indexDir := os.Getenv("MEMORO_INDEX_DIR"); indexDir != "" {
		config.Index.Dir = indexDir
	}
	if topK := os.Getenv("MEMORO_INDEX_DEFAULT_TOP_K"); topK != "" {
		if k, err := strconv.Atoi(topK); err == nil && k > 0 {
			config.Index.DefaultTopK = k
		}
	}

	// Logging configuration
	if level := os.Getenv("MEMORO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MEMORO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// LLM configuration
	if mode := os.Getenv("MEMORO_LLM_MODE"); mode != "" {
		config.LLM.Mode = mode
	}
	if provider := os.Getenv("MEMORO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}
	if embedURL := os.Getenv("MEMORO_LLM_EMBED_URL"); embedURL != "" {
		config.LLM.Offline.EmbedURL = embedURL
	}
	if chatURL := os.Getenv("MEMORO_LLM_CHAT_URL"); chatURL != "" {
		config.LLM.Offline.ChatURL = chatURL
	}

	// Gemini configuration
	if apiKey := os.Getenv("MEMORO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("MEMORO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if embedModel := os.Getenv("MEMORO_GEMINI_EMBED_MODEL"); embedModel != "" {
		config.Gemini.EmbedModel = embedModel
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("MEMORO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // MEMORO_ prefix takes priority
	}
	if model := os.Getenv("MEMORO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// Whisper configuration
	if url := os.Getenv("MEMORO_WHISPER_URL"); url != "" {
		config.Whisper.URL = url
	}

	// Maintenance configuration
	if enabled := os.Getenv("MEMORO_MAINTENANCE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Maintenance.Enabled = e
		}
	}
	if schedule := os.Getenv("MEMORO_MAINTENANCE_SCHEDULE"); schedule != "" {
		config.Maintenance.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
