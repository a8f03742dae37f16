package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Session modes for the LLM adapter
const (
	SessionModePersistent = "persistent"
	SessionModePerCall    = "per-call"
)

// TTS protocol variants
const (
	TTSProtocolSync  = "sync"
	TTSProtocolJob   = "job"
	TTSProtocolQuery = "query"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Discord
	DiscordBotToken string

	// LLM
	LLMBaseURL  string
	LLMAPIKey   string
	ModelID     string
	SessionMode string // "persistent" or "per-call"

	// Prompt
	PromptTemplatePath string
	HistoryWindow      int // Number of channel messages pulled into the prompt

	// TTS
	TTSProtocol string // "sync", "job" or "query"
	TTSBaseURL  string
	TTSAPIKey   string
	TTSSpeaker  int

	// Voice
	FallbackAudioPath string // Optional pre-recorded clip played when synthesis fails

	// Wake
	WakeURL string // Endpoint pinged by /wake to bring the bot process up
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		DiscordBotToken:    getEnv("DISCORD_BOT_TOKEN", ""),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		ModelID:            getEnv("MODEL_ID", "gemini-2.0-flash"),
		SessionMode:        getEnv("SESSION_MODE", SessionModePersistent),
		PromptTemplatePath: getEnv("PROMPT_TEMPLATE_PATH", "prompt.txt"),
		HistoryWindow:      getEnvInt("HISTORY_WINDOW", 7),
		TTSProtocol:        getEnv("TTS_PROTOCOL", TTSProtocolQuery),
		TTSBaseURL:         getEnv("TTS_BASE_URL", "http://localhost:50021"),
		TTSAPIKey:          getEnv("TTS_API_KEY", ""),
		TTSSpeaker:         getEnvInt("TTS_SPEAKER", 8),
		FallbackAudioPath:  getEnv("FALLBACK_AUDIO_PATH", ""),
		WakeURL:            getEnv("WAKE_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.LLMBaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL is required")
	}
	if c.ModelID == "" {
		return fmt.Errorf("MODEL_ID is required")
	}
	switch c.SessionMode {
	case SessionModePersistent, SessionModePerCall:
	default:
		return fmt.Errorf("SESSION_MODE must be %q or %q, got %q", SessionModePersistent, SessionModePerCall, c.SessionMode)
	}
	switch c.TTSProtocol {
	case TTSProtocolSync, TTSProtocolJob, TTSProtocolQuery:
	default:
		return fmt.Errorf("TTS_PROTOCOL must be one of sync, job, query, got %q", c.TTSProtocol)
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("HISTORY_WINDOW must be at least 1")
	}
	// Discord token and TTS key are optional for development
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
