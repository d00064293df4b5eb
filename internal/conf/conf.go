package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anthropics/discord-gemini-bot/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Discord configuration
	Discord DiscordConfig

	// Oracle configuration (Gemini or OpenAI-compatible)
	Oracle OracleConfig

	// Auto-action pipeline configuration
	AutoAction AutoActionConfig

	// Conversation (mention Q&A) configuration
	Chat ChatConfig

	// Settings persistence
	Settings SettingsConfig

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	// Debug mode
	Debug bool
}

// DiscordConfig contains Discord configuration
type DiscordConfig struct {
	Token string
}

// OracleConfig contains reasoning-service configuration
type OracleConfig struct {
	// Provider selects the backend: "gemini" (default) or "openai".
	Provider string

	GeminiAPIKey       string
	GeminiModel        string
	GeminiEnableSearch bool

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// AutoActionConfig contains auto-action pipeline configuration
type AutoActionConfig struct {
	EveryNMessages    int // trigger threshold, 0 disables the pipeline
	WindowSize        int // messages kept per channel
	MaxActions        int // max actions per cycle
	MaxTimeoutMinutes int // ceiling for timeout durations
}

// ChatConfig contains mention Q&A configuration
type ChatConfig struct {
	MaxContextMessages  int
	UserCooldownSeconds int
	DefaultStyle        string
}

// SettingsConfig contains settings persistence configuration
type SettingsConfig struct {
	DBPath string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	maxTurns := envInt("MAX_TURNS", 20)

	// Backward compatible: without MAX_CONTEXT_MESSAGES, keep MAX_TURNS*2.
	maxContext := envInt("MAX_CONTEXT_MESSAGES", maxTurns*2)

	every := envInt("AUTO_ACTION_EVERY_N_MESSAGES", 0)
	if every < 0 {
		every = 0
	}

	windowSize := envInt("AUTO_ACTION_WINDOW_SIZE", every)
	if windowSize < 1 {
		windowSize = 1
	}

	dbPath := os.Getenv("SETTINGS_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".discord-gemini-bot", "settings.db")
	}

	promptsConfig, _ := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))

	return &Config{
		Discord: DiscordConfig{
			Token: os.Getenv("DISCORD_TOKEN"),
		},
		Oracle: OracleConfig{
			Provider:           strings.ToLower(envString("ORACLE_PROVIDER", "gemini")),
			GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
			GeminiModel:        envString("GEMINI_MODEL", "gemini-1.5-flash"),
			GeminiEnableSearch: envBool("GEMINI_ENABLE_SEARCH", false),
			OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
			OpenAIModel:        os.Getenv("OPENAI_MODEL"),
		},
		AutoAction: AutoActionConfig{
			EveryNMessages:    every,
			WindowSize:        windowSize,
			MaxActions:        maxInt(0, envInt("AUTO_ACTION_MAX_ACTIONS", 3)),
			MaxTimeoutMinutes: maxInt(1, envInt("AUTO_ACTION_MAX_TIMEOUT_MINUTES", 10)),
		},
		Chat: ChatConfig{
			MaxContextMessages:  maxContext,
			UserCooldownSeconds: maxInt(0, envInt("USER_COOLDOWN_SECONDS", 0)),
			DefaultStyle:        os.Getenv("DEFAULT_RESPONSE_STYLE"),
		},
		Settings: SettingsConfig{
			DBPath: dbPath,
		},
		Prompts: promptsConfig,
		Debug:   os.Getenv("DEBUG") == "true",
	}
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return fallback
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ToPlannerConfig converts to the plan-acquisition configuration
func (c *Config) ToPlannerConfig() usecase.PlannerConfig {
	prompts := c.Prompts
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return usecase.PlannerConfig{
		PlannerPrompt:     prompts.PlannerPrompt(c.AutoAction.MaxActions, c.AutoAction.MaxTimeoutMinutes),
		DeciderPrompt:     prompts.AutoAction.DeciderPrompt,
		EmojiPrompt:       prompts.AutoAction.EmojiPrompt,
		MaxActions:        c.AutoAction.MaxActions,
		MaxTimeoutMinutes: c.AutoAction.MaxTimeoutMinutes,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return &ConfigError{Field: "DISCORD_TOKEN", Message: "required"}
	}
	switch c.Oracle.Provider {
	case "gemini":
		if c.Oracle.GeminiAPIKey == "" {
			return &ConfigError{Field: "GEMINI_API_KEY", Message: "required"}
		}
	case "openai":
		if c.Oracle.OpenAIAPIKey == "" {
			return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
		}
	default:
		return &ConfigError{Field: "ORACLE_PROVIDER", Message: "must be gemini or openai"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
