package config

import (
	"fmt"
	"time"
)

// Config is the full engine configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" env:"SERVER"`
	Log          LogConfig          `yaml:"log" env:"LOG"`
	LLM          LLMConfig          `yaml:"llm" env:"LLM"`
	Moderator    ModeratorConfig    `yaml:"moderator" env:"MODERATOR"`
	Redis        RedisConfig        `yaml:"redis" env:"REDIS"`
	Search       SearchConfig       `yaml:"search" env:"SEARCH"`
	Debate       DebateConfig       `yaml:"debate" env:"DEBATE"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`
	Metrics      MetricsConfig      `yaml:"metrics" env:"METRICS"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	MetricsAddr     string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format string `yaml:"format" env:"FORMAT"`
}

// LLMConfig holds the shared provider transport settings.
type LLMConfig struct {
	APIKey            string        `yaml:"api_key" env:"API_KEY"`
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int           `yaml:"burst" env:"BURST"`
}

// ModeratorConfig selects and shapes the moderator agent.
type ModeratorConfig struct {
	// ModelID is a model catalog id.
	ModelID      string `yaml:"model_id" env:"MODEL_ID"`
	SystemPrompt string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
}

// RedisConfig holds the optional pub/sub notifier settings.
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	Addr          string `yaml:"addr" env:"ADDR"`
	Password      string `yaml:"password" env:"PASSWORD"`
	DB            int    `yaml:"db" env:"DB"`
	ChannelPrefix string `yaml:"channel_prefix" env:"CHANNEL_PREFIX"`
}

// SearchConfig points at a SearxNG-compatible endpoint used by
// search-capable specialists.
type SearchConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// DebateConfig paces the round-robin scheduler.
type DebateConfig struct {
	TurnDelay     time.Duration `yaml:"turn_delay" env:"TURN_DELAY"`
	ContextWindow int           `yaml:"context_window" env:"CONTEXT_WINDOW"`
}

// OrchestratorConfig tunes the decision loop.
type OrchestratorConfig struct {
	MaxTranscriptTokens int `yaml:"max_transcript_tokens" env:"MAX_TRANSCRIPT_TOKENS"`
}

// MetricsConfig names the Prometheus namespace.
type MetricsConfig struct {
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		LLM: LLMConfig{
			Timeout:           120 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Moderator: ModeratorConfig{
			ModelID: "deepseek-chat",
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			ChannelPrefix: "conversation.",
		},
		Search: SearchConfig{
			Timeout: 10 * time.Second,
		},
		Debate: DebateConfig{
			TurnDelay:     3 * time.Second,
			ContextWindow: 6,
		},
		Orchestrator: OrchestratorConfig{
			MaxTranscriptTokens: 8000,
		},
		Metrics: MetricsConfig{
			Namespace: "quorum",
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q is not one of json, console", c.Log.Format)
	}
	if c.Moderator.ModelID == "" {
		return fmt.Errorf("moderator.model_id must not be empty")
	}
	if c.Debate.TurnDelay <= 0 {
		return fmt.Errorf("debate.turn_delay must be positive")
	}
	if c.Debate.ContextWindow <= 0 {
		return fmt.Errorf("debate.context_window must be positive")
	}
	if c.Search.Enabled && c.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url must not be empty when search is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must not be empty when redis is enabled")
	}
	return nil
}
