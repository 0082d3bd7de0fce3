package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "deepseek-chat", cfg.Moderator.ModelID)
	assert.Equal(t, 3*time.Second, cfg.Debate.TurnDelay)
	assert.Equal(t, 6, cfg.Debate.ContextWindow)
	assert.Equal(t, 8000, cfg.Orchestrator.MaxTranscriptTokens)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
log:
  level: debug
  format: console
debate:
  turn_delay: 500ms
  context_window: 4
redis:
  enabled: true
  addr: "redis:6379"
`), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Debate.TurnDelay)
	assert.Equal(t, 4, cfg.Debate.ContextWindow)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	// Untouched sections keep their defaults.
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/does/not/exist.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9999\"\n"), 0o600))

	t.Setenv("QUORUM_SERVER_ADDR", ":7777")
	t.Setenv("QUORUM_DEBATE_TURN_DELAY", "250ms")
	t.Setenv("QUORUM_REDIS_ENABLED", "true")
	t.Setenv("QUORUM_LLM_REQUESTS_PER_SECOND", "5.5")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Debate.TurnDelay)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5.5, cfg.LLM.RequestsPerSecond)
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("CUSTOM_LOG_LEVEL", "warn")
	cfg, err := NewLoader().WithEnvPrefix("CUSTOM").Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"empty moderator model", func(c *Config) { c.Moderator.ModelID = "" }},
		{"zero turn delay", func(c *Config) { c.Debate.TurnDelay = 0 }},
		{"zero context window", func(c *Config) { c.Debate.ContextWindow = 0 }},
		{"redis enabled without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
		{"search enabled without base url", func(c *Config) { c.Search.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoaderCustomValidator(t *testing.T) {
	_, err := NewLoader().WithValidator(func(c *Config) error {
		return os.ErrInvalid
	}).Load()
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))
	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}
