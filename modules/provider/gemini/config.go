package gemini

import "strings"

// defaultModel balances latency and quality for chat relay work.
const defaultModel = "gemini-1.5-flash"

// defaultAPIKeyEnv is consulted when no inline api_key is configured.
const defaultAPIKeyEnv = "GEMINI_API_KEY"

// Config holds the YAML-decoded configuration for the Gemini provider.
type Config struct {
	APIKey        string   `yaml:"api_key"`
	APIKeyEnv     string   `yaml:"api_key_env"`
	Model         string   `yaml:"model"`
	MaxTokens     int      `yaml:"max_tokens"`
	ContextWindow int      `yaml:"context_window"`
	Temperature   *float64 `yaml:"temperature"`
}

// defaults fills in zero-value fields.
func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
}

// contextWindowForModel returns the context window size for the configured
// model. An explicit override wins; otherwise the size is inferred from the
// model family.
func (c *Config) contextWindowForModel() int {
	if c.ContextWindow > 0 {
		return c.ContextWindow
	}
	switch {
	case strings.Contains(c.Model, "1.5-pro"):
		return 2_000_000
	case strings.Contains(c.Model, "1.5-flash"), strings.Contains(c.Model, "2.0"):
		return 1_000_000
	case strings.Contains(c.Model, "1.0"):
		return 32_768
	default:
		return 1_000_000
	}
}
