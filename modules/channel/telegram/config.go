package telegram

import (
	"fmt"
	"os"
	"time"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	defaultPollTimeout = 30 * time.Second
	defaultPollLimit   = 100

	// Streaming defaults: an intermediate edit is flushed when either the
	// elapsed interval or the pending-bytes threshold is crossed.
	defaultStreamFlushInterval = 1250 * time.Millisecond
	defaultStreamSizeThreshold = 96
	defaultStreamMaxErrors     = 5
	defaultWebhookMaxConns     = 40
	maxMessageLength           = 4096
)

// Config holds the Telegram channel configuration.
type Config struct {
	// Token is the bot token from @BotFather. Required unless TokenEnv is set.
	Token string `yaml:"token"`

	// TokenEnv names an environment variable to read the token from.
	// Takes precedence over Token when the variable is non-empty.
	TokenEnv string `yaml:"token_env"`

	// BaseURL overrides the Bot API endpoint. Defaults to the official API.
	BaseURL string `yaml:"base_url"`

	// Mode selects how updates are received: "polling" (default) or "webhook".
	Mode string `yaml:"mode"`

	// WebhookURL is the public HTTPS URL Telegram delivers updates to.
	// Required when Mode is "webhook".
	WebhookURL string `yaml:"webhook_url"`

	// WebhookSecret is sent by Telegram in the X-Telegram-Bot-Api-Secret-Token
	// header and verified on every delivery. Generated if empty.
	WebhookSecret string `yaml:"webhook_secret"`

	// AllowedUsers restricts which user IDs or usernames may talk to the
	// bot. Together with AllowedGroups, an empty list denies everyone.
	AllowedUsers []string `yaml:"allowed_users"`

	// AllowedGroups restricts which group chat IDs the bot responds in.
	AllowedGroups []string `yaml:"allowed_groups"`

	// PollTimeout is the long-poll timeout for getUpdates.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// PollLimit caps the number of updates fetched per getUpdates call.
	PollLimit int `yaml:"poll_limit"`

	// Streaming toggles progressive message editing while a response is
	// being generated. On by default; set to false to always deliver the
	// full response at once.
	Streaming *bool `yaml:"streaming"`

	// StreamFlushInterval is the minimum time between intermediate edits.
	StreamFlushInterval time.Duration `yaml:"stream_flush_interval"`

	// StreamSizeThreshold is the pending-bytes count that forces an
	// intermediate edit before the interval elapses.
	StreamSizeThreshold int `yaml:"stream_size_threshold"`
}

// streamingEnabled reports the effective streaming setting; an absent
// config entry means enabled.
func (c *Config) streamingEnabled() bool {
	return c.Streaming == nil || *c.Streaming
}

// resolveToken returns the bot token, preferring the environment variable.
func (c *Config) resolveToken() string {
	if c.TokenEnv != "" {
		if v := os.Getenv(c.TokenEnv); v != "" {
			return v
		}
	}
	return c.Token
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Mode == "" {
		c.Mode = "polling"
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.PollLimit <= 0 {
		c.PollLimit = defaultPollLimit
	}
	if c.StreamFlushInterval <= 0 {
		c.StreamFlushInterval = defaultStreamFlushInterval
	}
	if c.StreamSizeThreshold <= 0 {
		c.StreamSizeThreshold = defaultStreamSizeThreshold
	}
}

func (c *Config) validate() error {
	if c.resolveToken() == "" {
		if c.TokenEnv != "" {
			return fmt.Errorf("telegram: token is empty and environment variable %q is not set", c.TokenEnv)
		}
		return fmt.Errorf("telegram: token is required")
	}

	switch c.Mode {
	case "polling":
	case "webhook":
		if c.WebhookURL == "" {
			return fmt.Errorf("telegram: webhook_url is required in webhook mode")
		}
	default:
		return fmt.Errorf("telegram: mode must be %q or %q, got %q", "polling", "webhook", c.Mode)
	}

	if c.PollLimit > 100 {
		return fmt.Errorf("telegram: poll_limit must be at most 100, got %d", c.PollLimit)
	}
	if c.StreamSizeThreshold > maxMessageLength {
		return fmt.Errorf("telegram: stream_size_threshold must be at most %d, got %d", maxMessageLength, c.StreamSizeThreshold)
	}

	return nil
}
