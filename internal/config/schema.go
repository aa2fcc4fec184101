// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for gemgram.
package config

import "gopkg.in/yaml.v3"

// supportedVersion is the only config format version currently accepted.
const supportedVersion = "1"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Relay holds the settings for the turn orchestrator.
	Relay RelayConfig `yaml:"relay,omitempty"`
}

// RelayConfig configures the relay's worker pool and reply texts.
type RelayConfig struct {
	// Workers is the number of concurrent turn workers.
	Workers int `yaml:"workers"`

	// InboxSize is the capacity of the inbound message queue.
	InboxSize int `yaml:"inbox_size"`

	// MaxHistory caps the number of messages kept per conversation.
	MaxHistory int `yaml:"max_history"`

	// SystemPrompt is prepended to every generation request.
	SystemPrompt string `yaml:"system_prompt"`

	// WelcomeText overrides the /start reply.
	WelcomeText string `yaml:"welcome_text"`

	// ResetText overrides the /new confirmation reply.
	ResetText string `yaml:"reset_text"`

	// ApologyText overrides the reply sent when generation fails.
	ApologyText string `yaml:"apology_text"`
}
