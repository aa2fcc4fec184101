package config

import (
	"fmt"
	"strings"

	"github.com/avass/gemgram/internal/core"
)

// Validate checks the structural integrity of a loaded configuration:
// the version is supported, every module ID refers to a registered module,
// and at least one channel and one provider module are configured.
func Validate(cfg *Config) error {
	if cfg.Version != supportedVersion {
		return fmt.Errorf("config: unsupported version %q (expected %q)", cfg.Version, supportedVersion)
	}

	var hasChannel, hasProvider bool
	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			return fmt.Errorf("config: unknown module %q (not compiled into this binary)", id)
		}
		switch {
		case strings.HasPrefix(id, "channel."):
			hasChannel = true
		case strings.HasPrefix(id, "provider."):
			hasProvider = true
		}
	}

	if !hasChannel {
		return fmt.Errorf("config: no channel module configured")
	}
	if !hasProvider {
		return fmt.Errorf("config: no provider module configured")
	}

	if cfg.Relay.Workers < 0 {
		return fmt.Errorf("config: relay.workers must be non-negative, got %d", cfg.Relay.Workers)
	}
	if cfg.Relay.InboxSize < 0 {
		return fmt.Errorf("config: relay.inbox_size must be non-negative, got %d", cfg.Relay.InboxSize)
	}

	return nil
}
