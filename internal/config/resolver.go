package config

import (
	"maps"
	"slices"
)

// Resolve lists the configured module IDs in sorted order. The app loads
// modules in exactly this order, which keeps startup deterministic across
// runs of the same config.
func Resolve(cfg *Config) []string {
	return slices.Sorted(maps.Keys(cfg.Modules))
}
