package config

import (
	"maps"
	"slices"
)

// Resolve returns the configured module IDs in sorted order, so modules
// load in the same sequence on every start.
func Resolve(cfg *Config) []string {
	return slices.Sorted(maps.Keys(cfg.Modules))
}
