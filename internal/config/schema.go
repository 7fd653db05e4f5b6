// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for parley.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir is the root directory for persistent data (defaults to "./data").
	DataDir string `yaml:"data_dir,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.openai").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Agent holds settings for the reasoning loop.
	Agent AgentConfig `yaml:"agent,omitempty"`

	// Security holds optional security settings.
	Security *SecurityConfig `yaml:"security,omitempty"`
}

// AgentConfig controls the reasoning loop behavior.
type AgentConfig struct {
	// MaxIterations caps the number of tool-use cycles per request.
	// Zero means the built-in default.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// SystemPrompt overrides the built-in system prompt when set.
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RateLimits maps an event kind ("message", "tool_call", "auth")
	// to its sliding-window rule.
	RateLimits map[string]RateLimitRule `yaml:"rate_limits,omitempty"`

	// RedactLiterals lists extra secret values to scrub from log output.
	RedactLiterals []string `yaml:"redact_literals,omitempty"`
}

// RateLimitRule is a sliding-window limit: at most Limit events per Window.
type RateLimitRule struct {
	Window time.Duration `yaml:"-"`
	Limit  int           `yaml:"limit"`
}

// UnmarshalYAML decodes the window field from a duration string ("30s", "1m").
func (r *RateLimitRule) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Window string `yaml:"window"`
		Limit  int    `yaml:"limit"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	r.Limit = raw.Limit
	if raw.Window == "" {
		return nil
	}
	d, err := time.ParseDuration(raw.Window)
	if err != nil {
		return fmt.Errorf("invalid window %q: %w", raw.Window, err)
	}
	r.Window = d
	return nil
}
