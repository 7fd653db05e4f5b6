package anthropic

import (
	"fmt"
	"time"
)

// claudeContextWindow covers the Claude 3.x and 4.x families (200k tokens).
// Set context_window explicitly if Anthropic ships a family with a
// different window.
const claudeContextWindow = 200_000

// Config holds the configuration for the Anthropic provider module.
type Config struct {
	APIKey        string `yaml:"api_key"`
	APIKeyEnv     string `yaml:"api_key_env"`
	Model         string `yaml:"model"`
	BaseURL       string `yaml:"base_url"`
	MaxTokens     int    `yaml:"max_tokens"`
	Timeout       string `yaml:"timeout"`
	ContextWindow int    `yaml:"context_window"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// contextWindow returns the effective context window size: the explicit
// override when set, otherwise the Claude family default.
func (c *Config) contextWindow() int {
	if c.ContextWindow > 0 {
		return c.ContextWindow
	}
	return claudeContextWindow
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider.anthropic: invalid timeout %q: %w", c.Timeout, err)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider.anthropic: max_tokens must not be negative, got %d", c.MaxTokens)
	}
	return nil
}
