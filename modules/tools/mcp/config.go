package mcp

import (
	"fmt"
	"time"
)

// Config holds the remote MCP source configuration.
type Config struct {
	// URL is the streamable HTTP endpoint of the MCP server.
	URL string `yaml:"url"`

	// Name overrides the source name used in warnings and logs.
	Name string `yaml:"name"`

	// Headers are extra HTTP headers sent on every connection.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds the handshake and each tool call. Defaults to 30s.
	Timeout string `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by validateTimeout.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *Config) validateTimeout() error {
	_, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("mcp: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
