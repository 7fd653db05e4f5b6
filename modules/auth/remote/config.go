package remote

import (
	"fmt"
	"time"
)

// Config holds the remote identity provider configuration.
type Config struct {
	// BaseURL is the identity provider's base URL, without trailing slash.
	BaseURL string `yaml:"base_url"`

	// APIKey is the provider's public API key, sent as the apikey header.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each verification or exchange call. Defaults to 10s.
	Timeout string `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by validateTimeout.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

func (c *Config) validateTimeout() error {
	_, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("auth.remote: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
