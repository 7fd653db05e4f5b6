package gateway

import (
	"fmt"
	"time"
)

// Config holds HTTP gateway configuration.
type Config struct {
	// Bind is the listen address, host:port.
	Bind string `yaml:"bind"`

	// ProviderService names the service registry entry for the model
	// backend. Defaults to "provider.openai". A missing service is
	// tolerated; exchanges then complete with a configuration-error
	// response.
	ProviderService string `yaml:"provider_service"`

	// ToolSources lists the service registry names of tool sources to
	// aggregate per request (e.g. "tools.websearch", "tools.mcp").
	ToolSources []string `yaml:"tool_sources"`

	// SourceTimeout bounds tool enumeration per source. Defaults to 5s.
	SourceTimeout string `yaml:"source_timeout"`

	// AllowedOrigins configures CORS. Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`

	ReadTimeout string `yaml:"read_timeout"`

	// WriteTimeout bounds how long the server may spend writing a
	// response. Empty disables it: chat responses stream for as long
	// as the reasoning loop runs (5m wall-clock cap by default), and a
	// server deadline at or below that cap would sever the connection
	// before the terminal done event. If set, keep it comfortably
	// above agent.timeout.
	WriteTimeout string `yaml:"write_timeout"`

	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ProviderService == "" {
		c.ProviderService = "provider.openai"
	}
	if c.SourceTimeout == "" {
		c.SourceTimeout = "5s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "10s"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "5s"
	}
}

func (c *Config) validateDurations() error {
	for name, value := range map[string]string{
		"source_timeout":   c.SourceTimeout,
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("gateway: invalid %s %q: %w", name, value, err)
		}
	}
	return nil
}

// duration parses a validated duration string, falling back when the
// value never passed validation (e.g. in tests building Config directly).
func duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
