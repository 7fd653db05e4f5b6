package otel

import (
	"fmt"
	"time"
)

// Config holds the OTLP trace exporter configuration.
type Config struct {
	// Endpoint is the OTLP HTTP collector address (host:port). Empty
	// disables tracing; the module then boots as a no-op.
	Endpoint string `yaml:"endpoint"`

	// ServiceName tags exported spans. Defaults to "parley".
	ServiceName string `yaml:"service_name"`

	// Environment is the deployment environment attribute (dev, prod).
	Environment string `yaml:"environment"`

	// Insecure disables TLS towards the collector, for localhost agents.
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of traces to sample, 0 to 1.
	// Defaults to 1 (sample everything).
	SampleRatio *float64 `yaml:"sample_ratio"`

	// FlushTimeout bounds the final span flush on shutdown. Defaults to 5s.
	FlushTimeout string `yaml:"flush_timeout"`
}

func (c *Config) defaults() {
	if c.ServiceName == "" {
		c.ServiceName = "parley"
	}
	if c.FlushTimeout == "" {
		c.FlushTimeout = "5s"
	}
}

func (c *Config) sampleRatio() float64 {
	if c.SampleRatio == nil {
		return 1
	}
	return *c.SampleRatio
}

func (c *Config) parsedFlushTimeout() time.Duration {
	d, err := time.ParseDuration(c.FlushTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.FlushTimeout); err != nil {
		return fmt.Errorf("observability.otel: invalid flush_timeout %q: %w", c.FlushTimeout, err)
	}
	if r := c.sampleRatio(); r < 0 || r > 1 {
		return fmt.Errorf("observability.otel: sample_ratio %v out of range [0,1]", r)
	}
	return nil
}
