package retention

import (
	"fmt"
	"time"
)

// Config holds transcript retention configuration.
type Config struct {
	// MaxAge is how long turns are kept. Empty disables pruning and
	// the module is inert.
	MaxAge string `yaml:"max_age"`

	// Schedule is a 5-field cron expression for the prune job.
	// Defaults to "0 3 * * *" (daily at 03:00).
	Schedule string `yaml:"schedule"`
}

func (c *Config) defaults() {
	if c.Schedule == "" {
		c.Schedule = "0 3 * * *"
	}
}

func (c *Config) parsedMaxAge() time.Duration {
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) validate() error {
	if c.MaxAge == "" {
		return nil
	}
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return fmt.Errorf("retention: invalid max_age %q: %w", c.MaxAge, err)
	}
	if d <= 0 {
		return fmt.Errorf("retention: max_age must be positive, got %q", c.MaxAge)
	}
	return nil
}
