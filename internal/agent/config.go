package agent

import "time"

// Default values for Config.
const (
	DefaultMaxIterations = 8
	DefaultTimeout       = 5 * time.Minute
	DefaultLoopThreshold = 3
)

// Config controls the behavior of the reasoning loop.
type Config struct {
	// MaxIterations is the maximum number of THINK cycles before the
	// loop is declared stalled.
	MaxIterations int

	// Timeout is the maximum wall-clock duration for the loop.
	Timeout time.Duration

	// LoopThreshold is how many times the same tool call (name + args)
	// can repeat before the loop is considered stuck.
	LoopThreshold int
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LoopThreshold <= 0 {
		c.LoopThreshold = DefaultLoopThreshold
	}
	return c
}
