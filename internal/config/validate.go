package config

import (
	"errors"
	"fmt"

	"github.com/parleyhq/parley/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present,
// and checks that all referenced module IDs exist in the registry.
// It also validates agent and security settings.
//
// Registered modules absent from the config are simply not loaded;
// absence is never an error.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	if cfg.Agent.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("config: agent.max_iterations must not be negative, got %d", cfg.Agent.MaxIterations))
	}

	errs = append(errs, validateSecurity(cfg.Security)...)

	return errors.Join(errs...)
}

func validateSecurity(sec *SecurityConfig) []error {
	if sec == nil {
		return nil
	}
	var errs []error

	for kind, rule := range sec.RateLimits {
		switch kind {
		case "message", "tool_call", "auth":
		default:
			errs = append(errs, fmt.Errorf("config: security.rate_limits: unknown kind %q", kind))
		}
		if rule.Window <= 0 {
			errs = append(errs, fmt.Errorf("config: security.rate_limits.%s: window must be positive", kind))
		}
		if rule.Limit <= 0 {
			errs = append(errs, fmt.Errorf("config: security.rate_limits.%s: limit must be positive", kind))
		}
	}

	return errs
}
