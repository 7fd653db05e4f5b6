// Package openai implements the provider.openai module, providing OpenAI
// Chat Completions API support with streaming and function calling.
package openai

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// Provider implements the OpenAI Chat Completions API as a parley provider
// module. A Provider with missing credentials still provisions; requests
// against it fail with provider.ErrUnconfigured so callers can degrade.
type Provider struct {
	config        Config
	logger        *slog.Logger
	client        *http.Client
	streamClient  *http.Client
	contextWindow int
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger

	timeout := p.config.parsedTimeout()

	// Separate clients for non-streaming and streaming requests.
	// http.Client.Timeout is a hard deadline for the entire response body,
	// which would kill long-lived SSE streams. The streaming client uses no
	// timeout; cancellation is handled via context.
	p.client = &http.Client{
		Timeout: timeout,
	}
	p.streamClient = &http.Client{}

	// Resolve context window: explicit config > known model map > 0.
	if p.config.ContextWindow > 0 {
		p.contextWindow = p.config.ContextWindow
	} else if size, ok := knownContextWindows[p.config.Model]; ok {
		p.contextWindow = size
	}

	if p.config.APIKey == "" {
		p.logger.Warn("no api_key set, completion requests will fail until one is configured")
	}
	security.SeedCredential(ctx, "provider.openai.api_key", p.config.APIKey)

	ctx.RegisterService("provider.openai", p)

	return nil
}

// Validate implements core.Validator. A missing api_key or model is not a
// validation error: it is reported per request as provider.ErrUnconfigured.
func (p *Provider) Validate() error {
	if err := p.config.validateTimeout(); err != nil {
		return err
	}
	if p.config.Model != "" && p.contextWindow <= 0 {
		return errors.New("provider.openai: context_window must be set for unknown models")
	}
	return nil
}

// configured reports whether the provider has the credentials and model
// needed to serve completion requests.
func (p *Provider) configured() bool {
	return p.config.APIKey != "" && p.config.Model != ""
}
