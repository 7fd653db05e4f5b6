// Package anthropic implements the provider.anthropic module, backing the
// agent with the Anthropic Messages API for completions and streaming.
package anthropic

import (
	"log/slog"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
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

// Provider implements the Anthropic Messages API as a parley provider
// module. A Provider with missing credentials still provisions; requests
// against it fail with provider.ErrUnconfigured so callers can degrade.
type Provider struct {
	config        Config
	logger        *slog.Logger
	client        *sdkanthropic.Client
	apiKey        string
	contextWindow int
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
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

	// Inline key takes precedence over the environment variable.
	p.apiKey = p.config.APIKey
	if p.apiKey == "" {
		p.apiKey = os.Getenv(p.config.APIKeyEnv)
	}

	opts := []option.RequestOption{
		// The agent loop owns retry behavior; SDK retries would stack on
		// top of it and stretch a failed exchange past the stall guard.
		option.WithMaxRetries(0),
	}
	if p.apiKey != "" {
		opts = append(opts, option.WithAPIKey(p.apiKey))
	}
	if p.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.config.BaseURL))
	}

	client := sdkanthropic.NewClient(opts...)
	p.client = &client

	p.contextWindow = p.config.contextWindow()

	if p.apiKey == "" {
		p.logger.Warn("no api_key set, completion requests will fail until one is configured")
	}
	security.SeedCredential(ctx, "provider.anthropic.api_key", p.apiKey)

	ctx.RegisterService("provider.anthropic", p)

	return nil
}

// Validate implements core.Validator. A missing api_key is not a validation
// error: it is reported per request as provider.ErrUnconfigured.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// configured reports whether the provider has the credentials and model
// needed to serve completion requests.
func (p *Provider) configured() bool {
	return p.apiKey != "" && p.config.Model != ""
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// ContextWindowSize returns the maximum context window in tokens.
func (p *Provider) ContextWindowSize() int {
	return p.contextWindow
}
