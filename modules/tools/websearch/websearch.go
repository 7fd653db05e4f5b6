// Package websearch implements the tools.websearch module, a web search
// tool source backed by the Tavily API.
package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/security"
	"github.com/parleyhq/parley/internal/toolset"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ toolset.Source    = (*Module)(nil)
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Module exposes a single web_search tool backed by Tavily.
type Module struct {
	config Config
	logger *slog.Logger
	client *http.Client
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tools.websearch",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("websearch: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	m.client = &http.Client{Timeout: m.config.parsedTimeout()}

	if m.config.APIKey == "" {
		m.logger.Warn("no api_key set, web search will be unavailable")
	}
	security.SeedCredential(ctx, "tools.websearch.api_key", m.config.APIKey)

	ctx.RegisterService("tools.websearch", m)

	return nil
}

// Validate implements core.Validator. A missing api_key is not a
// validation error: the source reports itself unavailable per request.
func (m *Module) Validate() error {
	if err := m.config.validateTimeout(); err != nil {
		return err
	}
	if m.config.MaxResults < 0 {
		return fmt.Errorf("websearch: max_results must be non-negative, got %d", m.config.MaxResults)
	}
	return nil
}

// Name implements toolset.Source.
func (m *Module) Name() string {
	return "websearch"
}

// Tools implements toolset.Source. Tavily uses a service-level key, so
// the tool list does not vary per principal.
func (m *Module) Tools(_ context.Context, _ auth.Principal) ([]toolset.Tool, error) {
	if m.config.APIKey == "" {
		return nil, fmt.Errorf("%w: websearch: no api_key configured", toolset.ErrSourceUnavailable)
	}
	return []toolset.Tool{&searchTool{module: m}}, nil
}
