// Package remote implements the auth.remote module, verifying bearer
// tokens against an external identity provider and proxying credential
// exchange (login and signup) to it.
package remote

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ auth.Verifier     = (*Module)(nil)
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Module verifies tokens against the identity provider's user endpoint
// and exchanges credentials through its token and signup endpoints.
type Module struct {
	config Config
	logger *slog.Logger
	client *http.Client
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "auth.remote",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("auth.remote: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	m.client = &http.Client{Timeout: m.config.parsedTimeout()}
	security.SeedCredential(ctx, "auth.remote.api_key", m.config.APIKey)

	ctx.RegisterService("auth.verifier", m)
	ctx.RegisterService("auth.client", m)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.BaseURL == "" {
		return fmt.Errorf("auth.remote: base_url is required")
	}
	if m.config.APIKey == "" {
		return fmt.Errorf("auth.remote: api_key is required")
	}
	return m.config.validateTimeout()
}
