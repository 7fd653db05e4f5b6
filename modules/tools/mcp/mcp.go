// Package mcp implements the tools.mcp module, a tool source backed by a
// remote MCP server over streamable HTTP. The caller's credential is
// forwarded on every connection, so the server can scope its tool list
// and tool behavior per user.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/core"
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

// Module exposes the tools of a remote MCP server as a tool source.
// Connections are short-lived: one to enumerate tools, one per call.
type Module struct {
	config Config
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tools.mcp",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mcp: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	ctx.RegisterService("tools.mcp", m)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.URL == "" {
		return fmt.Errorf("mcp: url is required")
	}
	return m.config.validateTimeout()
}

// Name implements toolset.Source.
func (m *Module) Name() string {
	if m.config.Name != "" {
		return m.config.Name
	}
	return "mcp"
}

// Tools implements toolset.Source. It connects to the server as the
// principal and enumerates the tools offered to them.
func (m *Module) Tools(ctx context.Context, p auth.Principal) ([]toolset.Tool, error) {
	c, err := m.connect(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: mcp: %v", toolset.ErrSourceUnavailable, err)
	}
	defer func() { _ = c.Close() }()

	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: mcp: list tools: %v", toolset.ErrSourceUnavailable, err)
	}

	tools := make([]toolset.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		rt, err := newRemoteTool(m, p, t)
		if err != nil {
			m.logger.Warn("skipping tool with unusable schema", "tool", t.Name, "error", err)
			continue
		}
		tools = append(tools, rt)
	}

	return tools, nil
}

// connect dials the MCP server as the principal and completes the
// initialize handshake. The caller must Close the returned client.
func (m *Module) connect(ctx context.Context, p auth.Principal) (*client.Client, error) {
	headers := make(map[string]string, len(m.config.Headers)+1)
	for k, v := range m.config.Headers {
		headers[k] = v
	}
	if p.Token != "" {
		headers["Authorization"] = "Bearer " + p.Token
	}

	c, err := client.NewStreamableHttpClient(m.config.URL,
		transport.WithHTTPHeaders(headers),
		transport.WithHTTPTimeout(m.config.parsedTimeout()),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "parley",
		Version: "1.0.0",
	}

	initCtx, cancel := context.WithTimeout(ctx, m.config.parsedTimeout())
	defer cancel()

	if _, err := c.Initialize(initCtx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	return c, nil
}
