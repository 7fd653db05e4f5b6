package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/toolset"
)

// remoteTool adapts a single MCP server tool to toolset.Tool. Each
// invocation opens a fresh connection as the principal the tool was
// enumerated for.
type remoteTool struct {
	module      *Module
	principal   auth.Principal
	name        string
	description string
	schema      json.RawMessage
}

func newRemoteTool(m *Module, p auth.Principal, t mcp.Tool) (*remoteTool, error) {
	schema, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal input schema for %q: %w", t.Name, err)
	}
	return &remoteTool{
		module:      m,
		principal:   p,
		name:        t.Name,
		description: t.Description,
		schema:      schema,
	}, nil
}

func (r *remoteTool) Name() string            { return r.name }
func (r *remoteTool) Description() string     { return r.description }
func (r *remoteTool) Schema() json.RawMessage { return r.schema }

// Invoke implements toolset.Tool.
func (r *remoteTool) Invoke(ctx context.Context, args json.RawMessage) (toolset.Output, error) {
	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return toolset.Output{
				Content: fmt.Sprintf("invalid arguments: %v", err),
				IsError: true,
			}, nil
		}
	}

	c, err := r.module.connect(ctx, r.principal)
	if err != nil {
		return toolset.Output{}, fmt.Errorf("mcp: connect: %w", err)
	}
	defer func() { _ = c.Close() }()

	callCtx, cancel := context.WithTimeout(ctx, r.module.config.parsedTimeout())
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = r.name
	req.Params.Arguments = arguments

	result, err := c.CallTool(callCtx, req)
	if err != nil {
		return toolset.Output{}, fmt.Errorf("mcp: call %q: %w", r.name, err)
	}

	return toolset.Output{
		Content: flattenContent(result.Content),
		IsError: result.IsError,
	}, nil
}

// flattenContent joins the text blocks of an MCP tool result. Non-text
// content is skipped.
func flattenContent(blocks []mcp.Content) string {
	var parts []string
	for _, block := range blocks {
		if tc, ok := mcp.AsTextContent(block); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
