package mcp

import (
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/parleyhq/parley/internal/auth"
)

func TestModuleInfo(t *testing.T) {
	m := &Module{}
	info := m.ModuleInfo()

	if info.ID != "tools.mcp" {
		t.Errorf("expected ID tools.mcp, got %s", info.ID)
	}
	if info.New == nil {
		t.Fatal("New function must not be nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{URL: "https://mcp.example.com/mcp", Timeout: "30s"}, false},
		{"missing url", Config{Timeout: "30s"}, true},
		{"bad timeout", Config{URL: "https://mcp.example.com/mcp", Timeout: "soon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Module{config: tt.config}
			err := m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestName(t *testing.T) {
	m := &Module{}
	if m.Name() != "mcp" {
		t.Errorf("Name() = %q, want mcp", m.Name())
	}

	m.config.Name = "docs-mcp"
	if m.Name() != "docs-mcp" {
		t.Errorf("Name() = %q, want docs-mcp", m.Name())
	}
}

func TestNewRemoteTool_SchemaMarshalled(t *testing.T) {
	m := &Module{}
	tool := mcpgo.NewTool("lookup",
		mcpgo.WithDescription("Look up a document"),
		mcpgo.WithString("id", mcpgo.Required()),
	)

	rt, err := newRemoteTool(m, auth.Principal{UserID: "u1"}, tool)
	if err != nil {
		t.Fatalf("newRemoteTool: %v", err)
	}

	if rt.Name() != "lookup" {
		t.Errorf("name = %q, want lookup", rt.Name())
	}
	if rt.Description() != "Look up a document" {
		t.Errorf("description = %q", rt.Description())
	}
	if len(rt.Schema()) == 0 {
		t.Error("schema must not be empty")
	}
}

func TestFlattenContent(t *testing.T) {
	blocks := []mcpgo.Content{
		mcpgo.TextContent{Type: "text", Text: "first"},
		mcpgo.TextContent{Type: "text", Text: "second"},
	}

	got := flattenContent(blocks)
	if got != "first\nsecond" {
		t.Errorf("flattenContent = %q, want %q", got, "first\nsecond")
	}
}

func TestFlattenContent_Empty(t *testing.T) {
	if got := flattenContent(nil); got != "" {
		t.Errorf("flattenContent(nil) = %q, want empty", got)
	}
}
