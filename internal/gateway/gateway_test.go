package gateway

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/internal/core"
)

func mustYAMLNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	return node.Content[0]
}

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	info := g.ModuleInfo()

	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if info.New == nil {
		t.Fatal("New func is nil")
	}
	if _, ok := info.New().(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "{}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:8080" {
		t.Errorf("Bind = %q, want default", g.config.Bind)
	}
	if g.config.ProviderService != "provider.openai" {
		t.Errorf("ProviderService = %q, want provider.openai", g.config.ProviderService)
	}
	if g.config.ReadTimeout != "10s" {
		t.Errorf("ReadTimeout = %q, want 10s", g.config.ReadTimeout)
	}
	if g.config.WriteTimeout != "" {
		t.Errorf("WriteTimeout = %q, want unset", g.config.WriteTimeout)
	}
	if g.config.ShutdownTimeout != "5s" {
		t.Errorf("ShutdownTimeout = %q, want 5s", g.config.ShutdownTimeout)
	}
}

// The server must not impose its own write deadline by default: a
// streamed exchange may legitimately run for the reasoning loop's full
// wall-clock cap, and a server timeout at or below it would cut the
// connection before the terminal done event.
func TestConfig_NoDefaultWriteTimeout(t *testing.T) {
	t.Parallel()

	var c Config
	c.defaults()

	if c.WriteTimeout != "" {
		t.Fatalf("WriteTimeout defaulted to %q, want disabled", c.WriteTimeout)
	}
	if got := duration(c.WriteTimeout, 0); got != 0 {
		t.Errorf("effective write timeout = %v, want 0 (disabled)", got)
	}
	if err := c.validateDurations(); err != nil {
		t.Errorf("empty write_timeout should validate: %v", err)
	}

	// An explicit value still applies.
	c.WriteTimeout = "10m"
	if got := duration(c.WriteTimeout, 0); got != 10*time.Minute {
		t.Errorf("configured write timeout = %v, want 10m", got)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	node := mustYAMLNode(t, `
bind: "0.0.0.0:9090"
provider_service: "provider.anthropic"
tool_sources:
  - tools.websearch
  - tools.mcp
allowed_origins:
  - "https://app.example.com"
read_timeout: 5s
`)
	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "0.0.0.0:9090" {
		t.Errorf("Bind = %q", g.config.Bind)
	}
	if g.config.ProviderService != "provider.anthropic" {
		t.Errorf("ProviderService = %q", g.config.ProviderService)
	}
	if len(g.config.ToolSources) != 2 || g.config.ToolSources[1] != "tools.mcp" {
		t.Errorf("ToolSources = %v", g.config.ToolSources)
	}
	if len(g.config.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", g.config.AllowedOrigins)
	}
	if g.config.ReadTimeout != "5s" {
		t.Errorf("ReadTimeout = %q", g.config.ReadTimeout)
	}
}

func TestGateway_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults ok", mutate: func(*Config) {}},
		{name: "bad bind", mutate: func(c *Config) { c.Bind = "not an address" }, wantErr: true},
		{name: "bad read timeout", mutate: func(c *Config) { c.ReadTimeout = "soon" }, wantErr: true},
		{name: "bad shutdown timeout", mutate: func(c *Config) { c.ShutdownTimeout = "later" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := &Gateway{}
			g.config.defaults()
			tt.mutate(&g.config)

			err := g.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGateway_StartRequiresVerifier(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, t.TempDir())

	g := &Gateway{}
	g.config.defaults()
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	err := g.Start()
	if err == nil {
		t.Fatal("Start should fail without a verifier service")
	}
	if !strings.Contains(err.Error(), "auth.verifier") {
		t.Errorf("error = %v, want mention of auth.verifier", err)
	}
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, t.TempDir())
	appCtx.RegisterService("auth.verifier", &fakeVerifier{})
	appCtx.RegisterService("store.transcripts", &memStore{})

	g := &Gateway{}
	g.config.defaults()
	g.config.Bind = "127.0.0.1:0"
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGateway_StartResolvesToolSources(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, t.TempDir())
	appCtx.RegisterService("auth.verifier", &fakeVerifier{})
	appCtx.RegisterService("store.transcripts", &memStore{})
	appCtx.RegisterService("tools.websearch", &fakeSource{name: "websearch"})

	g := &Gateway{}
	g.config.defaults()
	g.config.Bind = "127.0.0.1:0"
	// One registered, one missing. The missing source is skipped.
	g.config.ToolSources = []string{"tools.websearch", "tools.mcp"}

	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = g.Stop(context.Background()) }()

	if len(g.sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(g.sources))
	}
	if g.sources[0].Name() != "websearch" {
		t.Errorf("source name = %q", g.sources[0].Name())
	}
}
