package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/security"
)

func TestResolveConfigPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "parley", "parley.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("ResolveConfigPath: %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config exists")
	}
}

func TestDefaultDataDir_XDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/parley" {
		t.Errorf("DefaultDataDir = %q", got)
	}
}

func newTestAppContext(t *testing.T) *core.AppContext {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return core.NewAppContext(logger, t.TempDir())
}

func TestRegisterServices(t *testing.T) {
	appCtx := newTestAppContext(t)
	cfg := &config.Config{
		Agent: config.AgentConfig{MaxIterations: 4, SystemPrompt: "be brief"},
		Security: &config.SecurityConfig{
			RateLimits: map[string]config.RateLimitRule{
				"message": {Window: time.Minute, Limit: 3},
			},
		},
	}

	registerServices(appCtx, cfg, security.NewCredentialStore(), security.NewRedactor())

	svc, ok := appCtx.Service("security.limiter")
	if !ok {
		t.Fatal("security.limiter not registered")
	}
	limiter := svc.(*security.RateLimiter)
	for i := 0; i < 3; i++ {
		if err := limiter.Allow("message", "u1"); err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
	}
	if err := limiter.Allow("message", "u1"); err == nil {
		t.Error("configured limit of 3 not enforced")
	}

	if _, ok := appCtx.Service("security.audit"); !ok {
		t.Error("security.audit not registered")
	}

	svc, ok = appCtx.Service("agent.config")
	if !ok {
		t.Fatal("agent.config not registered")
	}
	if got := svc.(agent.Config).MaxIterations; got != 4 {
		t.Errorf("MaxIterations = %d, want 4", got)
	}

	svc, ok = appCtx.Service("chat.system_prompt")
	if !ok {
		t.Fatal("chat.system_prompt not registered")
	}
	if svc.(string) != "be brief" {
		t.Errorf("system prompt = %q", svc)
	}
}

func TestRegisterServices_NoOptionalConfig(t *testing.T) {
	appCtx := newTestAppContext(t)
	registerServices(appCtx, &config.Config{}, security.NewCredentialStore(), security.NewRedactor())

	if _, ok := appCtx.Service("security.limiter"); !ok {
		t.Error("limiter should be registered with defaults")
	}
	if _, ok := appCtx.Service("chat.system_prompt"); ok {
		t.Error("empty system prompt should not be registered")
	}
}

// Mirrors the startup sequence in Run: configured literals first, then
// module-seeded credentials folded in after load. Neither may be lost.
func TestStartupRedaction_Ordering(t *testing.T) {
	appCtx := newTestAppContext(t)
	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()
	redactor.AddLiteral("operator-literal-secret")

	registerServices(appCtx, &config.Config{}, credStore, redactor)

	// What a provider module does during Provision.
	security.SeedCredential(appCtx, "provider.openai.api_key", "module-seeded-secret")

	if v, ok := credStore.Get("provider.openai.api_key"); !ok || v != "module-seeded-secret" {
		t.Fatalf("seeded credential missing from store, got %q", v)
	}

	redactor.SyncCredentials(credStore)

	out := redactor.Redact("keys: operator-literal-secret module-seeded-secret")
	if strings.Contains(out, "operator-literal-secret") {
		t.Errorf("configured literal erased by sync: %q", out)
	}
	if strings.Contains(out, "module-seeded-secret") {
		t.Errorf("seeded credential not redacted: %q", out)
	}
}

func TestAuditWriter_CreatesFile(t *testing.T) {
	appCtx := newTestAppContext(t)

	w := auditWriter(appCtx)
	if w == nil {
		t.Fatal("auditWriter returned nil")
	}
	if _, err := w.Write([]byte("{}\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(appCtx.DataDir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(raw) != "{}\n" {
		t.Errorf("audit file = %q", raw)
	}
}
