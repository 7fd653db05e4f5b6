package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parleyhq/parley/internal/config"
)

// The generated starter config only mentions a subset of the compiled-in
// modules. It must still load and validate: modules without an entry are
// not loaded, they are not an error.
func TestRenderConfig_Validates(t *testing.T) {
	for _, tt := range []struct {
		name   string
		search bool
	}{
		{"without search", false},
		{"with search", true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			content := renderConfig(
				"127.0.0.1:8080",
				"gpt-4o-mini",
				"sk-test-0123456789abcdefghij",
				"https://auth.example.com",
				"service-key",
				"tvly-test-0123456789abcdef",
				tt.search,
			)

			path := filepath.Join(t.TempDir(), "parley.yaml")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if err := config.Validate(cfg); err != nil {
				t.Fatalf("generated config failed validation: %v", err)
			}

			if _, ok := cfg.Modules["tools.websearch"]; ok != tt.search {
				t.Errorf("tools.websearch entry present = %v, want %v", ok, tt.search)
			}
		})
	}
}
