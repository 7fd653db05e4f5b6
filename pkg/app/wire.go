package app

import (
	"io"
	"os"
	"path/filepath"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/security"
)

// registerServices publishes the cross-cutting services modules resolve
// lazily at Start: rate limiting, audit logging, credential storage,
// and the global reasoning loop settings.
func registerServices(appCtx *core.AppContext, cfg *config.Config, credStore *security.CredentialStore, redactor *security.Redactor) {
	appCtx.RegisterService("security.credentials", credStore)
	appCtx.RegisterService("security.redactor", redactor)

	appCtx.RegisterService("security.limiter", security.NewRateLimiter(rateLimitRules(cfg)))
	appCtx.RegisterService("security.audit", security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   auditWriter(appCtx),
		Redactor: redactor,
	}))

	appCtx.RegisterService("agent.config", agent.Config{
		MaxIterations: cfg.Agent.MaxIterations,
	})
	if cfg.Agent.SystemPrompt != "" {
		appCtx.RegisterService("chat.system_prompt", cfg.Agent.SystemPrompt)
	}
}

// rateLimitRules maps configured limits onto the limiter's rule set.
func rateLimitRules(cfg *config.Config) map[string]security.Rule {
	if cfg.Security == nil {
		return nil
	}
	rules := make(map[string]security.Rule, len(cfg.Security.RateLimits))
	for kind, rule := range cfg.Security.RateLimits {
		rules[kind] = security.Rule{Window: rule.Window, Limit: rule.Limit}
	}
	return rules
}

// auditWriter opens the JSONL audit log under the data directory.
// Audit logging degrades to in-memory-only when the file cannot be
// opened; the failure itself is logged.
func auditWriter(appCtx *core.AppContext) io.Writer {
	if err := os.MkdirAll(appCtx.DataDir, 0o700); err != nil {
		appCtx.Logger.Warn("creating data dir for audit log failed", "error", err)
		return nil
	}
	path := filepath.Join(appCtx.DataDir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		appCtx.Logger.Warn("opening audit log failed", "path", path, "error", err)
		return nil
	}
	return f
}
