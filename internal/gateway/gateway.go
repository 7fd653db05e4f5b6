package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/security"
	"github.com/parleyhq/parley/internal/toolset"
	"github.com/parleyhq/parley/internal/transcript"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It exposes the chat stream,
// conversation listing, auth, health, and metrics endpoints. It is a
// leaf module, nothing imports it.
type Gateway struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	server  *http.Server
	metrics *Metrics

	// Resolved lazily at Start() via the service registry.
	verifier  auth.Verifier
	exchanger auth.Exchanger
	store     transcript.Store
	provider  provider.Provider
	sources   []toolset.Source
	limiter   *security.RateLimiter
	audit     *security.AuditLogger

	chat *chat.Service
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return g.config.validateDurations()
}

// Start implements core.Starter. It resolves collaborators from the
// service registry (lazy binding, so module load order does not matter)
// and starts the HTTP server.
func (g *Gateway) Start() error {
	if err := g.resolveServices(); err != nil {
		return err
	}

	g.chat = chat.NewService(chat.Options{
		Provider:      g.provider,
		Store:         g.store,
		Sources:       g.sources,
		RateLimiter:   g.limiter,
		Audit:         g.audit,
		Logger:        g.logger,
		Agent:         g.agentConfig(),
		SystemPrompt:  g.systemPrompt(),
		SourceTimeout: duration(g.config.SourceTimeout, 5*time.Second),
	})

	g.server = &http.Server{
		Addr:        g.config.Bind,
		Handler:     g.buildRouter(),
		ReadTimeout: duration(g.config.ReadTimeout, 10*time.Second),
		// No WriteTimeout unless configured: the chat stream stays open
		// for the full reasoning loop.
		WriteTimeout: duration(g.config.WriteTimeout, 0),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, duration(g.config.ShutdownTimeout, 5*time.Second))
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// resolveServices binds collaborators from the shared registry. The
// verifier and store are hard requirements; everything else degrades
// gracefully when absent.
func (g *Gateway) resolveServices() error {
	svc, ok := g.appCtx.Service("auth.verifier")
	if !ok {
		return errors.New("gateway: no auth.verifier service registered")
	}
	verifier, ok := svc.(auth.Verifier)
	if !ok {
		return errors.New("gateway: auth.verifier service has unexpected type")
	}
	g.verifier = verifier

	svc, ok = g.appCtx.Service("store.transcripts")
	if !ok {
		return errors.New("gateway: no store.transcripts service registered")
	}
	store, ok := svc.(transcript.Store)
	if !ok {
		return errors.New("gateway: store.transcripts service has unexpected type")
	}
	g.store = store

	if svc, ok := g.appCtx.Service("auth.client"); ok {
		if ex, ok := svc.(auth.Exchanger); ok {
			g.exchanger = ex
		}
	}

	if svc, ok := g.appCtx.Service(g.config.ProviderService); ok {
		if p, ok := svc.(provider.Provider); ok {
			g.provider = p
		}
	}
	if g.provider == nil {
		g.logger.Warn("no model provider available, chat requests will return a configuration error",
			"service", g.config.ProviderService,
		)
	}

	for _, name := range g.config.ToolSources {
		svc, ok := g.appCtx.Service(name)
		if !ok {
			g.logger.Warn("tool source service not registered, skipping", "service", name)
			continue
		}
		source, ok := svc.(toolset.Source)
		if !ok {
			return fmt.Errorf("gateway: service %s is not a tool source", name)
		}
		g.sources = append(g.sources, source)
	}

	if svc, ok := g.appCtx.Service("security.limiter"); ok {
		if rl, ok := svc.(*security.RateLimiter); ok {
			g.limiter = rl
		}
	}
	if svc, ok := g.appCtx.Service("security.audit"); ok {
		if al, ok := svc.(*security.AuditLogger); ok {
			g.audit = al
		}
	}

	return nil
}

func (g *Gateway) agentConfig() agent.Config {
	if svc, ok := g.appCtx.Service("agent.config"); ok {
		if cfg, ok := svc.(agent.Config); ok {
			return cfg
		}
	}
	return agent.Config{}
}

func (g *Gateway) systemPrompt() string {
	if svc, ok := g.appCtx.Service("chat.system_prompt"); ok {
		if prompt, ok := svc.(string); ok {
			return prompt
		}
	}
	return ""
}
