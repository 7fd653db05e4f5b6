// Package retention enforces a bounded lifetime on stored transcripts.
// A cron-scheduled job prunes turns past the configured age.
package retention

import (
	"context"
	"errors"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/transcript"
)

func init() {
	core.RegisterModule(&Module{})
}

// Module is the retention module. It is inert unless max_age is set.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "retention.cron",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	if m.config.MaxAge == "" {
		m.logger.Info("no max_age configured, transcript pruning disabled")
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. The transcript store is resolved
// lazily so module load order does not matter.
func (m *Module) Start() error {
	if m.config.MaxAge == "" {
		return nil
	}

	svc, ok := m.appCtx.Service("store.transcripts")
	if !ok {
		return errors.New("retention: no store.transcripts service registered")
	}
	pruner, ok := svc.(transcript.Pruner)
	if !ok {
		return errors.New("retention: transcript store does not support pruning")
	}

	m.scheduler = NewScheduler(m.logger)
	if err := m.scheduler.RegisterJob(&PruneJob{
		Pruner:       pruner,
		MaxAge:       m.config.parsedMaxAge(),
		Logger:       m.logger,
		ScheduleExpr: m.config.Schedule,
	}); err != nil {
		return err
	}

	if err := m.scheduler.Start(); err != nil {
		return err
	}
	m.logger.Info("transcript pruning scheduled",
		"schedule", m.config.Schedule,
		"max_age", m.config.MaxAge,
	)
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}
