package toolset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/auth"
)

// defaultSourceTimeout bounds how long a single source may take to
// enumerate its tools.
const defaultSourceTimeout = 10 * time.Second

// Source provides tools for a principal. Remote sources (e.g. MCP
// servers) may return different tools per principal or fail entirely;
// the aggregator isolates such failures.
type Source interface {
	// Name identifies the source in warnings and logs.
	Name() string

	// Tools enumerates the tools available to the principal.
	Tools(ctx context.Context, p auth.Principal) ([]Tool, error)
}

// Warning records a source that failed during aggregation. The request
// proceeds with the remaining sources' tools.
type Warning struct {
	Source string
	Err    error
}

// Message renders the warning for user-facing status events.
func (w Warning) Message() string {
	return fmt.Sprintf("tool source %q is unavailable, continuing without it", w.Source)
}

// Aggregator assembles a per-request tool set from multiple sources.
// Sources are queried in parallel under a shared timeout; a failing
// source contributes a warning instead of failing the request.
type Aggregator struct {
	sources []Source
	timeout time.Duration
	logger  *slog.Logger
}

// NewAggregator creates an aggregator over the given sources.
// A zero timeout uses the built-in default.
func NewAggregator(logger *slog.Logger, timeout time.Duration, sources ...Source) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	return &Aggregator{
		sources: sources,
		timeout: timeout,
		logger:  logger,
	}
}

// Aggregate queries all sources for the principal and merges their tools.
// Results keep source registration order; within a source, the source's
// own order. The first tool wins a name collision. Warnings report
// sources that failed, in source order.
func (a *Aggregator) Aggregate(ctx context.Context, p auth.Principal) (*Set, []Warning) {
	type result struct {
		tools []Tool
		err   error
	}

	results := make([]result, len(a.sources))
	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srcCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			tools, err := src.Tools(srcCtx, p)
			results[i] = result{tools: tools, err: err}
		}()
	}
	wg.Wait()

	set := NewSet()
	var warnings []Warning
	for i, src := range a.sources {
		res := results[i]
		if res.err != nil {
			a.logger.Warn("tool source failed",
				"source", src.Name(),
				"error", res.err,
			)
			warnings = append(warnings, Warning{Source: src.Name(), Err: res.err})
			continue
		}
		for _, t := range res.tools {
			if !set.add(t) {
				a.logger.Warn("duplicate tool name skipped",
					"source", src.Name(),
					"tool", t.Name(),
				)
			}
		}
	}

	return set, warnings
}
