package chat

import (
	"context"
	"encoding/json"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/security"
	"github.com/parleyhq/parley/internal/toolset"
)

// limitedSource wraps a tool source so every tool it yields checks the
// per-user tool_call rate limit before invocation.
type limitedSource struct {
	inner   toolset.Source
	limiter *security.RateLimiter
}

func (s *limitedSource) Name() string { return s.inner.Name() }

func (s *limitedSource) Tools(ctx context.Context, p auth.Principal) ([]toolset.Tool, error) {
	tools, err := s.inner.Tools(ctx, p)
	if err != nil {
		return nil, err
	}
	wrapped := make([]toolset.Tool, len(tools))
	for i, t := range tools {
		wrapped[i] = &limitedTool{inner: t, limiter: s.limiter, subject: p.UserID}
	}
	return wrapped, nil
}

type limitedTool struct {
	inner   toolset.Tool
	limiter *security.RateLimiter
	subject string
}

func (t *limitedTool) Name() string            { return t.inner.Name() }
func (t *limitedTool) Description() string     { return t.inner.Description() }
func (t *limitedTool) Schema() json.RawMessage { return t.inner.Schema() }

func (t *limitedTool) Invoke(ctx context.Context, args json.RawMessage) (toolset.Output, error) {
	if err := t.limiter.Allow("tool_call", t.subject); err != nil {
		return toolset.Output{
			Content: "tool call limit reached, answer with what you already have",
			IsError: true,
		}, nil
	}
	return t.inner.Invoke(ctx, args)
}
