package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/toolset"
)

// defaultInvokeTimeout bounds a single tool invocation.
const defaultInvokeTimeout = 60 * time.Second

// Executor handles parallel tool invocation with panic recovery.
// The tool set is passed per call because sets are assembled per request.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. A zero timeout uses the built-in default.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = defaultInvokeTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute runs all tool calls in parallel and returns results in input order.
// Panics and invocation errors become error outputs the model can observe;
// they never abort the loop. Callers must ensure every call names a tool
// present in the set.
func (e *Executor) Execute(ctx context.Context, set *toolset.Set, calls []provider.ToolCall) []ToolCallRecord {
	results := make([]ToolCallRecord, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc provider.ToolCall) {
			defer wg.Done()
			results[idx] = e.executeSingle(ctx, set, tc)
		}(i, call)
	}

	wg.Wait()
	return results
}

func (e *Executor) executeSingle(ctx context.Context, set *toolset.Set, tc provider.ToolCall) (record ToolCallRecord) {
	record.ID = tc.ID
	record.Name = tc.Name
	record.Arguments = tc.Arguments

	ctx, span := otel.Tracer("parley/agent").Start(ctx, "agent.tool",
		trace.WithAttributes(attribute.String("tool.name", tc.Name)))
	defer span.End()

	start := time.Now()

	defer func() {
		record.Duration = time.Since(start)
		if r := recover(); r != nil {
			record.Panicked = true
			record.Output = toolset.Output{
				Content: fmt.Sprintf("panic: %v", r),
				IsError: true,
			}
		}
		if record.Output.IsError {
			span.SetStatus(codes.Error, record.Output.Content)
		}
	}()

	t, err := set.Get(tc.Name)
	if err != nil {
		record.Output = toolset.Output{Content: err.Error(), IsError: true}
		return record
	}

	invokeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := t.Invoke(invokeCtx, tc.Arguments)
	if err != nil {
		record.Output = toolset.Output{
			Content: fmt.Sprintf("%v: %v", toolset.ErrInvocationFailed, err),
			IsError: true,
		}
		return record
	}

	record.Output = out
	return record
}
