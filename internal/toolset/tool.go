// Package toolset defines the tool interface and the per-request
// aggregation of tools from multiple sources. Sources are the security
// boundary: a tool only exists for a request if a source listed it for
// that request's principal.
package toolset

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrSourceUnavailable is returned when a tool source cannot be reached
	// or fails to enumerate its tools.
	ErrSourceUnavailable = errors.New("tool source unavailable")

	// ErrInvocationFailed is returned when a tool invocation fails outside
	// the tool's own error reporting.
	ErrInvocationFailed = errors.New("tool invocation failed")

	// ErrToolNotFound is returned when a requested tool is not in the set.
	ErrToolNotFound = errors.New("tool not found")
)

// Tool is a single capability the model may invoke.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Schema returns a JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// Invoke runs the tool with the given arguments.
	Invoke(ctx context.Context, args json.RawMessage) (Output, error)
}

// Output is the result of a tool invocation.
type Output struct {
	// Content is the output text from the tool.
	Content string

	// IsError indicates the output describes a failure the model
	// should see and may recover from.
	IsError bool
}
