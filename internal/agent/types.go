// Package agent implements the reasoning loop that transforms user
// messages into responses through iterative provider calls and tool
// invocations. The loop is an explicit finite-state machine: THINK asks
// the model for the next step, ACT runs requested tools, OBSERVE feeds
// results back, RESPOND terminates with the final answer.
package agent

import (
	"encoding/json"
	"time"

	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/toolset"
)

// state is the loop's current phase.
type state int

const (
	stateThink state = iota
	stateAct
	stateObserve
	stateRespond
	stateStalled
)

// StopReason describes why the loop terminated.
type StopReason string

// StopReason constants for loop termination.
const (
	// StopReasonComplete means the model produced a final answer.
	StopReasonComplete StopReason = "complete"

	// StopReasonStalled means the loop hit its iteration cap or the
	// model selected a tool that does not exist. The result carries a
	// degraded user-visible response instead of a hard failure.
	StopReasonStalled StopReason = "stalled"

	// StopReasonError means a provider failure ended the loop.
	StopReasonError StopReason = "error"
)

// ToolCallRecord tracks one tool invocation during the loop.
type ToolCallRecord struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	Output    toolset.Output
	Duration  time.Duration
	Panicked  bool
}

// EventType identifies the kind of streaming event.
type EventType string

// EventType constants for streaming events.
const (
	EventToken     EventType = "token"
	EventToolStart EventType = "tool_start"
	EventToolEnd   EventType = "tool_end"
	EventStatus    EventType = "tool_status"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Severity grades status events.
type Severity string

// Severity constants for status events.
const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Event is a single event emitted during a streaming loop run.
// The same type carries status events injected by callers (e.g. tool
// source warnings) so consumers see one ordered stream.
type Event struct {
	Type     EventType
	Content  string
	Tool     string
	Severity Severity
	Usage    *provider.TokenUsage
	// Final is set on EventDone with the aggregated loop result.
	Final *Result
	Err   error
}

// Request is the input to the loop.
type Request struct {
	Messages     []provider.LLMMessage
	SystemPrompt string
	Tools        *toolset.Set
}

// Result is the output of the loop.
type Result struct {
	// Content is the final response text: the concatenation of the
	// tokens streamed during the last THINK cycle, or the degraded
	// message when the loop stalled.
	Content    string
	ToolCalls  []ToolCallRecord
	Usage      provider.TokenUsage
	Iterations int
	StopReason StopReason
}
