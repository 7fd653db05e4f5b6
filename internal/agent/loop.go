package agent

import (
	"context"
	"errors"

	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/toolset"
)

// Sentinel errors for loop termination.
var (
	ErrStalled = errors.New("agent: stalled")
)

// stalledMessage is the degraded response shown when the loop cannot
// produce a real answer. Internals are never exposed to the user.
const stalledMessage = "Sorry, I wasn't able to finish working on that request. Please try asking again."

// Loop drives the THINK/ACT/OBSERVE/RESPOND state machine.
type Loop struct {
	provider provider.Provider
	executor *Executor
	config   Config
}

// NewLoop creates a Loop with the given provider, executor, and config.
func NewLoop(p provider.Provider, executor *Executor, cfg Config) *Loop {
	return &Loop{
		provider: p,
		executor: executor,
		config:   cfg.withDefaults(),
	}
}

// buildInitialMessages assembles the initial message history from the request.
func buildInitialMessages(req Request) []provider.LLMMessage {
	var messages []provider.LLMMessage
	if req.SystemPrompt != "" {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	return append(messages, req.Messages...)
}

// appendToolResults adds tool invocation results to the conversation history.
func appendToolResults(messages []provider.LLMMessage, records []ToolCallRecord) []provider.LLMMessage {
	for _, rec := range records {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleTool,
			Content: rec.Output.Content,
			ToolID:  rec.ID,
			IsError: rec.Output.IsError,
		})
	}
	return messages
}

// RunStream executes the reasoning loop and streams events over a channel.
// The channel always ends with exactly one EventDone or EventError; token
// text is forwarded as it arrives from the provider, never buffered whole.
//
// A context.WithTimeout is applied using l.config.Timeout. If the caller's
// context already carries a shorter deadline, the shorter one takes effect.
func (l *Loop) RunStream(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, 16)
	go l.run(ctx, req, ch)
	return ch
}

func (l *Loop) run(ctx context.Context, req Request, ch chan<- Event) {
	defer close(ch)

	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	tools := req.Tools
	if tools == nil {
		tools = toolset.NewSet()
	}

	detector := newLoopDetector(l.config.LoopThreshold)
	messages := buildInitialMessages(req)

	var (
		allRecords  []ToolCallRecord
		usage       provider.TokenUsage
		pending     []provider.ToolCall
		lastRecords []ToolCallRecord
		lastContent string
		iterations  int
	)

	st := stateThink
	for {
		switch st {
		case stateThink:
			if err := ctx.Err(); err != nil {
				ch <- Event{Type: EventError, Err: err}
				return
			}
			if iterations >= l.config.MaxIterations {
				st = stateStalled
				continue
			}
			iterations++

			streamCh, err := l.provider.Stream(ctx, provider.CompletionRequest{
				Messages: messages,
				Tools:    tools.Definitions(),
			})
			if err != nil {
				ch <- Event{Type: EventError, Err: err}
				return
			}

			// Consume the stream, forwarding text chunks as they arrive
			// and accumulating tool calls for the ACT phase.
			var content string
			var toolCalls []provider.ToolCall
			var streamErr error
			for chunk := range streamCh {
				if chunk.Err != nil {
					streamErr = chunk.Err
					break
				}
				if chunk.Content != "" {
					content += chunk.Content
					ch <- Event{Type: EventToken, Content: chunk.Content}
				}
				if len(chunk.ToolCalls) > 0 {
					toolCalls = append(toolCalls, chunk.ToolCalls...)
				}
				if chunk.Usage != nil {
					usage.PromptTokens += chunk.Usage.PromptTokens
					usage.CompletionTokens += chunk.Usage.CompletionTokens
					usage.TotalTokens += chunk.Usage.TotalTokens
				}
			}
			if streamErr != nil {
				// Drain remaining chunks to prevent provider goroutine leak.
				for range streamCh { //nolint:revive
				}
				ch <- Event{Type: EventError, Err: streamErr}
				return
			}

			lastContent = content

			// No tool calls means the model is done reasoning.
			if len(toolCalls) == 0 {
				st = stateRespond
				continue
			}

			// A tool outside the assembled set is a protocol violation
			// of the model-calling layer; so is a stuck repetition.
			stalled := false
			for _, tc := range toolCalls {
				if _, err := tools.Get(tc.Name); err != nil {
					stalled = true
					break
				}
				if detector.record(tc.Name, tc.Arguments) {
					stalled = true
					break
				}
			}
			if stalled {
				st = stateStalled
				continue
			}

			messages = append(messages, provider.LLMMessage{
				Role:      provider.MessageRoleAssistant,
				Content:   content,
				ToolCalls: toolCalls,
			})
			pending = toolCalls
			st = stateAct

		case stateAct:
			for _, tc := range pending {
				ch <- Event{Type: EventToolStart, Tool: tc.Name}
			}

			lastRecords = l.executor.Execute(ctx, tools, pending)
			allRecords = append(allRecords, lastRecords...)

			for i := range lastRecords {
				ch <- Event{Type: EventToolEnd, Tool: lastRecords[i].Name}
			}
			st = stateObserve

		case stateObserve:
			messages = appendToolResults(messages, lastRecords)
			st = stateThink

		case stateStalled:
			ch <- Event{Type: EventToken, Content: stalledMessage}
			ch <- Event{Type: EventDone, Final: &Result{
				Content:    stalledMessage,
				ToolCalls:  allRecords,
				Usage:      usage,
				Iterations: iterations,
				StopReason: StopReasonStalled,
			}}
			return

		case stateRespond:
			ch <- Event{Type: EventDone, Final: &Result{
				Content:    lastContent,
				ToolCalls:  allRecords,
				Usage:      usage,
				Iterations: iterations,
				StopReason: StopReasonComplete,
			}}
			return
		}
	}
}
