package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/parleyhq/parley/internal/provider"
)

// maxOpenBlocks bounds the number of tool_use content blocks tracked at
// once, so a misbehaving server that never closes blocks cannot grow
// memory without limit.
const maxOpenBlocks = 100

const streamBufferSize = 16

// Stream sends a streaming completion request to the Messages API.
// Connection-phase errors (auth, network, 4xx) are returned directly;
// mid-stream errors arrive via StreamChunk.Err before the channel closes.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	if !p.configured() {
		return nil, provider.ErrUnconfigured
	}

	params := buildParams(req, &p.config, p.logger)

	events := p.client.Messages.NewStreaming(ctx, params)

	// Pull the first event synchronously so connection-phase failures
	// surface as a direct error instead of a chunk.
	if !events.Next() {
		err := events.Err()
		_ = events.Close()
		if err != nil {
			return nil, mapError(err)
		}
		ch := make(chan provider.StreamChunk)
		close(ch)
		return ch, nil
	}
	first := events.Current()

	ch := make(chan provider.StreamChunk, streamBufferSize)

	go func() {
		defer close(ch)
		defer func() { _ = events.Close() }()

		p.forward(ctx, events, first, ch)
	}()

	return ch, nil
}

// streamState carries accumulated state across the events of one stream.
type streamState struct {
	inputTokens int64

	// openBlocks accumulates tool_use argument JSON keyed by content
	// block index until the block's stop event arrives.
	openBlocks map[int64]*pendingTool
}

type pendingTool struct {
	id   string
	name string
	args strings.Builder
}

// forward replays the already-consumed first event and then drains the
// rest of the stream into chunk form.
func (p *Provider) forward(
	ctx context.Context,
	events *ssestream.Stream[sdkanthropic.MessageStreamEventUnion],
	first sdkanthropic.MessageStreamEventUnion,
	ch chan<- provider.StreamChunk,
) {
	state := streamState{openBlocks: make(map[int64]*pendingTool)}

	p.handleEvent(ctx, &state, first, ch)

	for events.Next() {
		if ctx.Err() != nil {
			return
		}
		p.handleEvent(ctx, &state, events.Current(), ch)
	}

	if err := events.Err(); err != nil {
		emit(ctx, ch, provider.StreamChunk{Err: mapError(err)})
	}
}

func (p *Provider) handleEvent(
	ctx context.Context,
	state *streamState,
	event sdkanthropic.MessageStreamEventUnion,
	ch chan<- provider.StreamChunk,
) {
	switch ev := event.AsAny().(type) {
	case sdkanthropic.MessageStartEvent:
		state.inputTokens = ev.Message.Usage.InputTokens

	case sdkanthropic.ContentBlockStartEvent:
		if ev.ContentBlock.Type != "tool_use" {
			return
		}
		if len(state.openBlocks) >= maxOpenBlocks {
			emit(ctx, ch, provider.StreamChunk{
				Err: fmt.Errorf("provider.anthropic: more than %d unclosed tool_use blocks", maxOpenBlocks),
			})
			return
		}
		state.openBlocks[ev.Index] = &pendingTool{
			id:   ev.ContentBlock.ID,
			name: ev.ContentBlock.Name,
		}

	case sdkanthropic.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case sdkanthropic.TextDelta:
			emit(ctx, ch, provider.StreamChunk{Content: delta.Text})
		case sdkanthropic.InputJSONDelta:
			if tool, ok := state.openBlocks[ev.Index]; ok {
				tool.args.WriteString(delta.PartialJSON)
			}
		}

	case sdkanthropic.ContentBlockStopEvent:
		tool, ok := state.openBlocks[ev.Index]
		if !ok {
			return
		}
		delete(state.openBlocks, ev.Index)

		args := json.RawMessage(tool.args.String())
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		emit(ctx, ch, provider.StreamChunk{
			ToolCalls: []provider.ToolCall{{
				ID:        tool.id,
				Name:      tool.name,
				Arguments: args,
			}},
		})

	case sdkanthropic.MessageDeltaEvent:
		in, out := state.inputTokens, ev.Usage.OutputTokens
		emit(ctx, ch, provider.StreamChunk{
			FinishReason: mapStopReason(ev.Delta.StopReason),
			Usage: &provider.TokenUsage{
				PromptTokens:     int(in),
				CompletionTokens: int(out),
				TotalTokens:      int(in + out),
			},
		})
	}
}

// emit sends a chunk unless the context is already cancelled.
func emit(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) {
	select {
	case ch <- chunk:
	case <-ctx.Done():
	}
}
