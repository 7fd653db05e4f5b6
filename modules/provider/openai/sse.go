package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/parleyhq/parley/internal/provider"
)

// maxToolArgBytes caps the accumulated argument size of a single
// streamed tool call. A broken or hostile upstream must not be able to
// grow a buffer without bound.
const maxToolArgBytes = 1 << 20

// maxLineBytes is the scanner limit for one SSE line. The bufio default
// of 64 KiB is too small for data lines carrying long content or tool
// arguments.
const maxLineBytes = 1 << 20

// sseDecoder turns one Chat Completions SSE body into StreamChunks.
type sseDecoder struct {
	ctx     context.Context
	out     chan<- provider.StreamChunk
	pending map[int]*toolArgBuffer
}

// toolArgBuffer collects the fragments of one streamed tool call.
type toolArgBuffer struct {
	id   string
	name string
	args strings.Builder
}

// readStream decodes the SSE body and sends chunks on ch until the
// stream ends with [DONE], fails, or ctx is cancelled. It closes both
// ch and body.
func readStream(ctx context.Context, body io.ReadCloser, ch chan<- provider.StreamChunk) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	// The scanner blocks in Read; closing the body is the only way to
	// interrupt it when the context ends first.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = body.Close()
		case <-watchDone:
		}
	}()

	d := &sseDecoder{
		ctx:     ctx,
		out:     ch,
		pending: make(map[int]*toolArgBuffer),
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			d.emit(provider.StreamChunk{Err: ctx.Err()})
			return
		}

		data, ok := ssePayload(scanner.Text())
		if !ok {
			continue
		}
		if data == "[DONE]" {
			if len(d.pending) > 0 {
				d.emit(provider.StreamChunk{ToolCalls: d.takeToolCalls()})
			}
			return
		}
		if !d.decode(data) {
			return
		}
	}

	if ctx.Err() != nil {
		d.emit(provider.StreamChunk{Err: ctx.Err()})
		return
	}
	// Network-level scanner failures map to ErrProviderDown like any
	// other connection error.
	if err := scanner.Err(); err != nil {
		d.emit(provider.StreamChunk{Err: mapConnectionError(err)})
	}
}

// ssePayload extracts the payload of a data line. Comment lines and
// other SSE fields are skipped.
func ssePayload(line string) (string, bool) {
	if strings.HasPrefix(line, ":") {
		return "", false
	}
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	data := strings.TrimSpace(rest)
	return data, data != ""
}

// decode processes one data payload. It returns false when the stream
// should stop (parse failure, oversized tool args, cancelled context).
func (d *sseDecoder) decode(data string) bool {
	var chunk chatStreamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		d.emit(provider.StreamChunk{Err: err})
		return false
	}

	// Usage arrives on the final chunk when stream_options.include_usage
	// is set; it may ride alone or alongside a choice.
	var usage *provider.TokenUsage
	if chunk.Usage != nil {
		usage = &provider.TokenUsage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}

	if len(chunk.Choices) == 0 {
		if usage != nil {
			return d.emit(provider.StreamChunk{Usage: usage})
		}
		return true
	}

	choice := chunk.Choices[0]

	for _, tc := range choice.Delta.ToolCalls {
		if !d.bufferToolDelta(tc) {
			return false
		}
	}

	if choice.Delta.Content != "" {
		return d.emit(provider.StreamChunk{Content: choice.Delta.Content, Usage: usage})
	}

	if choice.FinishReason != nil {
		final := provider.StreamChunk{
			FinishReason: mapFinishReason(choice.FinishReason),
			Usage:        usage,
		}
		if len(d.pending) > 0 {
			final.ToolCalls = d.takeToolCalls()
		}
		return d.emit(final)
	}

	if usage != nil {
		return d.emit(provider.StreamChunk{Usage: usage})
	}
	return true
}

// bufferToolDelta merges one tool call fragment into its buffer.
func (d *sseDecoder) bufferToolDelta(tc chatToolCallDelta) bool {
	buf, ok := d.pending[tc.Index]
	if !ok {
		buf = &toolArgBuffer{}
		d.pending[tc.Index] = buf
	}
	if tc.ID != "" {
		buf.id = tc.ID
	}
	if tc.Function.Name != "" {
		buf.name = tc.Function.Name
	}
	if tc.Function.Arguments != "" {
		if buf.args.Len()+len(tc.Function.Arguments) > maxToolArgBytes {
			d.emit(provider.StreamChunk{
				Err: fmt.Errorf("openai: tool call arguments exceeded %d bytes", maxToolArgBytes),
			})
			return false
		}
		buf.args.WriteString(tc.Function.Arguments)
	}
	return true
}

// takeToolCalls drains the pending buffers into ToolCalls ordered by
// stream index.
func (d *sseDecoder) takeToolCalls() []provider.ToolCall {
	indexes := slices.Sorted(maps.Keys(d.pending))
	calls := make([]provider.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		buf := d.pending[idx]
		calls = append(calls, provider.ToolCall{
			ID:        buf.id,
			Name:      buf.name,
			Arguments: json.RawMessage(buf.args.String()),
		})
	}
	d.pending = make(map[int]*toolArgBuffer)
	return calls
}

// emit sends a chunk, reporting false if the context ended first.
func (d *sseDecoder) emit(chunk provider.StreamChunk) bool {
	select {
	case d.out <- chunk:
		return true
	case <-d.ctx.Done():
		return false
	}
}
