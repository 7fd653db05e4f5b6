package anthropic

import (
	"encoding/json"
	"log/slog"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/parleyhq/parley/internal/provider"
)

// buildParams translates a CompletionRequest into Anthropic SDK parameters.
// The Messages API takes system prompts as a dedicated field rather than as
// messages, so leading system messages are split off first.
func buildParams(req provider.CompletionRequest, cfg *Config, logger *slog.Logger) sdkanthropic.MessageNewParams {
	system, rest := splitSystem(req.Messages)

	params := sdkanthropic.MessageNewParams{
		Model:    sdkanthropic.Model(cfg.Model),
		System:   system,
		Messages: buildMessages(rest, logger),
	}

	params.MaxTokens = int64(cfg.MaxTokens)
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = sdkanthropic.Float(*req.TopP)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	return params
}

// splitSystem peels leading system messages off the conversation and
// returns them as System blocks alongside the remaining messages.
func splitSystem(msgs []provider.LLMMessage) ([]sdkanthropic.TextBlockParam, []provider.LLMMessage) {
	var system []sdkanthropic.TextBlockParam
	i := 0
	for ; i < len(msgs) && msgs[i].Role == provider.MessageRoleSystem; i++ {
		system = append(system, sdkanthropic.TextBlockParam{Text: msgs[i].Content})
	}
	return system, msgs[i:]
}

// buildMessages translates conversation messages into SDK message params.
// The API requires all tool results for a turn in a single user message,
// so consecutive tool messages are grouped. System messages appearing
// mid-conversation have no API representation and are dropped with a
// warning.
func buildMessages(msgs []provider.LLMMessage, logger *slog.Logger) []sdkanthropic.MessageParam {
	var out []sdkanthropic.MessageParam

	for i := 0; i < len(msgs); {
		switch msgs[i].Role {
		case provider.MessageRoleUser:
			out = append(out, sdkanthropic.NewUserMessage(
				sdkanthropic.NewTextBlock(msgs[i].Content),
			))
			i++

		case provider.MessageRoleAssistant:
			out = append(out, buildAssistantMessage(msgs[i]))
			i++

		case provider.MessageRoleTool:
			var results []sdkanthropic.ContentBlockParamUnion
			for i < len(msgs) && msgs[i].Role == provider.MessageRoleTool {
				results = append(results, sdkanthropic.NewToolResultBlock(
					msgs[i].ToolID,
					msgs[i].Content,
					msgs[i].IsError,
				))
				i++
			}
			out = append(out, sdkanthropic.MessageParam{
				Role:    sdkanthropic.MessageParamRoleUser,
				Content: results,
			})

		case provider.MessageRoleSystem:
			if logger != nil {
				logger.Warn("dropping mid-conversation system message", "index", i)
			}
			i++

		default:
			i++
		}
	}

	return out
}

// buildAssistantMessage converts an assistant turn, including any tool
// calls it made, into an assistant message with mixed content blocks.
func buildAssistantMessage(msg provider.LLMMessage) sdkanthropic.MessageParam {
	var blocks []sdkanthropic.ContentBlockParamUnion

	if msg.Content != "" {
		blocks = append(blocks, sdkanthropic.NewTextBlock(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		// json.RawMessage marshals as-is, so the recorded arguments are
		// passed through without double encoding.
		input := any(call.Arguments)
		if len(call.Arguments) == 0 {
			input = json.RawMessage("{}")
		}
		blocks = append(blocks, sdkanthropic.NewToolUseBlock(call.ID, input, call.Name))
	}

	return sdkanthropic.NewAssistantMessage(blocks...)
}

// buildTools translates tool definitions into SDK tool params.
func buildTools(tools []provider.ToolDefinition) []sdkanthropic.ToolUnionParam {
	out := make([]sdkanthropic.ToolUnionParam, len(tools))
	for i, def := range tools {
		tool := &sdkanthropic.ToolParam{Name: def.Name}
		if def.Description != "" {
			tool.Description = sdkanthropic.String(def.Description)
		}
		if len(def.Parameters) > 0 {
			tool.InputSchema = buildInputSchema(def.Parameters)
		}
		out[i] = sdkanthropic.ToolUnionParam{OfTool: tool}
	}
	return out
}

// buildInputSchema converts a raw JSON Schema into the SDK's schema param.
// Fields beyond "properties" and "required" ($defs, oneOf, enum and so on)
// ride along via ExtraFields so tool sources can use the full schema
// vocabulary.
func buildInputSchema(raw json.RawMessage) sdkanthropic.ToolInputSchemaParam {
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return sdkanthropic.ToolInputSchemaParam{}
	}

	param := sdkanthropic.ToolInputSchemaParam{}

	if props, ok := schema["properties"]; ok {
		param.Properties = props
		delete(schema, "properties")
	}
	if req, ok := schema["required"].([]any); ok {
		names := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		param.Required = names
	}
	delete(schema, "required")
	// The SDK fixes "type" to "object" itself.
	delete(schema, "type")

	if len(schema) > 0 {
		param.ExtraFields = schema
	}

	return param
}

// parseResponse translates an SDK Message into a CompletionResponse.
func parseResponse(msg *sdkanthropic.Message) provider.CompletionResponse {
	var content string
	var calls []provider.ToolCall

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case sdkanthropic.TextBlock:
			if content != "" {
				content += "\n"
			}
			content += b.Text
		case sdkanthropic.ToolUseBlock:
			calls = append(calls, provider.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: b.Input,
			})
		}
	}

	return provider.CompletionResponse{
		Content:      content,
		ToolCalls:    calls,
		FinishReason: mapStopReason(msg.StopReason),
		Usage: provider.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// mapStopReason maps an Anthropic stop reason to a FinishReason.
func mapStopReason(reason sdkanthropic.StopReason) provider.FinishReason {
	switch reason {
	case sdkanthropic.StopReasonMaxTokens:
		return provider.FinishReasonLength
	case sdkanthropic.StopReasonToolUse:
		return provider.FinishReasonToolUse
	case sdkanthropic.StopReasonRefusal:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
