package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/parleyhq/parley/internal/provider"
)

// maxResponseSize caps how much of a response body is read (10 MB).
const maxResponseSize = 10 << 20

// streamChannelBuffer is the chunk channel depth for streaming requests.
const streamChannelBuffer = 64

// completionsPath is the Chat Completions endpoint, relative to base_url.
const completionsPath = "/chat/completions"

// Complete sends a non-streaming completion request.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	if !p.configured() {
		return provider.CompletionResponse{}, fmt.Errorf("openai: %w", provider.ErrUnconfigured)
	}

	httpResp, err := p.post(ctx, p.client, p.encodeRequest(req, false))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("openai: read response: %w", err)
	}
	if httpErr := mapHTTPError(httpResp.StatusCode, body); httpErr != nil {
		return provider.CompletionResponse{}, httpErr
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("openai: unmarshal response: %w", err)
	}
	return decodeResponse(&resp), nil
}

// Stream sends a streaming completion request. Connection-phase errors
// (auth, network, 4xx) are returned directly; mid-stream errors arrive
// via StreamChunk.Err before the channel closes.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	if !p.configured() {
		return nil, fmt.Errorf("openai: %w", provider.ErrUnconfigured)
	}

	httpResp, err := p.post(ctx, p.streamClient, p.encodeRequest(req, true))
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer func() { _ = httpResp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
		return nil, mapHTTPError(httpResp.StatusCode, body)
	}

	ch := make(chan provider.StreamChunk, streamChannelBuffer)
	go readStream(ctx, httpResp.Body, ch)

	return ch, nil
}

// HealthCheck sends a 1-token completion, exercising authentication,
// model access and quota in one probe.
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: "hi"},
		},
		MaxTokens: 1,
	})
	return err
}

// ContextWindowSize returns the maximum context window in tokens.
func (p *Provider) ContextWindowSize() int {
	return p.contextWindow
}

// ModelName returns the configured model identifier.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// encodeRequest assembles the wire request. Request-level values win
// over config defaults field by field.
func (p *Provider) encodeRequest(req provider.CompletionRequest, stream bool) chatRequest {
	out := chatRequest{
		Model:    p.config.Model,
		Messages: encodeMessages(req.Messages),
		Stream:   stream,
		Stop:     req.Stop,
	}

	if len(req.Tools) > 0 {
		out.Tools = encodeTools(req.Tools)
	}

	out.MaxTokens = p.config.MaxTokens
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	out.Temperature = p.config.Temperature
	if req.Temperature != nil {
		out.Temperature = req.Temperature
	}
	out.TopP = p.config.TopP
	if req.TopP != nil {
		out.TopP = req.TopP
	}

	if stream {
		// Usage is only reported on streams that ask for it.
		out.StreamOptions = &streamOpts{IncludeUsage: true}
	}

	return out
}

// post issues an authenticated JSON POST to the completions endpoint
// with the given client. The caller owns the response body.
func (p *Provider) post(ctx context.Context, client *http.Client, payload chatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, mapConnectionError(err)
	}
	return resp, nil
}
