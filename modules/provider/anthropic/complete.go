package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/parleyhq/parley/internal/provider"
)

// Complete sends a synchronous completion request to the Messages API.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	if !p.configured() {
		return provider.CompletionResponse{}, provider.ErrUnconfigured
	}

	params := buildParams(req, &p.config, p.logger)

	msg, err := p.client.Messages.New(ctx, params, option.WithRequestTimeout(p.config.parsedTimeout()))
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}

	return parseResponse(msg), nil
}
