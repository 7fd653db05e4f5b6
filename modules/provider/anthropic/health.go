package anthropic

import (
	"context"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/parleyhq/parley/internal/provider"
)

// HealthCheck probes connectivity and authentication with a minimal
// completion. The Messages API has no dedicated health endpoint, so a
// 1-token request is the cheapest check available.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if !p.configured() {
		return provider.ErrUnconfigured
	}

	_, err := p.client.Messages.New(ctx, sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(p.config.Model),
		MaxTokens: 1,
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock("ping")),
		},
	})
	return mapError(err)
}
