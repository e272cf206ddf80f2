package aiprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"crawlcast/internal/resilience/circuitbreaker"
	"crawlcast/internal/resilience/retry"
)

// DefaultAnthropicConfig returns production-ready defaults for the Anthropic provider.
func DefaultAnthropicConfig() *BaseConfig {
	return &BaseConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 2048,
		Timeout:   60 * time.Second,
	}
}

// Anthropic implements Provider using Claude's Messages API, wrapped in the
// same circuit breaker and retry composition as the teacher's Claude summarizer.
type Anthropic struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewAnthropic creates a new Anthropic provider client.
func NewAnthropic(apiKey string, config Config) *Anthropic {
	slog.Info("initialized anthropic provider", slog.String("model", config.GetModel()))
	return &Anthropic{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
	}
}

func (p *Anthropic) ID() ProviderID { return ProviderAnthropic }

// Complete sends prompt to Claude's Messages API.
func (p *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.config.GetTimeout())*time.Second)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.doComplete(ctx, prompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("anthropic provider circuit breaker open, request rejected",
					slog.String("service", "anthropic-provider"),
					slog.String("state", p.circuitBreaker.State().String()))
				return fmt.Errorf("anthropic provider unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("anthropic complete failed after retries: %w", retryErr)
	}

	return result, nil
}

func (p *Anthropic) doComplete(ctx context.Context, prompt string) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.GetModel()),
		MaxTokens: int64(p.config.GetMaxTokens()),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("anthropic api returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("anthropic api returned unexpected response type")
	}
	return textBlock.Text, nil
}
