package aiprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"crawlcast/internal/resilience/circuitbreaker"
	"crawlcast/internal/resilience/retry"
)

// perplexityBaseURL is Perplexity's OpenAI-compatible chat completions
// endpoint. Reusing go-openai with a BaseURL override avoids adding a new
// dependency for a fourth provider that speaks the same wire protocol.
const perplexityBaseURL = "https://api.perplexity.ai"

// DefaultPerplexityConfig returns production-ready defaults for the
// Perplexity provider (chosen for search-task routing, see the AI
// orchestrator's task->provider table).
func DefaultPerplexityConfig() *BaseConfig {
	return &BaseConfig{Model: "sonar", MaxTokens: 2048, Timeout: 60 * time.Second}
}

// Perplexity implements Provider via go-openai pointed at Perplexity's
// OpenAI-compatible endpoint.
type Perplexity struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewPerplexity creates a new Perplexity provider client.
func NewPerplexity(apiKey string, config Config) *Perplexity {
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = perplexityBaseURL

	slog.Info("initialized perplexity provider", slog.String("model", config.GetModel()))
	return &Perplexity{
		client:         openai.NewClientWithConfig(clientConfig),
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("perplexity-provider")),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
	}
}

func (p *Perplexity) ID() ProviderID { return ProviderPerplexity }

// Complete sends prompt to Perplexity's chat completion endpoint.
func (p *Perplexity) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.config.GetTimeout())*time.Second)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.doComplete(ctx, prompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("perplexity provider circuit breaker open, request rejected",
					slog.String("service", "perplexity-provider"),
					slog.String("state", p.circuitBreaker.State().String()))
				return fmt.Errorf("perplexity provider unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("perplexity complete failed after retries: %w", retryErr)
	}

	return result, nil
}

func (p *Perplexity) doComplete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.config.GetModel(),
		MaxTokens: p.config.GetMaxTokens(),
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("perplexity api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("perplexity api returned empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
