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

// BaseConfig is the shared configuration shape for every go-openai-backed
// provider (OpenAI itself, and Perplexity via BaseURL override).
type BaseConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

func (c *BaseConfig) GetModel() string   { return c.Model }
func (c *BaseConfig) GetMaxTokens() int  { return c.MaxTokens }
func (c *BaseConfig) GetTimeout() int    { return int(c.Timeout.Seconds()) }
func (c *BaseConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// DefaultOpenAIConfig returns production-ready defaults for the OpenAI provider.
func DefaultOpenAIConfig() *BaseConfig {
	return &BaseConfig{Model: "gpt-4o-mini", MaxTokens: 2048, Timeout: 60 * time.Second}
}

// OpenAI implements Provider using OpenAI's chat completion API, wrapped
// in circuit breaker and retry logic exactly as the teacher's summarizer does.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewOpenAI creates a new OpenAI provider client.
func NewOpenAI(apiKey string, config Config) *OpenAI {
	slog.Info("initialized openai provider", slog.String("model", config.GetModel()))
	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
	}
}

func (p *OpenAI) ID() ProviderID { return ProviderOpenAI }

// Complete sends prompt to OpenAI's chat completion endpoint.
func (p *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.config.GetTimeout())*time.Second)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.doComplete(ctx, prompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai provider circuit breaker open, request rejected",
					slog.String("service", "openai-provider"),
					slog.String("state", p.circuitBreaker.State().String()))
				return fmt.Errorf("openai provider unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("openai complete failed after retries: %w", retryErr)
	}

	return result, nil
}

func (p *OpenAI) doComplete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.config.GetModel(),
		MaxTokens: p.config.GetMaxTokens(),
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
