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

// EmbeddingModel is the OpenAI embedding model used across the module.
// text-embedding-3-small produces 1536-dimensional vectors, matching the
// dimension stored in the pgvector column.
const EmbeddingModel = "text-embedding-3-small"

// EmbeddingDimension is the vector length produced by EmbeddingModel.
const EmbeddingDimension = 1536

// Embedder generates vector embeddings for text, wrapped in the same
// circuit breaker and retry logic as the chat-completion providers.
type Embedder struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	model          string
}

// NewOpenAIEmbedder creates a new OpenAI-backed Embedder.
func NewOpenAIEmbedder(apiKey string) *Embedder {
	slog.Info("initialized openai embedder", slog.String("model", EmbeddingModel))
	return &Embedder{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		model:          EmbeddingModel,
	}
}

// Embed returns a vector embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32

	retryErr := retry.WithBackoff(ctx, e.retryConfig, func() error {
		cbResult, err := e.circuitBreaker.Execute(func() (interface{}, error) {
			return e.doEmbed(ctx, text)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai embedder circuit breaker open, request rejected",
					slog.String("service", "openai-embedder"),
					slog.String("state", e.circuitBreaker.State().String()))
				return fmt.Errorf("openai embedder unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.([]float32)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("openai embed failed after retries: %w", retryErr)
	}

	return result, nil
}

func (e *Embedder) doEmbed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings api error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings api returned no data")
	}
	return resp.Data[0].Embedding, nil
}

// EmbedTimeout bounds a single embedding request, used by callers that run
// the embedding call in a detached background goroutine.
const EmbedTimeout = 30 * time.Second
