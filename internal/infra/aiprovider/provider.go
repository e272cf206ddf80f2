// Package aiprovider implements the four concrete AI provider clients
// (OpenAI, Anthropic, Google, Perplexity) used by the AI orchestrator.
// Each client wraps its vendor SDK (or, for Google, a thin REST client)
// with the same retry+circuit-breaker composition the teacher repo uses
// for its Claude/OpenAI summarizers.
package aiprovider

import "context"

// ProviderID identifies one of the four concrete provider implementations.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderGoogle     ProviderID = "google"
	ProviderPerplexity ProviderID = "perplexity"
)

// Provider is the common contract every concrete AI backend implements.
// It is deliberately minimal: a single text-in/text-out completion call,
// since every task kind (search/summarize/analyze/classify/extract/
// code-gen/multimodal) is expressed as a prompt by the orchestrator.
type Provider interface {
	// ID returns the provider's identity, used for routing-table lookups
	// and metrics/log labeling.
	ID() ProviderID

	// Complete sends prompt to the backend and returns its raw text response.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config is the shared configuration contract across provider implementations,
// mirroring the teacher's SummarizerConfig interface.
type Config interface {
	GetModel() string
	GetMaxTokens() int
	GetTimeout() int // seconds
	Validate() error
}
