package entity

import (
	"errors"
	"fmt"
	"time"
)

// EmbeddingType identifies which part of a Content a vector embedding was
// computed over.
type EmbeddingType string

const (
	EmbeddingTypeTitle   EmbeddingType = "title"
	EmbeddingTypeContent EmbeddingType = "content"
	EmbeddingTypeSummary EmbeddingType = "summary"
)

// IsValid reports whether t is one of the recognized embedding types.
func (t EmbeddingType) IsValid() bool {
	switch t {
	case EmbeddingTypeTitle, EmbeddingTypeContent, EmbeddingTypeSummary:
		return true
	default:
		return false
	}
}

// EmbeddingProvider identifies which embedding model family produced a
// vector.
type EmbeddingProvider string

const (
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
	EmbeddingProviderVoyage EmbeddingProvider = "voyage"
)

// IsValid reports whether p is one of the recognized embedding providers.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderOpenAI, EmbeddingProviderVoyage:
		return true
	default:
		return false
	}
}

// Sentinel validation errors for ContentEmbedding.
var (
	ErrInvalidEmbeddingType     = errors.New("invalid embedding type")
	ErrInvalidEmbeddingProvider = errors.New("invalid embedding provider")
	ErrEmptyEmbedding           = errors.New("embedding vector must not be empty")
	ErrInvalidEmbeddingDimension = errors.New("embedding dimension does not match vector length")
)

// ContentEmbedding is a vector representation of some part of a Content
// (title, body, or summary), computed by a specific provider/model pair,
// used to power similarity search over pgvector.
type ContentEmbedding struct {
	ID            int64
	ContentID     int64
	EmbeddingType EmbeddingType
	Provider      EmbeddingProvider
	Model         string
	Dimension     int32
	Embedding     []float32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks that the embedding's identity fields and vector are
// well-formed before it is persisted.
func (e *ContentEmbedding) Validate() error {
	if e.ContentID <= 0 {
		return &ValidationError{Field: "ContentID", Message: "must be a positive content ID"}
	}
	if !e.EmbeddingType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEmbeddingType, e.EmbeddingType)
	}
	if !e.Provider.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEmbeddingProvider, e.Provider)
	}
	if len(e.Embedding) == 0 {
		return ErrEmptyEmbedding
	}
	if int(e.Dimension) != len(e.Embedding) {
		return fmt.Errorf("%w: dimension=%d vector_len=%d", ErrInvalidEmbeddingDimension, e.Dimension, len(e.Embedding))
	}
	return nil
}
