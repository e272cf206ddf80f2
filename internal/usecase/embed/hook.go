// Package embed generates vector embeddings for newly saved content in the
// background, for later similarity search over pgvector.
package embed

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	embeddingPendingTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "embedding_pending_total",
			Help: "Number of pending embedding operations",
		},
	)

	embeddingProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_processed_total",
			Help: "Total embeddings processed",
		},
		[]string{"status"},
	)
)

// Generator produces a vector embedding for a piece of text.
type Generator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// embedTimeout bounds the detached goroutine that generates and stores an
// embedding, so a hung API call can never leak a goroutine indefinitely.
const embedTimeout = 30 * time.Second

// Hook generates and stores a content embedding asynchronously. It never
// blocks the caller and never propagates errors -- embedding is a
// best-effort enhancement on top of already-persisted content.
type Hook struct {
	generator Generator
	repo      repository.ContentEmbeddingRepository
	model     string
}

// New creates a Hook. generator and repo must be non-nil; callers that want
// embedding disabled should pass a nil *Hook into the pipeline instead.
func New(generator Generator, repo repository.ContentEmbeddingRepository, model string) *Hook {
	return &Hook{generator: generator, repo: repo, model: model}
}

// EmbedContentAsync spawns a goroutine that embeds content's summary (or
// title when no summary is available yet) and upserts the result. It
// returns immediately.
func (h *Hook) EmbedContentAsync(ctx context.Context, content *entity.Content) {
	if content == nil {
		return
	}
	requestID, _ := ctx.Value(requestIDKey).(string)
	if requestID == "" {
		requestID = "unknown"
	}
	go h.run(requestID, content)
}

type contextKey string

const requestIDKey contextKey = "request_id"

func (h *Hook) run(requestID string, content *entity.Content) {
	embeddingPendingTotal.Inc()
	done := false
	defer func() {
		if !done {
			embeddingPendingTotal.Dec()
			embeddingProcessedTotal.WithLabelValues("panic").Inc()
		}
		if r := recover(); r != nil {
			slog.Error("panic generating content embedding",
				slog.String("request_id", requestID),
				slog.Int64("content_id", content.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
	defer cancel()

	text := content.Title
	embeddingType := entity.EmbeddingTypeTitle
	if content.Summary != nil && *content.Summary != "" {
		text = *content.Summary
		embeddingType = entity.EmbeddingTypeSummary
	}

	start := time.Now()
	vector, err := h.generator.Embed(ctx, text)
	if err != nil {
		done = true
		embeddingPendingTotal.Dec()
		embeddingProcessedTotal.WithLabelValues("failure").Inc()
		slog.Warn("content embedding failed, continuing without it",
			slog.String("request_id", requestID),
			slog.Int64("content_id", content.ID),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
		return
	}

	emb := &entity.ContentEmbedding{
		ContentID:     content.ID,
		EmbeddingType: embeddingType,
		Provider:      entity.EmbeddingProviderOpenAI,
		Model:         h.model,
		Dimension:     int32(len(vector)),
		Embedding:     vector,
	}
	if err := h.repo.Upsert(ctx, emb); err != nil {
		done = true
		embeddingPendingTotal.Dec()
		embeddingProcessedTotal.WithLabelValues("failure").Inc()
		slog.Warn("content embedding storage failed",
			slog.String("request_id", requestID),
			slog.Int64("content_id", content.ID),
			slog.Any("error", err))
		return
	}

	done = true
	embeddingPendingTotal.Dec()
	embeddingProcessedTotal.WithLabelValues("success").Inc()
	slog.Info("content embedding generated",
		slog.String("request_id", requestID),
		slog.Int64("content_id", content.ID),
		slog.Int("dimension", len(vector)),
		slog.Duration("duration", time.Since(start)))
}
