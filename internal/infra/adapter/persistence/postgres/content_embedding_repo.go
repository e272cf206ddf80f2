package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/repository"

	"github.com/pgvector/pgvector-go"
)

// DefaultSearchTimeout is the default timeout for similarity search queries.
const DefaultSearchTimeout = 5 * time.Second

// ContentEmbeddingRepo implements the ContentEmbeddingRepository interface for PostgreSQL.
type ContentEmbeddingRepo struct {
	db *sql.DB
}

// NewContentEmbeddingRepo creates a new PostgreSQL-based ContentEmbeddingRepository.
func NewContentEmbeddingRepo(db *sql.DB) repository.ContentEmbeddingRepository {
	return &ContentEmbeddingRepo{
		db: db,
	}
}

// Upsert creates a new embedding or updates an existing one.
// Uses INSERT ... ON CONFLICT DO UPDATE to handle unique constraint violations.
func (repo *ContentEmbeddingRepo) Upsert(ctx context.Context, embedding *entity.ContentEmbedding) error {
	if embedding == nil {
		return fmt.Errorf("Upsert: embedding is nil")
	}

	if err := embedding.Validate(); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	vector := pgvector.NewVector(embedding.Embedding)

	const query = `
INSERT INTO content_embeddings (content_id, embedding_type, provider, model, dimension, embedding, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
ON CONFLICT (content_id, embedding_type, provider, model)
DO UPDATE SET
	dimension = EXCLUDED.dimension,
	embedding = EXCLUDED.embedding,
	updated_at = NOW()
RETURNING id, created_at, updated_at`

	err := repo.db.QueryRowContext(ctx, query,
		embedding.ContentID,
		string(embedding.EmbeddingType),
		string(embedding.Provider),
		embedding.Model,
		embedding.Dimension,
		vector,
	).Scan(&embedding.ID, &embedding.CreatedAt, &embedding.UpdatedAt)

	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	return nil
}

// FindByContentID retrieves all embeddings for a given content ID.
// Returns an empty slice if no embeddings are found.
func (repo *ContentEmbeddingRepo) FindByContentID(ctx context.Context, contentID int64) ([]*entity.ContentEmbedding, error) {
	const query = `
SELECT id, content_id, embedding_type, provider, model, dimension, embedding, created_at, updated_at
FROM content_embeddings
WHERE content_id = $1
ORDER BY embedding_type, provider, model`

	rows, err := repo.db.QueryContext(ctx, query, contentID)
	if err != nil {
		return nil, fmt.Errorf("FindByContentID: %w", err)
	}
	defer func() { _ = rows.Close() }()

	embeddings := make([]*entity.ContentEmbedding, 0)
	for rows.Next() {
		emb := &entity.ContentEmbedding{}
		var vector pgvector.Vector
		var embType string
		var provider string

		err := rows.Scan(
			&emb.ID,
			&emb.ContentID,
			&embType,
			&provider,
			&emb.Model,
			&emb.Dimension,
			&vector,
			&emb.CreatedAt,
			&emb.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("FindByContentID: Scan: %w", err)
		}

		emb.EmbeddingType = entity.EmbeddingType(embType)
		emb.Provider = entity.EmbeddingProvider(provider)
		emb.Embedding = vector.Slice()

		embeddings = append(embeddings, emb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindByContentID: %w", err)
	}

	return embeddings, nil
}

// DeleteByContentID removes all embeddings associated with a content item.
// Returns the number of deleted rows.
func (repo *ContentEmbeddingRepo) DeleteByContentID(ctx context.Context, contentID int64) (int64, error) {
	const query = `DELETE FROM content_embeddings WHERE content_id = $1`

	result, err := repo.db.ExecContext(ctx, query, contentID)
	if err != nil {
		return 0, fmt.Errorf("DeleteByContentID: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteByContentID: RowsAffected: %w", err)
	}

	return count, nil
}

// SearchSimilar finds contents with embeddings similar to the provided vector.
// Uses cosine distance operator (<=>) for similarity comparison.
func (repo *ContentEmbeddingRepo) SearchSimilar(ctx context.Context, embedding []float32, embeddingType entity.EmbeddingType, limit int) ([]repository.SimilarContent, error) {
	searchCtx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	vector := pgvector.NewVector(embedding)

	const query = `
SELECT content_id, 1 - (embedding <=> $1) AS similarity
FROM content_embeddings
WHERE embedding_type = $2
ORDER BY embedding <=> $1
LIMIT $3`

	rows, err := repo.db.QueryContext(searchCtx, query, vector, string(embeddingType), limit)
	if err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]repository.SimilarContent, 0, limit)
	for rows.Next() {
		var result repository.SimilarContent
		err := rows.Scan(&result.ContentID, &result.Similarity)
		if err != nil {
			return nil, fmt.Errorf("SearchSimilar: Scan: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}

	return results, nil
}
