package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/pkg/search"
	"crawlcast/internal/repository"
)

// ContentRepo is the PostgreSQL-backed implementation of
// repository.ContentRepository, built on the jackc/pgx stdlib driver.
type ContentRepo struct {
	db           *sql.DB
	queryBuilder *ContentQueryBuilder
}

// NewContentRepo creates a new PostgreSQL-backed content repository.
func NewContentRepo(db *sql.DB) repository.ContentRepository {
	return &ContentRepo{db: db, queryBuilder: NewContentQueryBuilder()}
}

const contentColumns = `id, source_id, title, url, body, content_hash, published_at,
       created_at, status, summary, categories, entities, sentiment,
       relevance_score, importance_score, key_topics`

// scanContent scans a content row, unmarshaling its JSON-encoded enrichment
// columns (categories, entities, key_topics).
func scanContent(scanner interface{ Scan(dest ...interface{}) error }) (*entity.Content, error) {
	var c entity.Content
	var categoriesJSON, entitiesJSON, keyTopicsJSON []byte
	if err := scanner.Scan(
		&c.ID, &c.SourceID, &c.Title, &c.URL, &c.Body, &c.ContentHash, &c.PublishedAt,
		&c.CreatedAt, &c.Status, &c.Summary, &categoriesJSON, &entitiesJSON, &c.Sentiment,
		&c.RelevanceScore, &c.ImportanceScore, &keyTopicsJSON,
	); err != nil {
		return nil, err
	}

	if len(categoriesJSON) > 0 {
		if err := json.Unmarshal(categoriesJSON, &c.Categories); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
	}
	if len(entitiesJSON) > 0 {
		if err := json.Unmarshal(entitiesJSON, &c.Entities); err != nil {
			return nil, fmt.Errorf("unmarshal entities: %w", err)
		}
	}
	if len(keyTopicsJSON) > 0 {
		if err := json.Unmarshal(keyTopicsJSON, &c.KeyTopics); err != nil {
			return nil, fmt.Errorf("unmarshal key_topics: %w", err)
		}
	}
	return &c, nil
}

func (repo *ContentRepo) List(ctx context.Context) ([]*entity.Content, error) {
	query := fmt.Sprintf(`SELECT %s FROM contents ORDER BY published_at DESC`, contentColumns)
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contents := make([]*entity.Content, 0, 100)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("List: Scan: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

func (repo *ContentRepo) ListWithSource(ctx context.Context) ([]repository.ContentWithSource, error) {
	query := fmt.Sprintf(`
SELECT %s, s.name AS source_name
FROM contents c
INNER JOIN sources s ON c.source_id = s.id
ORDER BY c.published_at DESC`, prefixColumns("c", contentColumns))
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListWithSource: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]repository.ContentWithSource, 0, 100)
	for rows.Next() {
		var sourceName string
		c, err := scanContentWithTrailing(rows, &sourceName)
		if err != nil {
			return nil, fmt.Errorf("ListWithSource: Scan: %w", err)
		}
		result = append(result, repository.ContentWithSource{Content: c, SourceName: sourceName})
	}
	return result, rows.Err()
}

func (repo *ContentRepo) ListWithSourcePaginated(ctx context.Context, offset, limit int) ([]repository.ContentWithSource, error) {
	query := fmt.Sprintf(`
SELECT %s, s.name AS source_name
FROM contents c
INNER JOIN sources s ON c.source_id = s.id
ORDER BY c.published_at DESC
LIMIT $1 OFFSET $2`, prefixColumns("c", contentColumns))

	rows, err := repo.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListWithSourcePaginated: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]repository.ContentWithSource, 0, limit)
	for rows.Next() {
		var sourceName string
		c, err := scanContentWithTrailing(rows, &sourceName)
		if err != nil {
			return nil, fmt.Errorf("ListWithSourcePaginated: Scan: %w", err)
		}
		result = append(result, repository.ContentWithSource{Content: c, SourceName: sourceName})
	}
	return result, rows.Err()
}

// ListByStatus returns up to limit rows in the given status, oldest first --
// the access pattern the pipeline's enrich/notify stages rely on to bound
// how much work a single run takes on.
func (repo *ContentRepo) ListByStatus(ctx context.Context, status entity.ContentStatus, limit int) ([]*entity.Content, error) {
	query := fmt.Sprintf(`
SELECT %s FROM contents
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2`, contentColumns)

	rows, err := repo.db.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByStatus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contents := make([]*entity.Content, 0, limit)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByStatus: Scan: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// ListByStatusAndMinImportance returns up to limit rows in the given status
// whose importance_score clears minImportance, oldest first.
func (repo *ContentRepo) ListByStatusAndMinImportance(ctx context.Context, status entity.ContentStatus, minImportance float64, limit int) ([]*entity.Content, error) {
	query := fmt.Sprintf(`
SELECT %s FROM contents
WHERE status = $1 AND importance_score >= $2
ORDER BY created_at ASC
LIMIT $3`, contentColumns)

	rows, err := repo.db.QueryContext(ctx, query, status, minImportance, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByStatusAndMinImportance: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contents := make([]*entity.Content, 0, limit)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByStatusAndMinImportance: Scan: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// ListForReport returns up to limit rows with status IN (processed,
// notified) published within [from, to], ordered by importance_score
// descending -- the window the report generator draws on.
func (repo *ContentRepo) ListForReport(ctx context.Context, from, to time.Time, limit int) ([]*entity.Content, error) {
	query := fmt.Sprintf(`
SELECT %s FROM contents
WHERE status IN ($1, $2) AND published_at >= $3 AND published_at <= $4
ORDER BY importance_score DESC
LIMIT $5`, contentColumns)

	rows, err := repo.db.QueryContext(ctx, query,
		entity.ContentStatusProcessed, entity.ContentStatusNotified, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("ListForReport: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contents := make([]*entity.Content, 0, limit)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListForReport: Scan: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// ArchiveNotifiedBefore marks up to limit notified rows published before
// before as archived, oldest first.
func (repo *ContentRepo) ArchiveNotifiedBefore(ctx context.Context, before time.Time, limit int) (int64, error) {
	const query = `
UPDATE contents SET status = $1
WHERE id IN (
	SELECT id FROM contents
	WHERE status = $2 AND published_at < $3
	ORDER BY published_at ASC
	LIMIT $4
)`

	res, err := repo.db.ExecContext(ctx, query,
		entity.ContentStatusArchived, entity.ContentStatusNotified, before, limit)
	if err != nil {
		return 0, fmt.Errorf("ArchiveNotifiedBefore: %w", err)
	}
	return res.RowsAffected()
}

func (repo *ContentRepo) CountContent(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM contents`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountContent: %w", err)
	}
	return count, nil
}

func (repo *ContentRepo) Get(ctx context.Context, id int64) (*entity.Content, error) {
	query := fmt.Sprintf(`SELECT %s FROM contents WHERE id = $1 LIMIT 1`, contentColumns)
	c, err := scanContent(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return c, nil
}

func (repo *ContentRepo) GetWithSource(ctx context.Context, id int64) (*entity.Content, string, error) {
	query := fmt.Sprintf(`
SELECT %s, s.name AS source_name
FROM contents c
INNER JOIN sources s ON c.source_id = s.id
WHERE c.id = $1
LIMIT 1`, prefixColumns("c", contentColumns))

	var sourceName string
	c, err := scanContentWithTrailing(repo.db.QueryRowContext(ctx, query, id), &sourceName)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("GetWithSource: %w", err)
	}
	return c, sourceName, nil
}

func (repo *ContentRepo) Search(ctx context.Context, keyword string) ([]*entity.Content, error) {
	query := fmt.Sprintf(`
SELECT %s FROM contents
WHERE title ILIKE $1 OR body ILIKE $1
ORDER BY published_at DESC`, contentColumns)
	param := "%" + keyword + "%"
	rows, err := repo.db.QueryContext(ctx, query, param)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contents := make([]*entity.Content, 0, 100)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("Search: Scan: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

func (repo *ContentRepo) SearchWithFilters(ctx context.Context, keywords []string, filters repository.ContentSearchFilters) ([]*entity.Content, error) {
	if len(keywords) == 0 {
		return []*entity.Content{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, search.DefaultSearchTimeout)
	defer cancel()

	whereClause, args := repo.queryBuilder.BuildWhereClause(keywords, filters, "")
	query := fmt.Sprintf(`SELECT %s FROM contents %s ORDER BY published_at DESC`, contentColumns, whereClause)

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("SearchWithFilters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contents := make([]*entity.Content, 0, 100)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("SearchWithFilters: Scan: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// UpsertIfNew inserts content only if its ContentHash is not already
// present, using ON CONFLICT DO NOTHING so the insert-or-skip decision is
// made atomically by the database rather than via a separate exists check.
func (repo *ContentRepo) UpsertIfNew(ctx context.Context, content *entity.Content) (bool, error) {
	categoriesJSON, err := json.Marshal(content.Categories)
	if err != nil {
		return false, fmt.Errorf("UpsertIfNew: marshal categories: %w", err)
	}
	entitiesJSON, err := json.Marshal(content.Entities)
	if err != nil {
		return false, fmt.Errorf("UpsertIfNew: marshal entities: %w", err)
	}
	keyTopicsJSON, err := json.Marshal(content.KeyTopics)
	if err != nil {
		return false, fmt.Errorf("UpsertIfNew: marshal key_topics: %w", err)
	}

	const query = `
INSERT INTO contents
       (source_id, title, url, body, content_hash, published_at, created_at,
        status, summary, categories, entities, sentiment, relevance_score,
        importance_score, key_topics)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (content_hash) DO NOTHING
RETURNING id`

	var insertedID int64
	err = repo.db.QueryRowContext(ctx, query,
		content.SourceID, content.Title, content.URL, content.Body, content.ContentHash,
		content.PublishedAt, content.CreatedAt, content.Status, content.Summary,
		categoriesJSON, entitiesJSON, content.Sentiment, content.RelevanceScore,
		content.ImportanceScore, keyTopicsJSON,
	).Scan(&insertedID)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("UpsertIfNew: %w", err)
	}
	content.ID = insertedID
	return true, nil
}

func (repo *ContentRepo) Update(ctx context.Context, content *entity.Content) error {
	categoriesJSON, err := json.Marshal(content.Categories)
	if err != nil {
		return fmt.Errorf("Update: marshal categories: %w", err)
	}
	entitiesJSON, err := json.Marshal(content.Entities)
	if err != nil {
		return fmt.Errorf("Update: marshal entities: %w", err)
	}
	keyTopicsJSON, err := json.Marshal(content.KeyTopics)
	if err != nil {
		return fmt.Errorf("Update: marshal key_topics: %w", err)
	}

	const query = `
UPDATE contents SET
       title             = $1,
       body              = $2,
       status            = $3,
       summary           = $4,
       categories        = $5,
       entities          = $6,
       sentiment         = $7,
       relevance_score   = $8,
       importance_score  = $9,
       key_topics        = $10
WHERE id = $11`
	res, err := repo.db.ExecContext(ctx, query,
		content.Title, content.Body, content.Status, content.Summary,
		categoriesJSON, entitiesJSON, content.Sentiment, content.RelevanceScore,
		content.ImportanceScore, keyTopicsJSON, content.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (repo *ContentRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM contents WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: no rows affected")
	}
	return nil
}

func (repo *ContentRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM contents WHERE content_hash = $1)`
	var existsFlag bool
	if err := repo.db.QueryRowContext(ctx, query, hash).Scan(&existsFlag); err != nil {
		return false, fmt.Errorf("ExistsByHash: %w", err)
	}
	return existsFlag, nil
}

// ExistsByHashBatch checks many hashes in a single round trip, avoiding the
// N+1 query pattern a per-item exists check would cause. The pgx stdlib
// driver converts the []string argument to a native Postgres array, so no
// extra array-wrapping helper library is needed.
func (repo *ContentRepo) ExistsByHashBatch(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return make(map[string]bool), nil
	}

	const query = `SELECT content_hash FROM contents WHERE content_hash = ANY($1)`
	rows, err := repo.db.QueryContext(ctx, query, hashes)
	if err != nil {
		return nil, fmt.Errorf("ExistsByHashBatch: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]bool)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("ExistsByHashBatch: Scan: %w", err)
		}
		result[hash] = true
	}
	return result, rows.Err()
}

// scanContentWithTrailing scans the content columns plus one trailing
// string column (the joined source name).
func scanContentWithTrailing(scanner interface{ Scan(dest ...interface{}) error }, trailing *string) (*entity.Content, error) {
	var c entity.Content
	var categoriesJSON, entitiesJSON, keyTopicsJSON []byte
	if err := scanner.Scan(
		&c.ID, &c.SourceID, &c.Title, &c.URL, &c.Body, &c.ContentHash, &c.PublishedAt,
		&c.CreatedAt, &c.Status, &c.Summary, &categoriesJSON, &entitiesJSON, &c.Sentiment,
		&c.RelevanceScore, &c.ImportanceScore, &keyTopicsJSON, trailing,
	); err != nil {
		return nil, err
	}
	if len(categoriesJSON) > 0 {
		if err := json.Unmarshal(categoriesJSON, &c.Categories); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
	}
	if len(entitiesJSON) > 0 {
		if err := json.Unmarshal(entitiesJSON, &c.Entities); err != nil {
			return nil, fmt.Errorf("unmarshal entities: %w", err)
		}
	}
	if len(keyTopicsJSON) > 0 {
		if err := json.Unmarshal(keyTopicsJSON, &c.KeyTopics); err != nil {
			return nil, fmt.Errorf("unmarshal key_topics: %w", err)
		}
	}
	return &c, nil
}

// prefixColumns rewrites a flat "a, b, c" column list into "alias.a,
// alias.b, alias.c" for use in a joined query.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
