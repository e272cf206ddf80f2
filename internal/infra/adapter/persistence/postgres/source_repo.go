package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/repository"
)

// SourceRepo is the PostgreSQL-backed implementation of
// repository.SourceRepository.
type SourceRepo struct{ db *sql.DB }

// NewSourceRepo creates a new PostgreSQL-backed source repository.
func NewSourceRepo(db *sql.DB) repository.SourceRepository {
	return &SourceRepo{db: db}
}

const sourceColumns = `id, name, url, kind, config, config_version, ai_healed_config,
       active, status, error_count, last_crawled_at, last_error, created_at, updated_at`

// scanSource scans a source row, unmarshaling its JSON-encoded config.
func scanSource(scanner interface{ Scan(dest ...interface{}) error }) (*entity.Source, error) {
	var source entity.Source
	var configJSON []byte
	if err := scanner.Scan(
		&source.ID, &source.Name, &source.URL, &source.Kind, &configJSON,
		&source.ConfigVersion, &source.AIHealedConfig, &source.Active, &source.Status,
		&source.ErrorCount, &source.LastCrawledAt, &source.LastError,
		&source.CreatedAt, &source.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		var config entity.ScraperConfig
		if err := json.Unmarshal(configJSON, &config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
		source.Config = &config
	}

	return &source, nil
}

func (repo *SourceRepo) Get(ctx context.Context, id int64) (*entity.Source, error) {
	query := fmt.Sprintf(`SELECT %s FROM sources WHERE id = $1 LIMIT 1`, sourceColumns)
	source, err := scanSource(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return source, nil
}

func (repo *SourceRepo) List(ctx context.Context) ([]*entity.Source, error) {
	query := fmt.Sprintf(`SELECT %s FROM sources ORDER BY id ASC`, sourceColumns)
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make([]*entity.Source, 0, 50)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (repo *SourceRepo) ListActive(ctx context.Context) ([]*entity.Source, error) {
	query := fmt.Sprintf(`SELECT %s FROM sources WHERE active = TRUE ORDER BY id ASC`, sourceColumns)
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make([]*entity.Source, 0, 50)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (repo *SourceRepo) Search(ctx context.Context, kw string) ([]*entity.Source, error) {
	query := fmt.Sprintf(`
SELECT %s FROM sources
WHERE name ILIKE $1 OR url ILIKE $1
ORDER BY id ASC`, sourceColumns)
	param := "%" + kw + "%"
	rows, err := repo.db.QueryContext(ctx, query, param)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make([]*entity.Source, 0, 50)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (repo *SourceRepo) Create(ctx context.Context, source *entity.Source) error {
	if source.Status == "" {
		source.Status = entity.SourceStatusPending
	}

	var configJSON []byte
	if source.Config != nil {
		var err error
		configJSON, err = json.Marshal(source.Config)
		if err != nil {
			return fmt.Errorf("Create: marshal config: %w", err)
		}
	}

	const query = `
INSERT INTO sources
       (name, url, kind, config, config_version, ai_healed_config, active, status,
        error_count, last_crawled_at, last_error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`
	return repo.db.QueryRowContext(ctx, query,
		source.Name, source.URL, source.Kind, configJSON, source.ConfigVersion,
		source.AIHealedConfig, source.Active, source.Status, source.ErrorCount,
		source.LastCrawledAt, source.LastError, source.CreatedAt, source.UpdatedAt,
	).Scan(&source.ID)
}

func (repo *SourceRepo) Update(ctx context.Context, source *entity.Source) error {
	if source.Status == "" {
		source.Status = entity.SourceStatusActive
	}

	var configJSON []byte
	if source.Config != nil {
		var err error
		configJSON, err = json.Marshal(source.Config)
		if err != nil {
			return fmt.Errorf("Update: marshal config: %w", err)
		}
	}

	const query = `
UPDATE sources SET
       name             = $1,
       url              = $2,
       kind             = $3,
       config           = $4,
       config_version   = $5,
       ai_healed_config = $6,
       active           = $7,
       status           = $8,
       error_count      = $9,
       last_crawled_at  = $10,
       last_error       = $11,
       updated_at       = $12
WHERE id = $13`
	res, err := repo.db.ExecContext(ctx, query,
		source.Name, source.URL, source.Kind, configJSON, source.ConfigVersion,
		source.AIHealedConfig, source.Active, source.Status, source.ErrorCount,
		source.LastCrawledAt, source.LastError, source.UpdatedAt, source.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (repo *SourceRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM sources WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: no rows affected")
	}
	return nil
}

func (repo *SourceRepo) TouchCrawledAt(ctx context.Context, id int64, t time.Time) error {
	const query = `UPDATE sources SET last_crawled_at = $1 WHERE id = $2`
	_, err := repo.db.ExecContext(ctx, query, t, id)
	return err
}
