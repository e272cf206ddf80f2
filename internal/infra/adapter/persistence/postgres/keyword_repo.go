package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/repository"
)

// KeywordGroupRepo is the PostgreSQL-backed implementation of
// repository.KeywordGroupRepository.
type KeywordGroupRepo struct{ db *sql.DB }

// NewKeywordGroupRepo creates a new PostgreSQL-backed keyword group repository.
func NewKeywordGroupRepo(db *sql.DB) repository.KeywordGroupRepository {
	return &KeywordGroupRepo{db: db}
}

func (repo *KeywordGroupRepo) ListActive(ctx context.Context) ([]entity.KeywordGroup, error) {
	const groupQuery = `SELECT id, name, active, created_at, updated_at FROM keyword_groups WHERE active = TRUE ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, groupQuery)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	groups := make([]entity.KeywordGroup, 0, 16)
	for rows.Next() {
		var g entity.KeywordGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Active, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ListActive: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}

	for i := range groups {
		keywords, err := repo.listKeywords(ctx, groups[i].ID)
		if err != nil {
			return nil, fmt.Errorf("ListActive: %w", err)
		}
		groups[i].Keywords = keywords
	}

	return groups, nil
}

func (repo *KeywordGroupRepo) listKeywords(ctx context.Context, groupID int64) ([]entity.Keyword, error) {
	const query = `SELECT id, group_id, term, synonyms FROM keywords WHERE group_id = $1 ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("listKeywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keywords := make([]entity.Keyword, 0, 8)
	for rows.Next() {
		var kw entity.Keyword
		var synonymsJSON []byte
		if err := rows.Scan(&kw.ID, &kw.GroupID, &kw.Term, &synonymsJSON); err != nil {
			return nil, fmt.Errorf("listKeywords: scan: %w", err)
		}
		if len(synonymsJSON) > 0 {
			if err := json.Unmarshal(synonymsJSON, &kw.Synonyms); err != nil {
				return nil, fmt.Errorf("listKeywords: unmarshal synonyms: %w", err)
			}
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

func (repo *KeywordGroupRepo) Create(ctx context.Context, group *entity.KeywordGroup) error {
	const query = `INSERT INTO keyword_groups (name, active, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := repo.db.QueryRowContext(ctx, query, group.Name, group.Active, group.CreatedAt, group.UpdatedAt).Scan(&group.ID); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return repo.replaceKeywords(ctx, group.ID, group.Keywords)
}

func (repo *KeywordGroupRepo) Update(ctx context.Context, group *entity.KeywordGroup) error {
	const query = `UPDATE keyword_groups SET name = $1, active = $2, updated_at = $3 WHERE id = $4`
	res, err := repo.db.ExecContext(ctx, query, group.Name, group.Active, group.UpdatedAt, group.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return repo.replaceKeywords(ctx, group.ID, group.Keywords)
}

// replaceKeywords overwrites a group's keyword set wholesale, simpler and
// safer than diffing given how infrequently keyword groups change.
func (repo *KeywordGroupRepo) replaceKeywords(ctx context.Context, groupID int64, keywords []entity.Keyword) error {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replaceKeywords: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("replaceKeywords: delete: %w", err)
	}

	for _, kw := range keywords {
		synonymsJSON, err := json.Marshal(kw.Synonyms)
		if err != nil {
			return fmt.Errorf("replaceKeywords: marshal synonyms: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO keywords (group_id, term, synonyms) VALUES ($1, $2, $3)`,
			groupID, kw.Term, synonymsJSON,
		); err != nil {
			return fmt.Errorf("replaceKeywords: insert: %w", err)
		}
	}

	return tx.Commit()
}

func (repo *KeywordGroupRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM keyword_groups WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: no rows affected")
	}
	return nil
}
